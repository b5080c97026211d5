package schema

import (
	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	HealthUp   = "UP"
	HealthDown = "DOWN"
)

const (
	RiskRead  = "READ"
	RiskWrite = "WRITE"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ModelInfo describes a model the backend can route to.
type ModelInfo struct {
	Provider     string         `json:"provider" yaml:"provider"`
	ModelID      string         `json:"modelId" yaml:"modelId"`
	Capabilities *CapabilitySet `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Health       string         `json:"health,omitempty" yaml:"health,omitempty"`
}

// CapabilitySet lists what a model supports.
type CapabilitySet struct {
	Chat     bool `json:"chat" yaml:"chat"`
	Tools    bool `json:"tools" yaml:"tools"`
	JSONMode bool `json:"jsonMode" yaml:"jsonMode"`
	Vision   bool `json:"vision" yaml:"vision"`
}

// ToolInfo describes a tool the backend can invoke.
type ToolInfo struct {
	ToolName  string `json:"toolName" yaml:"toolName"`
	RiskLevel string `json:"riskLevel,omitempty" yaml:"riskLevel,omitempty"`
}

// SkillInfo describes a versioned prompt fragment.
type SkillInfo struct {
	SkillName string `json:"skillName" yaml:"skillName"`
	Version   string `json:"version" yaml:"version"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	Editable  bool   `json:"editable" yaml:"editable"`
}

// AppConfig is the public backend feature configuration.
type AppConfig struct {
	AuthEnabled bool `json:"authEnabled"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Up returns true if the model health is reported as up, or not reported.
func (m ModelInfo) Up() bool {
	return m.Health == "" || m.Health == HealthUp
}

// Ref returns the skill as a name@version reference.
func (s SkillInfo) Ref() string {
	return SkillRef(s.SkillName, s.Version)
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (m ModelInfo) String() string {
	return types.Stringify(m)
}

func (t ToolInfo) String() string {
	return types.Stringify(t)
}

func (s SkillInfo) String() string {
	return types.Stringify(s)
}

func (c AppConfig) String() string {
	return types.Stringify(c)
}
