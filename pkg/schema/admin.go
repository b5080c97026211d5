package schema

import (
	"time"

	// Packages
	aitemplate "github.com/mutablelogic/go-aitemplate"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	SourceBuiltin = "builtin"
	SourceDynamic = "dynamic"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ModelAdminInfo is the administrative view of a model.
type ModelAdminInfo struct {
	ModelID      string         `json:"modelId" yaml:"modelId"`
	Provider     string         `json:"provider" yaml:"provider"`
	DisplayName  string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Enabled      bool           `json:"enabled" yaml:"enabled"`
	Source       string         `json:"source,omitempty" yaml:"source,omitempty"`
	Editable     bool           `json:"editable" yaml:"editable"`
	Capabilities *CapabilitySet `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Health       string         `json:"health,omitempty" yaml:"health,omitempty"`
}

// ModelUpsertRequest creates or replaces a dynamic model.
type ModelUpsertRequest struct {
	ModelID      string         `json:"modelId" yaml:"modelId"`
	Provider     string         `json:"provider,omitempty" yaml:"provider,omitempty"`
	DisplayName  string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	BaseURL      string         `json:"baseUrl" yaml:"baseUrl"`
	APIKey       string         `json:"apiKey" yaml:"apiKey"`
	ModelName    string         `json:"modelName" yaml:"modelName"`
	Capabilities *CapabilitySet `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	SortOrder    *int           `json:"sortOrder,omitempty" yaml:"sortOrder,omitempty"`
}

type ModelToggleResponse struct {
	ModelID string `json:"modelId"`
	Enabled bool   `json:"enabled"`
}

// SkillUpsertRequest creates or replaces a dynamic skill.
type SkillUpsertRequest struct {
	SkillName string `json:"skillName" yaml:"skillName"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
	Content   string `json:"content" yaml:"content"`
}

type SkillImportScriptRequest struct {
	Script string `json:"script"`
}

type SkillImportSourceRequest struct {
	Source string `json:"source"`
}

type SkillImportResponse struct {
	Imported   int      `json:"imported"`
	Errors     []string `json:"errors,omitempty"`
	SkillNames []string `json:"skillNames,omitempty"`
}

// ApiError is the error body the backend returns for rejected requests.
type ApiError struct {
	ErrorCode string    `json:"errorCode"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (r ModelUpsertRequest) Validate() error {
	switch {
	case r.ModelID == "":
		return aitemplate.ErrBadParameter.With("modelId is required")
	case r.BaseURL == "":
		return aitemplate.ErrBadParameter.With("baseUrl is required")
	case r.APIKey == "":
		return aitemplate.ErrBadParameter.With("apiKey is required")
	case r.ModelName == "":
		return aitemplate.ErrBadParameter.With("modelName is required")
	}
	return nil
}

func (r SkillUpsertRequest) Validate() error {
	switch {
	case r.SkillName == "":
		return aitemplate.ErrBadParameter.With("skillName is required")
	case r.Content == "":
		return aitemplate.ErrBadParameter.With("content is required")
	}
	return nil
}

// Ref returns the skill as a name@version reference.
func (r SkillUpsertRequest) Ref() string {
	return SkillRef(r.SkillName, r.Version)
}

func (e ApiError) Error() string {
	if e.ErrorCode == "" {
		return e.Message
	}
	return e.ErrorCode + ": " + e.Message
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (m ModelAdminInfo) String() string {
	return types.Stringify(m)
}

func (r SkillImportResponse) String() string {
	return types.Stringify(r)
}
