package httphandler

import (
	"errors"
	"io"

	// Packages
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	yaml "gopkg.in/yaml.v3"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Fixture is the YAML form of a backend
type Fixture struct {
	Auth       bool               `yaml:"auth"`
	SigningKey string             `yaml:"signingKey,omitempty"`
	Models     []schema.ModelInfo `yaml:"models,omitempty"`
	Tools      []FixtureTool      `yaml:"tools,omitempty"`
	Skills     []FixtureSkill     `yaml:"skills,omitempty"`
	Users      []FixtureUser      `yaml:"users,omitempty"`
}

type FixtureTool struct {
	schema.ToolInfo `yaml:",inline"`
	Output          string `yaml:"output"`
}

type FixtureSkill struct {
	Name    string `yaml:"skillName"`
	Version string `yaml:"version"`
	Content string `yaml:"content"`
}

type FixtureUser struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// LoadFixture reads a YAML fixture and returns an option which applies it
func LoadFixture(r io.Reader) (BackendOpt, error) {
	var fixture Fixture
	if err := yaml.NewDecoder(r).Decode(&fixture); err != nil && !errors.Is(err, io.EOF) {
		return nil, aitemplate.ErrBadParameter.Withf("fixture: %v", err)
	}
	return fixture.Opt(), nil
}

// Opt returns an option which applies the fixture to a backend
func (f Fixture) Opt() BackendOpt {
	return func(b *Backend) error {
		opts := []BackendOpt{WithAuth(f.Auth)}
		if f.SigningKey != "" {
			opts = append(opts, WithSigningKey([]byte(f.SigningKey)))
		}
		for _, m := range f.Models {
			opts = append(opts, WithModel(m))
		}
		for _, t := range f.Tools {
			opts = append(opts, WithTool(t.ToolInfo, t.Output))
		}
		for _, s := range f.Skills {
			opts = append(opts, WithSkill(s.Name, s.Version, s.Content))
		}
		for _, u := range f.Users {
			opts = append(opts, WithUser(u.Username, u.Password, u.Roles...))
		}
		for _, opt := range opts {
			if err := opt(b); err != nil {
				return err
			}
		}
		return nil
	}
}
