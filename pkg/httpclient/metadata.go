package httpclient

import (
	"context"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListModels returns the models available for chat
func (c *Client) ListModels(ctx context.Context) ([]schema.ModelInfo, error) {
	var response []schema.ModelInfo
	if err := c.get(ctx, &response, "models"); err != nil {
		return nil, err
	}
	return response, nil
}

// ListTools returns the tools which can be enabled for a chat
func (c *Client) ListTools(ctx context.Context) ([]schema.ToolInfo, error) {
	var response []schema.ToolInfo
	if err := c.get(ctx, &response, "tools"); err != nil {
		return nil, err
	}
	return response, nil
}

// ListSkills returns the skills which can be enabled for a chat
func (c *Client) ListSkills(ctx context.Context) ([]schema.SkillInfo, error) {
	var response []schema.SkillInfo
	if err := c.get(ctx, &response, "skills"); err != nil {
		return nil, err
	}
	return response, nil
}

// GetConfig returns the public backend configuration
func (c *Client) GetConfig(ctx context.Context) (*schema.AppConfig, error) {
	var response schema.AppConfig
	if err := c.get(ctx, &response, "config"); err != nil {
		return nil, err
	}
	return &response, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (c *Client) get(ctx context.Context, out any, path ...any) error {
	reqOpts, err := c.authOpts(client.OptPath(path...))
	if err != nil {
		return err
	}
	return c.DoWithContext(ctx, client.NewRequest(), out, reqOpts...)
}
