package httpclient

import (
	"context"
	"net/http"
	"net/url"

	// Packages
	client "github.com/mutablelogic/go-client"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// MODELS

// ListAdminModels returns all models, including disabled ones
func (c *Client) ListAdminModels(ctx context.Context) ([]schema.ModelAdminInfo, error) {
	var response []schema.ModelAdminInfo
	if err := c.get(ctx, &response, "admin", "models"); err != nil {
		return nil, err
	}
	return response, nil
}

// UpsertModel creates or replaces a dynamic model
func (c *Client) UpsertModel(ctx context.Context, req schema.ModelUpsertRequest) (*schema.ModelAdminInfo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var response schema.ModelAdminInfo
	if err := c.post(ctx, req, &response, "admin", "models"); err != nil {
		return nil, err
	}
	return &response, nil
}

// DeleteModel removes a dynamic model. Builtin models cannot be deleted.
func (c *Client) DeleteModel(ctx context.Context, model string) error {
	if model == "" {
		return aitemplate.ErrBadParameter.With("model id is required")
	}
	reqOpts, err := c.authOpts(
		client.OptPath("admin", "models"),
		client.OptQuery(url.Values{"modelId": []string{model}}),
	)
	if err != nil {
		return err
	}
	return c.DoWithContext(ctx, client.MethodDelete, nil, reqOpts...)
}

// ToggleModel flips whether a model is enabled, and returns the new state
func (c *Client) ToggleModel(ctx context.Context, model string) (*schema.ModelToggleResponse, error) {
	if model == "" {
		return nil, aitemplate.ErrBadParameter.With("model id is required")
	}
	reqOpts, err := c.authOpts(client.OptPath("admin", "models", url.PathEscape(model), "toggle"))
	if err != nil {
		return nil, err
	}
	var response schema.ModelToggleResponse
	if err := c.DoWithContext(ctx, client.NewRequestEx(http.MethodPatch, client.ContentTypeJson), &response, reqOpts...); err != nil {
		return nil, err
	}
	return &response, nil
}

///////////////////////////////////////////////////////////////////////////////
// SKILLS

// ListAdminSkills returns all skills with their source
func (c *Client) ListAdminSkills(ctx context.Context) ([]schema.SkillInfo, error) {
	var response []schema.SkillInfo
	if err := c.get(ctx, &response, "admin", "skills"); err != nil {
		return nil, err
	}
	return response, nil
}

// UpsertSkill creates or replaces a dynamic skill
func (c *Client) UpsertSkill(ctx context.Context, req schema.SkillUpsertRequest) (*schema.SkillInfo, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var response schema.SkillInfo
	if err := c.post(ctx, req, &response, "admin", "skills"); err != nil {
		return nil, err
	}
	return &response, nil
}

// DeleteSkill removes a dynamic skill. An empty version matches any version.
func (c *Client) DeleteSkill(ctx context.Context, name, version string) error {
	if name == "" {
		return aitemplate.ErrBadParameter.With("skill name is required")
	}
	query := url.Values{"skillName": []string{name}}
	if version != "" {
		query.Set("version", version)
	}
	reqOpts, err := c.authOpts(client.OptPath("admin", "skills"), client.OptQuery(query))
	if err != nil {
		return err
	}
	return c.DoWithContext(ctx, client.MethodDelete, nil, reqOpts...)
}

// ImportSkillsScript imports skills from a skills.sh install script
func (c *Client) ImportSkillsScript(ctx context.Context, script string) (*schema.SkillImportResponse, error) {
	if script == "" {
		return nil, aitemplate.ErrBadParameter.With("script is required")
	}
	var response schema.SkillImportResponse
	if err := c.post(ctx, schema.SkillImportScriptRequest{Script: script}, &response, "admin", "skills", "import-sh"); err != nil {
		return nil, err
	}
	return &response, nil
}

// ImportSkillsSource imports skills from a source reference, such as a
// repository URL
func (c *Client) ImportSkillsSource(ctx context.Context, source string) (*schema.SkillImportResponse, error) {
	if source == "" {
		return nil, aitemplate.ErrBadParameter.With("source is required")
	}
	var response schema.SkillImportResponse
	if err := c.post(ctx, schema.SkillImportSourceRequest{Source: source}, &response, "admin", "skills", "import-source"); err != nil {
		return nil, err
	}
	return &response, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (c *Client) post(ctx context.Context, in, out any, path ...any) error {
	payload, err := client.NewJSONRequest(in)
	if err != nil {
		return err
	}
	reqOpts, err := c.authOpts(client.OptPath(path...))
	if err != nil {
		return err
	}
	return c.DoWithContext(ctx, payload, out, reqOpts...)
}
