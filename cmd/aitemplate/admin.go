package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	table "github.com/mutablelogic/go-aitemplate/pkg/ui/table"
	yaml "gopkg.in/yaml.v3"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type AdminCommands struct {
	ModelList   AdminModelListCommand   `cmd:"" name:"model-list" help:"List all models, including disabled ones."`
	ModelPut    AdminModelPutCommand    `cmd:"" name:"model-put" help:"Create or replace dynamic models from a YAML file."`
	ModelDelete AdminModelDeleteCommand `cmd:"" name:"model-delete" help:"Delete a dynamic model."`
	ModelToggle AdminModelToggleCommand `cmd:"" name:"model-toggle" help:"Enable or disable a model."`
	SkillList   AdminSkillListCommand   `cmd:"" name:"skill-list" help:"List all skills."`
	SkillPut    AdminSkillPutCommand    `cmd:"" name:"skill-put" help:"Create or replace dynamic skills from a YAML file."`
	SkillDelete AdminSkillDeleteCommand `cmd:"" name:"skill-delete" help:"Delete a dynamic skill."`
	SkillImport AdminSkillImportCommand `cmd:"" name:"skill-import" help:"Import skills from an install script or a source reference."`
}

type AdminModelListCommand struct{}

type AdminModelPutCommand struct {
	File string `arg:"" name:"file" help:"YAML file with one model per document, or - for stdin"`
}

type AdminModelDeleteCommand struct {
	Model string `arg:"" name:"model" help:"Model identifier"`
}

type AdminModelToggleCommand struct {
	Model string `arg:"" name:"model" help:"Model identifier"`
}

type AdminSkillListCommand struct{}

type AdminSkillPutCommand struct {
	File string `arg:"" name:"file" help:"YAML file with one skill per document, or - for stdin"`
}

type AdminSkillDeleteCommand struct {
	Skill string `arg:"" name:"skill" help:"Skill as name or name@version"`
}

type AdminSkillImportCommand struct {
	Script string `name:"script" help:"Install script file, or - for stdin" xor:"import" required:""`
	Source string `name:"source" help:"Source reference, such as owner/repo@skill" xor:"import" required:""`
}

///////////////////////////////////////////////////////////////////////////////
// MODEL COMMANDS

func (cmd *AdminModelListCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AdminModelListCommand")
	defer func() { endSpan(err) }()

	models, err := client.ListAdminModels(parent)
	if err != nil {
		return err
	}
	return table.Write(os.Stdout, schema.AdminModelTable(models))
}

func (cmd *AdminModelPutCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}
	requests, err := readDocuments[schema.ModelUpsertRequest](cmd.File)
	if err != nil {
		return err
	}
	for _, req := range requests {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("%s: %w", req.ModelID, err)
		}
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AdminModelPutCommand")
	defer func() { endSpan(err) }()

	models := make([]schema.ModelAdminInfo, 0, len(requests))
	for _, req := range requests {
		model, err := client.UpsertModel(parent, req)
		if err != nil {
			return fmt.Errorf("%s: %w", req.ModelID, err)
		}
		models = append(models, *model)
	}
	return table.Write(os.Stdout, schema.AdminModelTable(models))
}

func (cmd *AdminModelDeleteCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AdminModelDeleteCommand")
	defer func() { endSpan(err) }()

	if err := client.DeleteModel(parent, cmd.Model); err != nil {
		return err
	}
	if ctx.defaults.GetString(defaultModel) == cmd.Model {
		return ctx.defaults.Set(map[string]any{defaultModel: nil})
	}
	return nil
}

func (cmd *AdminModelToggleCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AdminModelToggleCommand")
	defer func() { endSpan(err) }()

	resp, err := client.ToggleModel(parent, cmd.Model)
	if err != nil {
		return err
	}
	state := "disabled"
	if resp.Enabled {
		state = "enabled"
	}
	fmt.Println(resp.ModelID, state)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// SKILL COMMANDS

func (cmd *AdminSkillListCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AdminSkillListCommand")
	defer func() { endSpan(err) }()

	skills, err := client.ListAdminSkills(parent)
	if err != nil {
		return err
	}
	return table.Write(os.Stdout, schema.SkillTable(skills))
}

func (cmd *AdminSkillPutCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}
	requests, err := readDocuments[schema.SkillUpsertRequest](cmd.File)
	if err != nil {
		return err
	}
	for _, req := range requests {
		if err := req.Validate(); err != nil {
			return fmt.Errorf("%s: %w", req.Ref(), err)
		}
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AdminSkillPutCommand")
	defer func() { endSpan(err) }()

	skills := make([]schema.SkillInfo, 0, len(requests))
	for _, req := range requests {
		skill, err := client.UpsertSkill(parent, req)
		if err != nil {
			return fmt.Errorf("%s: %w", req.Ref(), err)
		}
		skills = append(skills, *skill)
	}
	return table.Write(os.Stdout, schema.SkillTable(skills))
}

func (cmd *AdminSkillDeleteCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AdminSkillDeleteCommand")
	defer func() { endSpan(err) }()

	name, version := schema.ParseSkillRef(cmd.Skill)
	return client.DeleteSkill(parent, name, version)
}

func (cmd *AdminSkillImportCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}
	var script []byte
	if cmd.Script != "" {
		if script, err = readFile(cmd.Script); err != nil {
			return err
		}
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AdminSkillImportCommand")
	defer func() { endSpan(err) }()

	var resp *schema.SkillImportResponse
	if cmd.Script != "" {
		resp, err = client.ImportSkillsScript(parent, string(script))
	} else {
		resp, err = client.ImportSkillsSource(parent, cmd.Source)
	}
	if err != nil {
		return err
	}
	fmt.Println(resp)
	if len(resp.Errors) > 0 {
		return fmt.Errorf("%d of %d skills failed to import", len(resp.Errors), len(resp.Errors)+resp.Imported)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// readDocuments decodes every YAML document in path, which is stdin for "-"
func readDocuments[T any](path string) ([]T, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var result []T
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var v T
		if err := dec.Decode(&v); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		result = append(result, v)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%s: no documents", path)
	}
	return result, nil
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
