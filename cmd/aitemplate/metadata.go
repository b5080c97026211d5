package main

import (
	"fmt"
	"os"

	// Packages
	otel "github.com/mutablelogic/go-client/pkg/otel"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	table "github.com/mutablelogic/go-aitemplate/pkg/ui/table"
	errgroup "golang.org/x/sync/errgroup"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type MetadataCommands struct {
	Models        ModelsCommand        `cmd:"" name:"models" help:"List models." group:"METADATA"`
	Tools         ToolsCommand         `cmd:"" name:"tools" help:"List tools." group:"METADATA"`
	Skills        SkillsCommand        `cmd:"" name:"skills" help:"List skills." group:"METADATA"`
	Info          InfoCommand          `cmd:"" name:"info" help:"Show configuration, models, tools and skills." group:"METADATA"`
	Conversations ConversationsCommand `cmd:"" name:"conversations" help:"List conversations." group:"CONVERSATIONS"`
	Messages      MessagesCommand      `cmd:"" name:"messages" help:"List the messages of a conversation." group:"CONVERSATIONS"`
	Forget        ForgetCommand        `cmd:"" name:"forget" help:"Delete a conversation." group:"CONVERSATIONS"`
}

type ModelsCommand struct{}

type ToolsCommand struct{}

type SkillsCommand struct{}

type InfoCommand struct{}

type ConversationsCommand struct{}

type MessagesCommand struct {
	ID string `arg:"" name:"id" help:"Conversation ID (defaults to the current conversation)" optional:""`
}

type ForgetCommand struct {
	ID string `arg:"" name:"id" help:"Conversation ID (defaults to the current conversation)" optional:""`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ModelsCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "ModelsCommand")
	defer func() { endSpan(err) }()

	models, err := client.ListModels(parent)
	if err != nil {
		return err
	}
	return table.Write(os.Stdout, schema.ModelTable{
		Models:       models,
		CurrentModel: ctx.defaults.GetString(defaultModel),
	})
}

func (cmd *ToolsCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "ToolsCommand")
	defer func() { endSpan(err) }()

	tools, err := client.ListTools(parent)
	if err != nil {
		return err
	}
	return table.Write(os.Stdout, schema.ToolTable(tools))
}

func (cmd *SkillsCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "SkillsCommand")
	defer func() { endSpan(err) }()

	skills, err := client.ListSkills(parent)
	if err != nil {
		return err
	}
	return table.Write(os.Stdout, schema.SkillTable(skills))
}

func (cmd *InfoCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "InfoCommand")
	defer func() { endSpan(err) }()

	// Fetch everything at once
	var config *schema.AppConfig
	var models []schema.ModelInfo
	var tools []schema.ToolInfo
	var skills []schema.SkillInfo
	group, groupCtx := errgroup.WithContext(parent)
	group.Go(func() (err error) {
		config, err = client.GetConfig(groupCtx)
		return err
	})
	group.Go(func() (err error) {
		models, err = client.ListModels(groupCtx)
		return err
	})
	group.Go(func() (err error) {
		tools, err = client.ListTools(groupCtx)
		return err
	})
	group.Go(func() (err error) {
		skills, err = client.ListSkills(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}

	fmt.Printf("endpoint: %s\nauth: %v\n", client.Endpoint(), config.AuthEnabled)
	if conversation := ctx.defaults.GetString(defaultConversation); conversation != "" {
		fmt.Printf("conversation: %s\n", conversation)
	}
	fmt.Println()
	for _, data := range []table.TableData{
		schema.ModelTable{Models: models, CurrentModel: ctx.defaults.GetString(defaultModel)},
		schema.ToolTable(tools),
		schema.SkillTable(skills),
	} {
		if err := table.Write(os.Stdout, data); err != nil {
			return err
		}
	}
	return nil
}

func (cmd *ConversationsCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "ConversationsCommand")
	defer func() { endSpan(err) }()

	conversations, err := client.ListConversations(parent)
	if err != nil {
		return err
	}
	return table.Write(os.Stdout, schema.ConversationTable{
		Conversations:       conversations,
		CurrentConversation: ctx.defaults.GetString(defaultConversation),
	})
}

func (cmd *MessagesCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}
	id, err := ctx.conversation(cmd.ID)
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "MessagesCommand")
	defer func() { endSpan(err) }()

	messages, err := client.GetMessages(parent, id)
	if err != nil {
		return err
	}
	return table.Write(os.Stdout, schema.MessageTable(messages))
}

func (cmd *ForgetCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}
	id, err := ctx.conversation(cmd.ID)
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "ForgetCommand")
	defer func() { endSpan(err) }()

	if err := client.DeleteConversation(parent, id); err != nil {
		return err
	}
	if id == ctx.defaults.GetString(defaultConversation) {
		return ctx.defaults.Set(map[string]any{defaultConversation: nil})
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// conversation returns id, or the current conversation when empty
func (g *Globals) conversation(id string) (string, error) {
	if id == "" {
		id = g.defaults.GetString(defaultConversation)
	}
	if id == "" {
		return "", fmt.Errorf("conversation is required (pass an id or start one with chat)")
	}
	return id, nil
}
