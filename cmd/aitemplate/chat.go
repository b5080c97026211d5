package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	// Packages
	glamour "github.com/charmbracelet/glamour"
	uuid "github.com/google/uuid"
	truncate "github.com/muesli/reflow/truncate"
	wordwrap "github.com/muesli/reflow/wordwrap"
	termenv "github.com/muesli/termenv"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	httpclient "github.com/mutablelogic/go-aitemplate/pkg/httpclient"
	opt "github.com/mutablelogic/go-aitemplate/pkg/opt"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	term "golang.org/x/term"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ChatCommands struct {
	Chat ChatCommand `cmd:"" name:"chat" help:"Send a message and stream the answer." group:"CHAT"`
	Ask  AskCommand  `cmd:"" name:"ask" help:"Send a message and wait for the whole answer." group:"CHAT"`
}

type TurnFlags struct {
	Model        string   `name:"model" short:"m" help:"Model identifier (defaults to the last model used)"`
	Conversation string   `name:"conversation" short:"c" help:"Conversation identifier (defaults to the current conversation)"`
	New          bool     `name:"new" help:"Start a new conversation"`
	Tool         []string `name:"tool" short:"t" help:"Enable a tool (repeatable, defaults to the last tools used)"`
	Skill        []string `name:"skill" short:"s" help:"Enable a skill as name@version (repeatable, defaults to the last skills used)"`
	Markdown     bool     `name:"markdown" help:"Render the answer as markdown"`
}

type ChatCommand struct {
	TurnFlags
	Text        string        `arg:"" name:"text" help:"Message text"`
	QueryToken  bool          `name:"query-token" help:"Send the credential as a query parameter"`
	IdleTimeout time.Duration `name:"idle-timeout" help:"Give up when the stream is idle for this long" default:"2m"`
}

type AskCommand struct {
	TurnFlags
	Text string `arg:"" name:"text" help:"Message text"`
}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	minWidth     = 40
	defaultWidth = 80
	maxToolText  = 200
)

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *ChatCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "ChatCommand")
	defer func() { endSpan(err) }()

	req, err := cmd.request(parent, ctx, client, cmd.Text)
	if err != nil {
		return err
	}

	var opts []opt.Opt
	if cmd.QueryToken {
		opts = append(opts, httpclient.WithQueryToken())
	}
	if cmd.IdleTimeout > 0 {
		opts = append(opts, httpclient.WithIdleTimeout(cmd.IdleTimeout))
	}

	// Print tokens as they arrive, unless the answer is rendered at the end
	status := newStatus(os.Stderr)
	turn, err := client.StreamTurn(parent, req.StreamRequest, func(event schema.StreamEvent) error {
		switch e := event.(type) {
		case schema.Token:
			if !cmd.Markdown {
				fmt.Print(e.Text)
			}
		case schema.SkillApply:
			status.skills(e.Skills)
		case schema.ToolCallProgress:
			status.tool(e.Info)
		case schema.ToolCall:
			status.tool(e.Info)
		}
		return nil
	}, opts...)
	if !cmd.Markdown && turn != nil && turn.Content() != "" {
		fmt.Println()
	}

	// Keep the conversation even when the answer was cut short
	if saveErr := req.save(ctx.defaults); saveErr != nil && err == nil {
		err = saveErr
	}

	// Interrupted sessions end without an error
	switch {
	case parent.Err() != nil:
		status.line("cancelled")
		return nil
	case err != nil:
		return err
	}
	if cmd.Markdown {
		return render(os.Stdout, turn.Content())
	}
	return nil
}

func (cmd *AskCommand) Run(ctx *Globals) (err error) {
	client, err := ctx.Client()
	if err != nil {
		return err
	}

	// OTEL
	parent, endSpan := otel.StartSpan(ctx.tracer, ctx.ctx, "AskCommand")
	defer func() { endSpan(err) }()

	req, err := cmd.request(parent, ctx, client, cmd.Text)
	if err != nil {
		return err
	}
	resp, err := client.Chat(parent, req.ChatRequest())
	if err != nil {
		return err
	}
	if err := req.save(ctx.defaults); err != nil {
		return err
	}

	status := newStatus(os.Stderr)
	for _, call := range resp.ToolCalls {
		status.tool(call)
	}
	if cmd.Markdown {
		return render(os.Stdout, resp.Content)
	}
	fmt.Println(resp.Content)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// REQUEST

type turnRequest struct {
	schema.StreamRequest
}

// request resolves the model, conversation, tools and skills of a turn from
// the flags, falling back to the stored defaults
func (flags *TurnFlags) request(ctx context.Context, g *Globals, client *httpclient.Client, text string) (*turnRequest, error) {
	req := schema.StreamRequest{
		ConversationID: flags.Conversation,
		Model:          flags.Model,
		Message:        text,
		Tools:          flags.Tool,
		Skills:         flags.Skill,
	}

	// Model, or the first model the backend offers
	if req.Model == "" {
		req.Model = g.defaults.GetString(defaultModel)
	}
	if req.Model == "" {
		models, err := client.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		if len(models) == 0 {
			return nil, fmt.Errorf("no models available")
		}
		req.Model = models[0].ModelID
	}

	// Conversation
	switch {
	case flags.New:
		req.ConversationID = uuid.NewString()
	case req.ConversationID == "":
		req.ConversationID = g.defaults.GetString(defaultConversation)
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	if len(req.Tools) == 0 {
		req.Tools = g.defaults.GetStrings(defaultTools)
	}
	if len(req.Skills) == 0 {
		req.Skills = g.defaults.GetStrings(defaultSkills)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &turnRequest{req}, nil
}

func (r *turnRequest) save(defaults *Defaults) error {
	return defaults.Set(map[string]any{
		defaultModel:        r.Model,
		defaultConversation: r.ConversationID,
		defaultTools:        r.Tools,
		defaultSkills:       r.Skills,
	})
}

///////////////////////////////////////////////////////////////////////////////
// STATUS

// status writes tool and skill activity, styled when w is a terminal
type status struct {
	out   *termenv.Output
	width int
}

func newStatus(w io.Writer) *status {
	width := defaultWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = max(cols, minWidth)
		}
	}
	return &status{out: termenv.NewOutput(w), width: width}
}

func (s *status) skills(skills []schema.SkillApplyInfo) {
	if len(skills) == 0 {
		return
	}
	refs := make([]string, len(skills))
	for i, skill := range skills {
		refs[i] = schema.SkillRef(skill.Name, skill.Version)
	}
	s.line("skills " + strings.Join(refs, ", "))
}

func (s *status) tool(info schema.ToolCallInfo) {
	label := s.out.String("tool " + info.ToolName).Bold()
	switch info.Status {
	case schema.ToolStatusRunning:
		fmt.Fprintln(s.out, label, s.out.String("running").Faint())
		return
	case schema.ToolStatusError:
		label = label.Foreground(s.out.Color("1"))
	default:
		label = label.Foreground(s.out.Color("2"))
	}
	text := truncate.StringWithTail(strings.ReplaceAll(info.Output, "\n", " "), maxToolText, "…")
	if info.DurationMs != nil {
		text = fmt.Sprintf("%s (%v)", text, time.Duration(*info.DurationMs)*time.Millisecond)
	}
	fmt.Fprintln(s.out, label)
	fmt.Fprintln(s.out, s.out.String(indent(wordwrap.String(text, s.width-2))).Faint())
}

func (s *status) line(text string) {
	fmt.Fprintln(s.out, s.out.String(text).Faint())
}

func indent(text string) string {
	return "  " + strings.ReplaceAll(text, "\n", "\n  ")
}

///////////////////////////////////////////////////////////////////////////////
// MARKDOWN

// render writes text as markdown, styled for the terminal background when
// w is a terminal and unchanged otherwise
func render(w *os.File, text string) error {
	if !term.IsTerminal(int(w.Fd())) {
		_, err := fmt.Fprintln(w, text)
		return err
	}
	width := defaultWidth
	if cols, _, err := term.GetSize(int(w.Fd())); err == nil {
		width = max(cols, minWidth)
	}
	style := "dark"
	if !termenv.HasDarkBackground() {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(text)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, out)
	return err
}
