package stream

import (
	"strings"

	// Packages
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Turn accumulates the events of one stream into the assistant message.
// The zero value is ready to use.
type Turn struct {
	content   strings.Builder
	toolCalls []schema.ToolCallInfo
	skills    []schema.SkillApplyInfo
	err       string
	done      bool
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Apply folds an event into the turn. Tokens are appended to the content,
// completed tool calls appended, progress updates replace the call with the
// same key or are appended, and a skill_apply replaces the applied skills.
func (t *Turn) Apply(event schema.StreamEvent) {
	switch e := event.(type) {
	case schema.Token:
		t.content.WriteString(e.Text)
	case schema.ToolCall:
		t.toolCalls = append(t.toolCalls, e.Info)
	case schema.ToolCallProgress:
		for i := range t.toolCalls {
			if t.toolCalls[i].Key() == e.Info.Key() {
				t.toolCalls[i] = e.Info
				return
			}
		}
		t.toolCalls = append(t.toolCalls, e.Info)
	case schema.SkillApply:
		t.skills = e.Skills
	case schema.Error:
		t.err = e.Message
	case schema.Done:
		t.done = true
	}
}

// Content returns the assistant text so far
func (t *Turn) Content() string {
	return t.content.String()
}

// ToolCalls returns the tool calls in order of first appearance
func (t *Turn) ToolCalls() []schema.ToolCallInfo {
	return t.toolCalls
}

// Skills returns the skills applied to this turn
func (t *Turn) Skills() []schema.SkillApplyInfo {
	return t.skills
}

// ServerError returns the server reported error message, if any
func (t *Turn) ServerError() string {
	return t.err
}

// Done returns true if the turn completed with a done event
func (t *Turn) Done() bool {
	return t.done
}

// Message returns the turn as an assistant message
func (t *Turn) Message() schema.MessageInfo {
	return schema.MessageInfo{Role: schema.RoleAssistant, Content: t.Content()}
}
