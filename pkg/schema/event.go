package schema

import (
	"time"

	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// SSE EVENT NAMES

const (
	EventToken            = "token"              // Incremental assistant text
	EventToolCall         = "tool_call"          // Completed tool invocation
	EventToolCallProgress = "tool_call_progress" // In-flight tool invocation update
	EventSkillApply       = "skill_apply"        // Skills applied server-side for this turn
	EventError            = "error"              // Server reported error, terminal
	EventDone             = "done"               // End of stream, terminal
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// StreamEvent is one decoded frame of the chat stream. The concrete type is
// one of Token, ToolCall, ToolCallProgress, SkillApply, Error or Done.
type StreamEvent interface {
	// Event returns the wire event name
	Event() string

	// Terminal returns true if no further events follow this one
	Terminal() bool
}

// Token is an incremental text fragment to append to the assistant message.
type Token struct {
	Text string `json:"text"`
}

// ToolCall is a completed tool invocation record.
type ToolCall struct {
	Info ToolCallInfo `json:"info"`
}

// ToolCallProgress is an in-flight update for a tool call.
type ToolCallProgress struct {
	Info ToolCallInfo `json:"info"`
}

// SkillApply lists the skills applied server-side for this turn.
type SkillApply struct {
	Skills []SkillApplyInfo `json:"skills"`
}

// Error is a server reported error. It ends the stream.
type Error struct {
	Message string `json:"message"`
}

// Done marks the end of the stream.
type Done struct{}

// ToolCallInfo is the payload of tool_call and tool_call_progress frames.
// CallID is only present when the backend assigns stable call identifiers.
type ToolCallInfo struct {
	CallID     string `json:"callId,omitempty"`
	ToolName   string `json:"toolName"`
	Input      string `json:"input"`
	Output     string `json:"output"`
	DurationMs *int64 `json:"durationMs,omitempty"`
	Status     string `json:"status,omitempty"`    // running, done or error on progress frames
	StartedAt  int64  `json:"startedAt,omitempty"` // unix milliseconds
}

// Tool call progress states
const (
	ToolStatusRunning = "running"
	ToolStatusDone    = "done"
	ToolStatusError   = "error"
)

// SkillApplyInfo is one element of a skill_apply frame.
type SkillApplyInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Ensure the events implement StreamEvent
var _ StreamEvent = Token{}
var _ StreamEvent = ToolCall{}
var _ StreamEvent = ToolCallProgress{}
var _ StreamEvent = SkillApply{}
var _ StreamEvent = Error{}
var _ StreamEvent = Done{}

///////////////////////////////////////////////////////////////////////////////
// EVENT NAMES

func (Token) Event() string            { return EventToken }
func (ToolCall) Event() string         { return EventToolCall }
func (ToolCallProgress) Event() string { return EventToolCallProgress }
func (SkillApply) Event() string       { return EventSkillApply }
func (Error) Event() string            { return EventError }
func (Done) Event() string             { return EventDone }

func (Token) Terminal() bool            { return false }
func (ToolCall) Terminal() bool         { return false }
func (ToolCallProgress) Terminal() bool { return false }
func (SkillApply) Terminal() bool       { return false }
func (Error) Terminal() bool            { return true }
func (Done) Terminal() bool             { return true }

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Key identifies the tool call for progress upserts: the call identifier
// when the backend supplies one, otherwise the tool name.
func (t ToolCallInfo) Key() string {
	if t.CallID != "" {
		return t.CallID
	}
	return t.ToolName
}

// Duration returns the reported duration, or zero if absent.
func (t ToolCallInfo) Duration() time.Duration {
	if t.DurationMs == nil {
		return 0
	}
	return time.Duration(*t.DurationMs) * time.Millisecond
}

// Ref returns the skill as a name@version reference.
func (s SkillApplyInfo) Ref() string {
	return SkillRef(s.Name, s.Version)
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (e Token) String() string {
	return types.Stringify(e)
}

func (e ToolCall) String() string {
	return types.Stringify(e)
}

func (e ToolCallProgress) String() string {
	return types.Stringify(e)
}

func (e SkillApply) String() string {
	return types.Stringify(e)
}

func (e Error) String() string {
	return types.Stringify(e)
}

func (Done) String() string {
	return EventDone
}
