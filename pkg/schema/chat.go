package schema

import (
	"net/url"
	"strings"

	// Packages
	aitemplate "github.com/mutablelogic/go-aitemplate"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Query parameter names of the stream endpoint
const (
	ParamConversation = "conversationId"
	ParamModel        = "model"
	ParamMessage      = "message"
	ParamTools        = "tools"
	ParamSkills       = "skills"
	ParamToken        = "token"
)

// SkillRefSeparator joins a skill name and version in a skill reference
const SkillRefSeparator = "@"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// StreamRequest are the parameters of one streaming chat request.
type StreamRequest struct {
	ConversationID string   `json:"conversationId" help:"Conversation identifier"`
	Model          string   `json:"model" help:"Model identifier"`
	Message        string   `json:"message" help:"User message text"`
	Tools          []string `json:"tools,omitempty" help:"Enabled tool names"`
	Skills         []string `json:"skills,omitempty" help:"Enabled skills as name@version"`
}

// ChatRequest is the body of a non-streaming chat request.
type ChatRequest struct {
	ConversationID string   `json:"conversationId"`
	ModelID        string   `json:"modelId"`
	Message        string   `json:"message"`
	Tools          []string `json:"tools,omitempty"`
	Skills         []string `json:"skills,omitempty"`
}

// ChatResponse is the result of a non-streaming chat request.
type ChatResponse struct {
	RequestID      string         `json:"requestId,omitempty"`
	ConversationID string         `json:"conversationId"`
	ModelID        string         `json:"modelId"`
	Content        string         `json:"content"`
	ToolCalls      []ToolCallInfo `json:"toolCalls,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Validate checks the required fields are present. Anything beyond presence
// is left to the server.
func (r StreamRequest) Validate() error {
	switch {
	case r.ConversationID == "":
		return aitemplate.ErrBadParameter.With("conversation id is required")
	case r.Model == "":
		return aitemplate.ErrBadParameter.With("model is required")
	case r.Message == "":
		return aitemplate.ErrBadParameter.With("message is required")
	}
	return nil
}

// Query encodes the request as query parameters, with tools and skills
// repeated once per entry.
func (r StreamRequest) Query() url.Values {
	q := make(url.Values)
	q.Set(ParamConversation, r.ConversationID)
	q.Set(ParamModel, r.Model)
	q.Set(ParamMessage, r.Message)
	for _, tool := range r.Tools {
		q.Add(ParamTools, tool)
	}
	for _, skill := range r.Skills {
		q.Add(ParamSkills, skill)
	}
	return q
}

// ChatRequest returns the equivalent non-streaming request.
func (r StreamRequest) ChatRequest() ChatRequest {
	return ChatRequest{
		ConversationID: r.ConversationID,
		ModelID:        r.Model,
		Message:        r.Message,
		Tools:          r.Tools,
		Skills:         r.Skills,
	}
}

// Validate checks the required fields are present.
func (r ChatRequest) Validate() error {
	switch {
	case r.ConversationID == "":
		return aitemplate.ErrBadParameter.With("conversation id is required")
	case r.ModelID == "":
		return aitemplate.ErrBadParameter.With("model is required")
	case r.Message == "":
		return aitemplate.ErrBadParameter.With("message is required")
	}
	return nil
}

// SkillRef returns name@version, or just the name when version is empty.
func SkillRef(name, version string) string {
	if version == "" {
		return name
	}
	return name + SkillRefSeparator + version
}

// ParseSkillRef splits a name@version reference. The version is empty
// when the reference has none.
func ParseSkillRef(ref string) (string, string) {
	name, version, _ := strings.Cut(strings.TrimSpace(ref), SkillRefSeparator)
	return name, version
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (r StreamRequest) String() string {
	return types.Stringify(r)
}

func (r ChatRequest) String() string {
	return types.Stringify(r)
}

func (r ChatResponse) String() string {
	return types.Stringify(r)
}
