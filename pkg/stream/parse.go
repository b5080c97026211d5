package stream

import (
	"encoding/json"
	"strings"

	// Packages
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type tokenPayload struct {
	Token *string `json:"token"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Parse maps a frame to a typed event. Token frames always succeed, falling
// back to the raw data when it is not a {"token":...} object. Structured
// frames that fail to decode, or whose data is not a JSON object (an array
// for skill_apply), return an error wrapping ErrBadParameter, and
// unknown event names an error wrapping ErrNotImplemented. Either way the
// frame should be dropped and the stream continued.
func Parse(frame Frame) (schema.StreamEvent, error) {
	switch frame.Event {
	case schema.EventToken:
		var payload tokenPayload
		if err := json.Unmarshal([]byte(frame.Data), &payload); err == nil && payload.Token != nil {
			return schema.Token{Text: *payload.Token}, nil
		}
		return schema.Token{Text: frame.Data}, nil
	case schema.EventToolCall:
		var info schema.ToolCallInfo
		if err := decodeJSON(frame, '{', &info); err != nil {
			return nil, err
		}
		return schema.ToolCall{Info: info}, nil
	case schema.EventToolCallProgress:
		var info schema.ToolCallInfo
		if err := decodeJSON(frame, '{', &info); err != nil {
			return nil, err
		}
		return schema.ToolCallProgress{Info: info}, nil
	case schema.EventSkillApply:
		var skills []schema.SkillApplyInfo
		if err := decodeJSON(frame, '[', &skills); err != nil {
			return nil, err
		}
		return schema.SkillApply{Skills: skills}, nil
	case schema.EventError:
		return schema.Error{Message: frame.Data}, nil
	case schema.EventDone:
		return schema.Done{}, nil
	default:
		return nil, aitemplate.ErrNotImplemented.Withf("event %q", frame.Event)
	}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// decodeJSON unmarshals the frame data into v. The data must start with
// open, so that null and scalars are rejected rather than left as zero values.
func decodeJSON(frame Frame, open byte, v any) error {
	data := strings.TrimSpace(frame.Data)
	if data == "" || data[0] != open {
		return aitemplate.ErrBadParameter.Withf("%s: expected %q, got %q", frame.Event, open, data)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return aitemplate.ErrBadParameter.Withf("%s: %v", frame.Event, err)
	}
	return nil
}
