package stream_test

import (
	"testing"

	// Packages
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	types "github.com/mutablelogic/go-server/pkg/types"
	assert "github.com/stretchr/testify/assert"
)

func Test_turn_001(t *testing.T) {
	assert := assert.New(t)

	var turn stream.Turn
	for _, event := range []schema.StreamEvent{
		schema.SkillApply{Skills: []schema.SkillApplyInfo{{Name: "summary", Version: "1.0"}}},
		schema.ToolCallProgress{Info: schema.ToolCallInfo{CallID: "tc-1", ToolName: "clock", Status: schema.ToolStatusRunning}},
		schema.ToolCallProgress{Info: schema.ToolCallInfo{CallID: "tc-2", ToolName: "clock", Status: schema.ToolStatusRunning}},
		schema.ToolCallProgress{Info: schema.ToolCallInfo{CallID: "tc-1", ToolName: "clock", Output: "12:00", Status: schema.ToolStatusDone, DurationMs: types.Ptr(int64(4))}},
		schema.Token{Text: "Hel"},
		schema.Token{Text: "lo"},
		schema.Done{},
	} {
		turn.Apply(event)
	}

	assert.Equal("Hello", turn.Content())
	assert.True(turn.Done())
	assert.Empty(turn.ServerError())
	assert.Equal([]schema.SkillApplyInfo{{Name: "summary", Version: "1.0"}}, turn.Skills())
	if calls := turn.ToolCalls(); assert.Len(calls, 2) {
		assert.Equal("tc-1", calls[0].CallID)
		assert.Equal(schema.ToolStatusDone, calls[0].Status)
		assert.Equal("12:00", calls[0].Output)
		assert.Equal("tc-2", calls[1].CallID)
		assert.Equal(schema.ToolStatusRunning, calls[1].Status)
	}
	assert.Equal(schema.MessageInfo{Role: "assistant", Content: "Hello"}, turn.Message())
}

func Test_turn_002(t *testing.T) {
	assert := assert.New(t)

	// Without call ids, progress is keyed by tool name; completed calls append
	var turn stream.Turn
	turn.Apply(schema.ToolCallProgress{Info: schema.ToolCallInfo{ToolName: "weather", Output: ""}})
	turn.Apply(schema.ToolCallProgress{Info: schema.ToolCallInfo{ToolName: "weather", Output: "sunny"}})
	turn.Apply(schema.ToolCall{Info: schema.ToolCallInfo{ToolName: "clock", Output: "12:00"}})
	turn.Apply(schema.ToolCall{Info: schema.ToolCallInfo{ToolName: "clock", Output: "12:01"}})
	turn.Apply(schema.Error{Message: "quota exceeded"})

	if calls := turn.ToolCalls(); assert.Len(calls, 3) {
		assert.Equal("sunny", calls[0].Output)
		assert.Equal("12:00", calls[1].Output)
		assert.Equal("12:01", calls[2].Output)
	}
	assert.Equal("quota exceeded", turn.ServerError())
	assert.False(turn.Done())
	assert.Empty(turn.Content())
}
