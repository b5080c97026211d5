package schema

import (
	// Packages
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ConversationInfo identifies a conversation held in backend memory.
type ConversationInfo struct {
	ConversationID string `json:"conversationId"`
}

// MessageInfo is one message of a conversation.
type MessageInfo struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (c ConversationInfo) String() string {
	return types.Stringify(c)
}

func (m MessageInfo) String() string {
	return types.Stringify(m)
}
