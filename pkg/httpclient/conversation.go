package httpclient

import (
	"context"
	"net/url"

	// Packages
	client "github.com/mutablelogic/go-client"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ListConversations returns the conversations held by the backend
func (c *Client) ListConversations(ctx context.Context) ([]schema.ConversationInfo, error) {
	var response []schema.ConversationInfo
	if err := c.get(ctx, &response, "conversations"); err != nil {
		return nil, err
	}
	return response, nil
}

// GetMessages returns the messages of a conversation, oldest first
func (c *Client) GetMessages(ctx context.Context, conversation string) ([]schema.MessageInfo, error) {
	if conversation == "" {
		return nil, aitemplate.ErrBadParameter.With("conversation id is required")
	}
	var response []schema.MessageInfo
	if err := c.get(ctx, &response, "conversations", url.PathEscape(conversation), "messages"); err != nil {
		return nil, err
	}
	return response, nil
}

// DeleteConversation removes a conversation and its messages
func (c *Client) DeleteConversation(ctx context.Context, conversation string) error {
	if conversation == "" {
		return aitemplate.ErrBadParameter.With("conversation id is required")
	}
	reqOpts, err := c.authOpts(client.OptPath("conversations", url.PathEscape(conversation)))
	if err != nil {
		return err
	}
	return c.DoWithContext(ctx, client.MethodDelete, nil, reqOpts...)
}
