package httpclient

import (
	"context"

	// Packages
	client "github.com/mutablelogic/go-client"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Chat sends a message and waits for the complete reply
func (c *Client) Chat(ctx context.Context, req schema.ChatRequest) (*schema.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Create request
	payload, err := client.NewJSONRequest(req)
	if err != nil {
		return nil, err
	}
	reqOpts, err := c.authOpts(client.OptPath("chat"))
	if err != nil {
		return nil, err
	}

	// Perform request
	var response schema.ChatResponse
	if err := c.DoWithContext(ctx, payload, &response, reqOpts...); err != nil {
		return nil, err
	}

	// Return the response
	return &response, nil
}
