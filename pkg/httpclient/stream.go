package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	opt "github.com/mutablelogic/go-aitemplate/pkg/opt"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	attribute "go.opentelemetry.io/otel/attribute"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	optQueryToken  = "query-token"
	optIdleTimeout = "idle-timeout"

	// Longest error body read from a rejected stream request
	maxErrorBody = 4 << 10
)

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithQueryToken sends the credential in the token query parameter instead
// of the Authorization header, for proxies which strip headers from
// event streams. The token may then appear in access logs.
func WithQueryToken() opt.Opt {
	return opt.WithBool(optQueryToken, true)
}

// WithIdleTimeout ends the stream with a transport fault when no data
// arrives within d
func WithIdleTimeout(d time.Duration) opt.Opt {
	return opt.WithDuration(optIdleTimeout, d)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Stream opens a chat stream. The returned session must be consumed or
// cancelled; cancelling ctx also cancels the session. Connection failures
// and non-2xx responses return an error wrapping aitemplate.ErrTransport.
func (c *Client) Stream(ctx context.Context, req schema.StreamRequest, opts ...opt.Opt) (_ *stream.Session, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	o, err := opt.Apply(opts...)
	if err != nil {
		return nil, err
	}

	// Trace the stream request
	if c.Tracer != nil {
		var endSpan func(error)
		ctx, endSpan = otel.StartSpan(c.Tracer, ctx, "Stream",
			attribute.String("conversation", req.ConversationID),
			attribute.String("model", req.Model),
		)
		defer func() { endSpan(err) }()
	}

	// Attach the credential
	query := req.Query()
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	if token != nil && o.GetBool(optQueryToken) {
		query.Set(schema.ParamToken, token.AccessToken)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(query, "chat", "stream"), nil)
	if err != nil {
		return nil, aitemplate.ErrBadParameter.With(err)
	}
	httpReq.Header.Set("Accept", client.ContentTypeTextStream)
	httpReq.Header.Set("Cache-Control", "no-cache")
	if token != nil && !o.GetBool(optQueryToken) {
		token.SetAuthHeader(httpReq)
	}

	// The go-client request lock is not held for the life of the stream
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", aitemplate.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusErr(resp)
	}

	sessionOpts := []stream.SessionOpt{stream.WithContext(ctx)}
	if c.Logger != nil {
		sessionOpts = append(sessionOpts, stream.WithLogger(c.Logger.With("conversation", req.ConversationID)))
	}
	if c.Observer != nil {
		sessionOpts = append(sessionOpts, stream.WithObserver(c.Observer))
	}
	if idle := o.GetDuration(optIdleTimeout); idle > 0 {
		sessionOpts = append(sessionOpts, stream.WithIdleTimeout(idle))
	}
	return stream.NewSession(resp.Body, sessionOpts...), nil
}

// StreamTurn opens a stream and folds it into a turn, calling fn (which may
// be nil) with each event as it arrives. The turn is returned with a
// server error or transport fault, if any.
func (c *Client) StreamTurn(ctx context.Context, req schema.StreamRequest, fn func(schema.StreamEvent) error, opts ...opt.Opt) (*stream.Turn, error) {
	session, err := c.Stream(ctx, req, opts...)
	if err != nil {
		return nil, err
	}
	defer session.Cancel()

	turn := new(stream.Turn)
	if err := session.Run(func(event schema.StreamEvent) error {
		turn.Apply(event)
		if fn != nil {
			return fn(event)
		}
		return nil
	}); err != nil {
		return turn, err
	}
	return turn, session.Err()
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func statusErr(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if message := strings.TrimSpace(string(data)); message != "" {
		return fmt.Errorf("%w: %w: %s", aitemplate.ErrTransport, httpresponse.Err(resp.StatusCode), message)
	}
	return fmt.Errorf("%w: %w", aitemplate.ErrTransport, httpresponse.Err(resp.StatusCode))
}
