package httpclient

import (
	"net/http"
	"net/url"
	"strings"

	// Packages
	log "github.com/charmbracelet/log"
	client "github.com/mutablelogic/go-client"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	trace "go.opentelemetry.io/otel/trace"
	oauth2 "golang.org/x/oauth2"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is the chat backend client. It wraps the base HTTP client for the
// REST endpoints, and opens chat streams on the underlying *http.Client.
type Client struct {
	*client.Client

	// Logger receives stream diagnostics when set
	Logger *log.Logger

	// Observer receives stream session activity when set
	Observer stream.Observer

	// Tracer wraps stream requests in a span when set
	Tracer trace.Tracer

	endpoint *url.URL
	tokens   oauth2.TokenSource
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a client with the given base URL, which should include the
// API prefix, e.g. "http://localhost:8080/api". The token source supplies
// the bearer credential for every request; nil makes anonymous requests.
func New(endpoint string, tokens oauth2.TokenSource, opts ...client.ClientOpt) (*Client, error) {
	c := new(Client)
	if u, err := url.Parse(endpoint); err != nil {
		return nil, aitemplate.ErrBadParameter.Withf("endpoint: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return nil, aitemplate.ErrBadParameter.Withf("endpoint: unsupported scheme %q", u.Scheme)
	} else {
		u.Path = strings.TrimSuffix(u.Path, "/")
		c.endpoint = u
	}
	if client, err := client.New(append(opts, client.OptEndpoint(c.endpoint.String()))...); err != nil {
		return nil, err
	} else {
		c.Client = client
	}
	c.tokens = tokens
	return c, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Endpoint returns the base URL of the backend
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// TokenSource returns the credential provider, which may be nil
func (c *Client) TokenSource() oauth2.TokenSource {
	return c.tokens
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// token returns the current credential, or nil for anonymous requests
func (c *Client) token() (*oauth2.Token, error) {
	if c.tokens == nil {
		return nil, nil
	}
	token, err := c.tokens.Token()
	if err != nil {
		return nil, aitemplate.ErrUnauthorized.Withf("token: %v", err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, nil
	}
	return token, nil
}

// authOpts returns the request options carrying the credential
func (c *Client) authOpts(opts ...client.RequestOpt) ([]client.RequestOpt, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	if token != nil {
		opts = append(opts, client.OptReqHeader("Authorization", token.Type()+" "+token.AccessToken))
	}
	return opts, nil
}

// url returns the absolute URL for the path segments
func (c *Client) url(query url.Values, segments ...string) string {
	u := *c.endpoint
	for _, segment := range segments {
		u.Path += "/" + segment
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// httpClient returns a copy of the underlying client without the overall
// request timeout, which would otherwise end long-lived streams
func (c *Client) httpClient() *http.Client {
	hc := *c.Client.Client
	hc.Timeout = 0
	return &hc
}
