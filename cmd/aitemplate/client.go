package main

import (
	"os"
	"sync"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	httpclient "github.com/mutablelogic/go-aitemplate/pkg/httpclient"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	version "github.com/mutablelogic/go-aitemplate/pkg/version"
	oauth2 "golang.org/x/oauth2"
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Client returns a backend client configured from the global flags, using
// the --token flag or else a stored login for credentials
func (g *Globals) Client() (*httpclient.Client, error) {
	anon, err := g.anonymous()
	if err != nil {
		return nil, err
	}
	tokens := g.tokenSource(anon)
	if tokens == nil {
		return anon, nil
	}
	c, err := httpclient.New(g.URL, tokens, g.clientOpts()...)
	if err != nil {
		return nil, err
	}
	g.instrument(c)
	return c, nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// anonymous returns a client without credentials
func (g *Globals) anonymous() (*httpclient.Client, error) {
	c, err := httpclient.New(g.URL, nil, g.clientOpts()...)
	if err != nil {
		return nil, err
	}
	g.instrument(c)
	return c, nil
}

func (g *Globals) instrument(c *httpclient.Client) {
	c.Tracer = g.tracer
	if g.Debug {
		c.Logger = g.logger
	}
}

func (g *Globals) clientOpts() []client.ClientOpt {
	opts := []client.ClientOpt{
		client.OptUserAgent(g.execName + "/" + version.Version()),
	}
	if g.Debug || g.Verbose {
		opts = append(opts, client.OptTrace(os.Stderr, g.Verbose))
	}
	if g.tracer != nil {
		opts = append(opts, client.OptTracer(g.tracer))
	}
	if g.Timeout > 0 {
		opts = append(opts, client.OptTimeout(g.Timeout))
	}
	return opts
}

// tokenSource returns the credential for requests, refreshing a stored
// login with anon when it expires, or nil for anonymous requests
func (g *Globals) tokenSource(anon *httpclient.Client) oauth2.TokenSource {
	if g.Token != "" {
		return httpclient.StaticTokenSource(g.Token)
	}
	access := g.defaults.GetString(defaultAccessToken)
	if access == "" {
		return nil
	}
	login := &schema.LoginResponse{
		AccessToken:  access,
		RefreshToken: g.defaults.GetString(defaultRefreshToken),
		TokenType:    "Bearer",
	}
	if expiry, err := time.Parse(time.RFC3339, g.defaults.GetString(defaultExpiry)); err == nil {
		login.ExpiresIn = max(int64(time.Until(expiry)/time.Second), 1)
	}
	if login.RefreshToken == "" {
		return httpclient.StaticTokenSource(access)
	}
	return &storedTokenSource{
		TokenSource: httpclient.RefreshTokenSource(g.ctx, anon, login),
		defaults:    g.defaults,
		last:        access,
	}
}

// storedTokenSource saves refreshed tokens to the defaults
type storedTokenSource struct {
	sync.Mutex
	oauth2.TokenSource
	defaults *Defaults
	last     string
}

func (s *storedTokenSource) Token() (*oauth2.Token, error) {
	s.Lock()
	defer s.Unlock()
	token, err := s.TokenSource.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := saveToken(s.defaults, token); err != nil {
			return nil, err
		}
	}
	return token, nil
}

func saveToken(defaults *Defaults, token *oauth2.Token) error {
	kv := map[string]any{
		defaultAccessToken:  token.AccessToken,
		defaultRefreshToken: token.RefreshToken,
		defaultExpiry:       nil,
	}
	if !token.Expiry.IsZero() {
		kv[defaultExpiry] = token.Expiry.Format(time.RFC3339)
	}
	return defaults.Set(kv)
}
