package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	// Packages
	client "github.com/mutablelogic/go-client"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	oauth2 "golang.org/x/oauth2"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// refreshSource refreshes the access token from the backend on expiry
type refreshSource struct {
	sync.Mutex
	ctx     context.Context
	client  *Client
	refresh string
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Login exchanges a username and password for tokens
func (c *Client) Login(ctx context.Context, username, password string) (*schema.LoginResponse, error) {
	req := schema.LoginRequest{Username: username, Password: password}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Create request
	payload, err := client.NewJSONRequest(req)
	if err != nil {
		return nil, err
	}

	// Perform request, login is always anonymous
	var response schema.LoginResponse
	if err := c.DoWithContext(ctx, payload, &response, client.OptPath("auth", "login")); err != nil {
		return nil, err
	}
	return &response, nil
}

// Refresh exchanges a refresh token for new tokens. The backend takes the
// refresh token as the raw request body.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*schema.LoginResponse, error) {
	if refreshToken == "" {
		return nil, aitemplate.ErrBadParameter.With("refresh token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(nil, "auth", "refresh"), strings.NewReader(refreshToken))
	if err != nil {
		return nil, aitemplate.ErrBadParameter.With(err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", client.ContentTypeJson)

	resp, err := c.Client.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, aitemplate.ErrUnauthorized.With("refresh token rejected")
	} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusErr(resp)
	}

	var response schema.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Logout revokes the bearer token on the backend
func (c *Client) Logout(ctx context.Context) error {
	reqOpts, err := c.authOpts(client.OptPath("auth", "logout"))
	if err != nil {
		return err
	}
	return c.DoWithContext(ctx, client.NewRequestEx(http.MethodPost, ""), nil, reqOpts...)
}

// Me returns the authenticated user
func (c *Client) Me(ctx context.Context) (*schema.UserInfo, error) {
	var response schema.UserInfo
	if err := c.get(ctx, &response, "auth", "me"); err != nil {
		return nil, err
	}
	return &response, nil
}

// ChangePassword changes the password of the authenticated user
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := schema.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := req.Validate(); err != nil {
		return err
	}

	payload, err := client.NewJSONRequestEx(http.MethodPut, req, "")
	if err != nil {
		return err
	}
	reqOpts, err := c.authOpts(client.OptPath("auth", "password"))
	if err != nil {
		return err
	}
	return c.DoWithContext(ctx, payload, nil, reqOpts...)
}

// RefreshTokenSource returns a token source starting from a login response,
// which refreshes from the backend when the access token expires. The
// context is used for refresh requests.
func RefreshTokenSource(ctx context.Context, c *Client, login *schema.LoginResponse) oauth2.TokenSource {
	src := &refreshSource{ctx: ctx, client: c, refresh: login.RefreshToken}
	return oauth2.ReuseTokenSource(login.Token(time.Now()), src)
}

// StaticTokenSource returns a token source for a fixed access token, or nil
// when the token is empty
func StaticTokenSource(token string) oauth2.TokenSource {
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (s *refreshSource) Token() (*oauth2.Token, error) {
	s.Lock()
	defer s.Unlock()
	if s.refresh == "" {
		return nil, aitemplate.ErrUnauthorized.With("no refresh token")
	}
	response, err := s.client.Refresh(s.ctx, s.refresh)
	if err != nil {
		return nil, err
	}
	if response.RefreshToken != "" {
		s.refresh = response.RefreshToken
	}
	return response.Token(time.Now()), nil
}
