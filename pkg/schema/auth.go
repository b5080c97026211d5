package schema

import (
	"time"

	// Packages
	aitemplate "github.com/mutablelogic/go-aitemplate"
	types "github.com/mutablelogic/go-server/pkg/types"
	oauth2 "golang.org/x/oauth2"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by login and refresh.
type LoginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType,omitempty"`
	ExpiresIn    int64     `json:"expiresIn,omitempty"` // seconds
	User         *UserInfo `json:"user,omitempty"`
}

type UserInfo struct {
	ID       int64      `json:"id,omitempty" yaml:"id,omitempty"`
	Username string     `json:"username" yaml:"username"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	Email    string     `json:"email,omitempty" yaml:"email,omitempty"`
	Status   int        `json:"status,omitempty" yaml:"status,omitempty"`
	Roles    []RoleInfo `json:"roles,omitempty" yaml:"roles,omitempty"`
}

type RoleInfo struct {
	ID       int64  `json:"id,omitempty" yaml:"id,omitempty"`
	RoleCode string `json:"roleCode" yaml:"roleCode"`
	RoleName string `json:"roleName,omitempty" yaml:"roleName,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (r LoginRequest) Validate() error {
	if r.Username == "" {
		return aitemplate.ErrBadParameter.With("username is required")
	}
	if r.Password == "" {
		return aitemplate.ErrBadParameter.With("password is required")
	}
	return nil
}

func (r ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" || r.NewPassword == "" {
		return aitemplate.ErrBadParameter.With("old and new password are required")
	}
	return nil
}

// Token converts the response into an oauth2 token, with the expiry
// computed relative to now. A zero ExpiresIn yields a token without expiry.
func (r LoginResponse) Token(now time.Time) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if r.ExpiresIn > 0 {
		token.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return token
}

// HasRole returns true if the user holds the role code.
func (u UserInfo) HasRole(code string) bool {
	for _, role := range u.Roles {
		if role.RoleCode == code {
			return true
		}
	}
	return false
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (r LoginResponse) String() string {
	return types.Stringify(r)
}

func (u UserInfo) String() string {
	return types.Stringify(u)
}
