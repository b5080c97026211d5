package schema

import (
	"time"

	// Packages
	jwt "github.com/golang-jwt/jwt/v5"
	aitemplate "github.com/mutablelogic/go-aitemplate"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Claims are the registered claims of an access token, read without
// verifying the signature. Use for display only.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	IssuedAt  time.Time `json:"iat,omitzero"`
	ExpiresAt time.Time `json:"exp,omitzero"`
	Roles     []string  `json:"roles,omitempty"`
}

// AccessClaims are the claims the backend signs into access tokens.
type AccessClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// TokenClaims parses a JWT without verifying it.
func TokenClaims(token string) (*Claims, error) {
	var claims AccessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, aitemplate.ErrBadParameter.Withf("token: %v", err)
	}
	result := &Claims{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
		Roles:   claims.Roles,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// Expired returns true if the claims carry an expiry before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

///////////////////////////////////////////////////////////////////////////////
// STRINGIFY

func (c Claims) String() string {
	return types.Stringify(c)
}
