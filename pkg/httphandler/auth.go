package httphandler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	// Packages
	jwt "github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
	schema "github.com/mutablelogic/go-aitemplate/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
	bcrypt "golang.org/x/crypto/bcrypt"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// access is the level a route needs when auth is enabled
type access int

// principal is the authenticated caller of a request
type principal struct {
	Username string
	Roles    []string
	ID       string // token id
	Expires  time.Time
}

type principalKey struct{}

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	accessPublic access = iota
	accessUser
	accessAdmin
)

const (
	tokenIssuer     = "aitemplate"
	audienceAccess  = "access"
	audienceRefresh = "refresh"
	maxRefreshBody  = 8 << 10
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /auth/login
func LoginHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/auth/login", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				var req schema.LoginRequest
				if err := httprequest.Read(r, &req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				} else if err := req.Validate(); err != nil {
					_ = httpresponse.Error(w, httpErr(err))
					return
				}
				b.RLock()
				u := b.users[req.Username]
				b.RUnlock()
				if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
					_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized), "invalid username or password")
					return
				}
				b.login(w, r, u)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Exchange a username and password for tokens",
			},
		})
}

// Path: /auth/refresh
func RefreshHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				body, err := io.ReadAll(io.LimitReader(r.Body, maxRefreshBody))
				if err != nil {
					_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With(err))
					return
				}
				token := strings.Trim(strings.TrimSpace(string(body)), `"`)
				claims, err := b.verify(token, audienceRefresh)
				if err != nil {
					_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized), err.Error())
					return
				}
				b.RLock()
				u := b.users[claims.Subject]
				b.RUnlock()
				if u == nil {
					_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized), "unknown user")
					return
				}
				b.revoke(claims.ID, claims.ExpiresAt.Time)
				b.login(w, r, u)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Exchange a refresh token, sent as the raw body, for new tokens",
			},
		})
}

// Path: /auth/logout
func LogoutHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				if p := b.authenticate(r); p != nil {
					b.revoke(p.ID, p.Expires)
				}
				_ = httpresponse.JSON(w, http.StatusOK, 0, struct{}{})
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Revoke the bearer token",
			},
		})
}

// Path: /auth/me
func MeHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/auth/me", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				u := b.caller(r)
				if u == nil {
					_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized))
					return
				}
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), u.UserInfo)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Return the authenticated user",
			},
		})
}

// Path: /auth/password
func PasswordHandler(b *Backend) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/auth/password", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPut:
				u := b.caller(r)
				if u == nil {
					_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized))
					return
				}
				var req schema.ChangePasswordRequest
				if err := httprequest.Read(r, &req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				} else if err := req.Validate(); err != nil {
					_ = httpresponse.Error(w, httpErr(err))
					return
				}
				if err := b.changePassword(u, req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				}
				_ = httpresponse.JSON(w, http.StatusOK, 0, struct{}{})
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Put: &openapi.Operation{
				Description: "Change the password of the authenticated user",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - MIDDLEWARE

// guard rejects requests below the access level when auth is enabled. The
// caller, if any, is always attached to the request context.
func (b *Backend) guard(level access, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := b.authenticate(r)
		if p != nil {
			r = r.WithContext(context.WithValue(r.Context(), principalKey{}, p))
		}
		if b.auth && level > accessPublic {
			switch {
			case p == nil:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusUnauthorized), "authentication required")
				return
			case level == accessAdmin && !slices.Contains(p.Roles, RoleAdmin):
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusForbidden), "admin role required")
				return
			}
		}
		next(w, r)
	}
}

// authenticate reads a bearer token from the Authorization header, or the
// token query parameter, and returns nil when there is no valid token
func (b *Backend) authenticate(r *http.Request) *principal {
	token := r.URL.Query().Get(schema.ParamToken)
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			token = strings.TrimSpace(value)
		}
	}
	if token == "" {
		return nil
	}
	claims, err := b.verify(token, audienceAccess)
	if err != nil {
		b.debug("rejected token", "error", err)
		return nil
	}
	return &principal{
		Username: claims.Subject,
		Roles:    claims.Roles,
		ID:       claims.ID,
		Expires:  claims.ExpiresAt.Time,
	}
}

// caller returns the user for the request principal, or nil
func (b *Backend) caller(r *http.Request) *user {
	p, _ := r.Context().Value(principalKey{}).(*principal)
	if p == nil {
		return nil
	}
	b.RLock()
	defer b.RUnlock()
	return b.users[p.Username]
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS - TOKENS

// login issues an access and refresh token pair for the user
func (b *Backend) login(w http.ResponseWriter, r *http.Request, u *user) {
	access, err := b.issue(u, audienceAccess, b.accessTTL)
	if err != nil {
		_ = httpresponse.Error(w, httpresponse.ErrInternalError.With(err))
		return
	}
	refresh, err := b.issue(u, audienceRefresh, b.refreshTTL)
	if err != nil {
		_ = httpresponse.Error(w, httpresponse.ErrInternalError.With(err))
		return
	}
	info := u.UserInfo
	_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), schema.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(b.accessTTL / time.Second),
		User:         &info,
	})
}

func (b *Backend) issue(u *user, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := schema.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   u.Username,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	for _, role := range u.Roles {
		claims.Roles = append(claims.Roles, role.RoleCode)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.key)
}

// verify checks the signature, issuer, audience and expiry of a token, and
// that it has not been revoked
func (b *Backend) verify(token, audience string) (*schema.AccessClaims, error) {
	var claims schema.AccessClaims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return b.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	); err != nil {
		return nil, err
	}
	b.RLock()
	_, revoked := b.revoked[claims.ID]
	b.RUnlock()
	if revoked {
		return nil, errors.New("token revoked")
	}
	return &claims, nil
}

// revoke blocks a token id until it expires, dropping expired entries
func (b *Backend) revoke(id string, expires time.Time) {
	if id == "" {
		return
	}
	now := time.Now()
	b.Lock()
	defer b.Unlock()
	for k, v := range b.revoked {
		if v.Before(now) {
			delete(b.revoked, k)
		}
	}
	b.revoked[id] = expires
}

func (b *Backend) changePassword(u *user, req schema.ChangePasswordRequest) error {
	b.Lock()
	defer b.Unlock()
	if bcrypt.CompareHashAndPassword(u.hash, []byte(req.OldPassword)) != nil {
		return httpresponse.ErrBadRequest.With("old password does not match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	if err != nil {
		return httpresponse.ErrInternalError.With(err)
	}
	u.hash = hash
	return nil
}
