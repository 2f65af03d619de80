// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file establishes the caller's identity. Tokens are HS256 JWTs issued by
// the portal's account service and carry the user id in the "userId" claim
// ("sub" is accepted as a fallback). A token may arrive as:
//
//   - Authorization: Bearer <jwt>
//   - the auth cookie (default name "token")
//   - the "token" query parameter (browser websocket upgrades cannot set headers)
//
// With an empty secret the middleware runs in development mode and trusts the
// X-User-ID header instead.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ctxKeyUserID is the Gin context key holding the authenticated user id.
	ctxKeyUserID = "userID"
	// HeaderUserID carries the caller id in development mode.
	HeaderUserID = "X-User-ID"
	// QueryToken is the query parameter accepted as a token source.
	QueryToken = "token"
)

// Authentication failures.
var (
	ErrNoCredentials = errors.New("no credentials")
	ErrInvalidToken  = errors.New("invalid token")
)

// AuthOptions configures Auth.
type AuthOptions struct {
	// Secret is the HS256 key. Empty enables development mode.
	Secret string
	// CookieName is the cookie checked for a token. Defaults to "token".
	CookieName string
	// Optional lets requests without any credentials through unauthenticated.
	// Presented but invalid credentials are still rejected.
	Optional bool
	// Leeway tolerates clock skew on exp/nbf.
	Leeway time.Duration
}

// Claims is the token payload issued by the portal.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves the caller id of a request.
func (o AuthOptions) Identity(r *http.Request) (string, error) {
	if o.Secret == "" {
		if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
			return id, nil
		}
		return "", ErrNoCredentials
	}
	raw := o.token(r)
	if raw == "" {
		return "", ErrNoCredentials
	}
	return ParseToken(o.Secret, raw, o.Leeway)
}

// token picks the first non-empty token source: header, cookie, query.
func (o AuthOptions) token(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, rest, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
	}
	name := o.CookieName
	if name == "" {
		name = "token"
	}
	if ck, err := r.Cookie(name); err == nil && ck.Value != "" {
		return ck.Value
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryToken))
}

// ParseToken validates raw against secret and returns the user id it names.
func ParseToken(secret, raw string, leeway time.Duration) (string, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
	)
	if err != nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	id := strings.TrimSpace(claims.UserID)
	if id == "" {
		id = strings.TrimSpace(claims.Subject)
	}
	if id == "" {
		return "", ErrInvalidToken
	}
	return id, nil
}

// Auth stores the caller id under the "userID" context key or answers 401.
func Auth(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := opts.Identity(c.Request)
		switch {
		case err == nil:
			c.Set(ctxKeyUserID, id)
			if _, ok := c.Get(loggerKey); ok {
				l := LoggerFrom(c).With().Str("user_id", id).Logger()
				c.Set(loggerKey, &l)
			}
		case errors.Is(err, ErrNoCredentials) && opts.Optional:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": requestIDOf(c),
				"code":       "unauthorized",
				"message":    "authentication required",
			})
			return
		}
		c.Next()
	}
}

// UserIDFrom returns the authenticated user id, or "" when there is none.
func UserIDFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// requestIDOf returns the correlation id set by RequestID, falling back to the
// response header.
func requestIDOf(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.Writer.Header().Get(requestIDHeader)
}
