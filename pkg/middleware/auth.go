package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/internal/apperr"
)

const (
	CodeTokenMissing      = "application/token-missing"
	CodeTokenMalformatted = "application/token-malformatted"
	CodeInvalidToken      = "application/invalid-token"

	// ClaimsKey holds the verified claims (map[string]interface{}) in the gin context.
	ClaimsKey = "claims"
	// TokenKey holds the raw bearer token.
	TokenKey = "token"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// Blacklist reports revoked access tokens. A nil Blacklist disables the check.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

var bearerScheme = regexp.MustCompile(`(?i)^Bearer$`)

func tokenMissing() *apperr.Error {
	return apperr.API("JWT token is missing", CodeTokenMissing, 0)
}

func tokenMalformatted() *apperr.Error {
	return apperr.API("Token malformatted.", CodeTokenMalformatted, http.StatusNotAcceptable)
}

func invalidToken() *apperr.Error {
	return apperr.API("Invalid token", CodeInvalidToken, http.StatusUnauthorized)
}

// abort records err for the error handlers and stops the chain.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier.
// Failures are recorded on the context and rendered by ErrorTranslator.
func AuthMiddleware(ver Verifier, bl Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			abort(c, tokenMissing())
			return
		}
		parts := strings.Split(auth, " ")
		if len(parts) != 2 || !bearerScheme.MatchString(parts[0]) {
			abort(c, tokenMalformatted())
			return
		}
		raw := parts[1]

		if bl != nil {
			revoked, err := bl.IsBlacklisted(c.Request.Context(), raw)
			if err != nil {
				abort(c, err)
				return
			}
			if revoked {
				abort(c, invalidToken())
				return
			}
		}

		tok, err := ver.Verify(c.Request.Context(), raw)
		if err != nil {
			abort(c, apperr.Wrap(err, invalidToken()))
			return
		}
		var claims map[string]interface{}
		if err := tok.Claims(&claims); err != nil {
			abort(c, apperr.Wrap(err, invalidToken()))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, raw)
		c.Next()
	}
}

// Claims returns the verified claims, or nil on unauthenticated routes.
func Claims(c *gin.Context) map[string]interface{} {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

// UID is the caller's user id: the "uid" claim when present, else "sub".
func UID(c *gin.Context) string {
	claims := Claims(c)
	if uid, ok := claims["uid"].(string); ok && uid != "" {
		return uid
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// RawToken returns the bearer token accepted by AuthMiddleware.
func RawToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
