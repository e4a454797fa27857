// Package auth implements sign-in, token refresh and sign-out for both
// credential providers.
package auth

import (
	"context"
	"net/http"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/sessions"
)

const CodeInvalidRefreshToken = "auth/invalid-refresh-token"

// TokenSet is returned to clients on sign-in and refresh.
type TokenSet struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

// Device identifies the client a refresh token is bound to.
type Device struct {
	UserAgent string
	IP        string
	Origin    string
}

func (d Device) Hash() string {
	return sessions.DeviceHash(d.UserAgent, d.IP, d.Origin)
}

// Authenticator is implemented by *Local and *Keycloak.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string, dev Device) (*TokenSet, error)
	Refresh(ctx context.Context, refreshToken string, dev Device) (*TokenSet, error)
	// SignOut drops refreshToken (when given) and revokes every refresh
	// token of uid.
	SignOut(ctx context.Context, uid, refreshToken string) error
}

func invalidRefreshToken() *apperr.Error {
	return apperr.Credential(CodeInvalidRefreshToken, "Refresh token is invalid or expired.", http.StatusUnauthorized)
}
