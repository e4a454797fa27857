package auth

import (
	"context"
	"time"

	"github.com/gogotex/todo-api/internal/credentials"
	"github.com/gogotex/todo-api/internal/sessions"
	"github.com/gogotex/todo-api/internal/tokens"
)

// LocalCredentials is the part of *credentials.Local sign-in needs.
type LocalCredentials interface {
	Authenticate(ctx context.Context, email, password string) (*credentials.Record, error)
	Get(ctx context.Context, uid string) (*credentials.Record, error)
	TokensValidAfter(ctx context.Context, uid string) (time.Time, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Local issues HS256 access tokens and keeps refresh sessions itself.
type Local struct {
	creds      LocalCredentials
	issuer     *tokens.Issuer
	sessions   *sessions.Service
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewLocal(creds LocalCredentials, issuer *tokens.Issuer, sess *sessions.Service, accessTTL, refreshTTL time.Duration) *Local {
	return &Local{creds: creds, issuer: issuer, sessions: sess, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (l *Local) SignIn(ctx context.Context, email, password string, dev Device) (*TokenSet, error) {
	rec, err := l.creds.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if rec.Disabled {
		return nil, credentials.UserDisabled()
	}
	refresh, err := l.sessions.CreateSession(ctx, rec.UID, dev.Hash(), l.refreshTTL)
	if err != nil {
		return nil, err
	}
	return l.tokenSet(rec, refresh)
}

// Refresh rotates the refresh token. Sessions created before the
// credential's revocation time are refused and dropped.
func (l *Local) Refresh(ctx context.Context, refreshToken string, dev Device) (*TokenSet, error) {
	sess, err := l.sessions.ValidateRefresh(ctx, refreshToken, dev.Hash())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, invalidRefreshToken()
	}
	validAfter, err := l.creds.TokensValidAfter(ctx, sess.Sub)
	if err != nil {
		return nil, err
	}
	if sess.CreatedAt != nil && sess.CreatedAt.Before(validAfter) {
		_ = l.sessions.DeleteRefresh(ctx, refreshToken)
		return nil, invalidRefreshToken()
	}
	rec, err := l.creds.Get(ctx, sess.Sub)
	if err != nil {
		return nil, err
	}
	if rec.Disabled {
		return nil, credentials.UserDisabled()
	}
	_, next, err := l.sessions.Rotate(ctx, refreshToken, dev.Hash(), l.refreshTTL)
	if err != nil {
		return nil, err
	}
	if next == "" {
		// consumed concurrently
		return nil, invalidRefreshToken()
	}
	return l.tokenSet(rec, next)
}

func (l *Local) SignOut(ctx context.Context, uid, refreshToken string) error {
	if refreshToken != "" {
		if err := l.sessions.DeleteRefresh(ctx, refreshToken); err != nil {
			return err
		}
	}
	return l.creds.RevokeRefreshTokens(ctx, uid)
}

func (l *Local) tokenSet(rec *credentials.Record, refresh string) (*TokenSet, error) {
	access, _, err := l.issuer.Issue(tokens.Identity{UID: rec.UID, Email: rec.Email, Name: rec.DisplayName})
	if err != nil {
		return nil, err
	}
	return &TokenSet{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(l.accessTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}
