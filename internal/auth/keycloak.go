package auth

import (
	"context"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/credentials"
)

// Keycloak delegates every step to the realm's token endpoints.
type Keycloak struct {
	kc *credentials.Keycloak
}

func NewKeycloak(kc *credentials.Keycloak) *Keycloak {
	return &Keycloak{kc: kc}
}

func (k *Keycloak) SignIn(ctx context.Context, email, password string, _ Device) (*TokenSet, error) {
	tr, err := k.kc.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return fromKeycloak(tr), nil
}

func (k *Keycloak) Refresh(ctx context.Context, refreshToken string, _ Device) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, invalidRefreshToken()
	}
	tr, err := k.kc.Refresh(ctx, refreshToken)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Code == credentials.CodeInvalidCredential {
			return nil, invalidRefreshToken()
		}
		return nil, err
	}
	return fromKeycloak(tr), nil
}

func (k *Keycloak) SignOut(ctx context.Context, uid, refreshToken string) error {
	if refreshToken != "" {
		if err := k.kc.SignOut(ctx, refreshToken); err != nil {
			return err
		}
	}
	return k.kc.RevokeRefreshTokens(ctx, uid)
}

func fromKeycloak(tr *credentials.TokenResponse) *TokenSet {
	return &TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		TokenType:    "Bearer",
	}
}
