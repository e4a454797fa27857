// Package oidc verifies access tokens issued by the Keycloak realm.
package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gogotex/todo-api/pkg/logger"
	"github.com/gogotex/todo-api/pkg/middleware"
)

// Verifier checks signatures against the realm's published keys, plus expiry
// and issuer.
type Verifier struct {
	issuer   string
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer. An empty clientID skips the
// audience check; Keycloak access tokens carry "account" as audience unless
// an audience mapper is configured.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	logger.Infof("oidc: verifying tokens of %s", issuer)
	return &Verifier{
		issuer:   issuer,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID, SkipClientIDCheck: clientID == ""}),
	}, nil
}

func (v *Verifier) Issuer() string { return v.issuer }

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	tok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.issuer, err)
	}
	return tok, nil
}
