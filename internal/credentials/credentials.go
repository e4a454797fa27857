// Package credentials manages the login identities that back user profiles.
// Two providers exist: Keycloak (managed identity server, admin REST API) and
// Local (bcrypt hashes kept in the document store).
package credentials

import (
	"context"
	"net/http"
	"time"

	"github.com/gogotex/todo-api/internal/apperr"
)

// Error codes reported by every provider.
const (
	CodeEmailExists       = "auth/email-already-exists"
	CodeUserNotFound      = "auth/user-not-found"
	CodeInvalidPassword   = "auth/invalid-password"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeUserDisabled      = "auth/user-disabled"
	CodeInternal          = "auth/internal-error"
)

const MinPasswordLength = 6

// Record is the provider-independent view of one identity.
type Record struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Disabled    bool   `json:"disabled"`
	// TokensValidAfter is set once refresh tokens have been revoked.
	TokensValidAfter *time.Time `json:"tokensValidAfter,omitempty"`
}

type CreateRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// UpdateRequest changes only the non-nil fields.
type UpdateRequest struct {
	Email       *string
	Password    *string
	DisplayName *string
	Disabled    *bool
}

// Service is implemented by *Keycloak and *Local.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (string, error)
	Get(ctx context.Context, uid string) (*Record, error)
	Delete(ctx context.Context, uid string) error
	Update(ctx context.Context, uid string, req UpdateRequest) error
	GetByEmail(ctx context.Context, email string) (*Record, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

func userNotFound(key string) *apperr.Error {
	return apperr.Credential(CodeUserNotFound, "There is no user record corresponding to the provided identifier: "+key+".", http.StatusBadRequest)
}

func emailExists() *apperr.Error {
	return apperr.Credential(CodeEmailExists, "The email address is already in use by another account.", http.StatusBadRequest)
}

func invalidPassword() *apperr.Error {
	return apperr.Credential(CodeInvalidPassword, "The password must be a string with at least 6 characters.", http.StatusBadRequest)
}

func invalidCredential() *apperr.Error {
	return apperr.Credential(CodeInvalidCredential, "Invalid email or password.", http.StatusUnauthorized)
}

// UserDisabled is returned when a disabled account signs in.
func UserDisabled() *apperr.Error {
	return apperr.Credential(CodeUserDisabled, "The user account has been disabled.", http.StatusForbidden)
}
