package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/credentials"
	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/sessions"
	"github.com/gogotex/todo-api/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "0123456789abcdef0123456789abcdef"

var (
	laptop = Device{UserAgent: "firefox", IP: "10.0.0.1"}
	phone  = Device{UserAgent: "okhttp", IP: "10.0.0.2"}
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	e, ok := apperr.As(err)
	require.True(t, ok, "want *apperr.Error, got %v", err)
	require.Equal(t, code, e.Code)
}

func newLocal(t *testing.T) (*Local, string) {
	t.Helper()
	store := database.NewMemoryStore()
	creds := credentials.NewLocal(store, credentials.WithBcryptCost(bcrypt.MinCost))
	uid, err := creds.Create(context.Background(), credentials.CreateRequest{Email: "a@b.com", Password: "secret1", DisplayName: "Ana"})
	require.NoError(t, err)
	a := NewLocal(creds, tokens.NewIssuer(secret, "todo-api", 15*time.Minute),
		sessions.NewService(sessions.NewDocumentRepository(store)), 15*time.Minute, time.Hour)
	return a, uid
}

func TestLocalSignIn(t *testing.T) {
	ctx := context.Background()
	a, uid := newLocal(t)

	_, err := a.SignIn(ctx, "a@b.com", "wrong-pw", laptop)
	requireCode(t, err, credentials.CodeInvalidCredential)

	ts, err := a.SignIn(ctx, "A@B.com", "secret1", laptop)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", ts.TokenType)
	assert.Equal(t, 900, ts.ExpiresIn)
	assert.NotEmpty(t, ts.RefreshToken)

	tok, err := tokens.NewVerifier(secret, "todo-api").Verify(ctx, ts.AccessToken)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, uid, claims["uid"])
	assert.Equal(t, "a@b.com", claims["email"])
	assert.Equal(t, "Ana", claims["name"])
}

func TestLocalRefreshRotates(t *testing.T) {
	ctx := context.Background()
	a, _ := newLocal(t)
	ts, err := a.SignIn(ctx, "a@b.com", "secret1", laptop)
	require.NoError(t, err)

	_, err = a.Refresh(ctx, ts.RefreshToken, phone)
	requireCode(t, err, CodeInvalidRefreshToken)

	next, err := a.Refresh(ctx, ts.RefreshToken, laptop)
	require.NoError(t, err)
	assert.NotEqual(t, ts.RefreshToken, next.RefreshToken)
	assert.NotEmpty(t, next.AccessToken)

	_, err = a.Refresh(ctx, ts.RefreshToken, laptop)
	requireCode(t, err, CodeInvalidRefreshToken)

	_, err = a.Refresh(ctx, "", laptop)
	requireCode(t, err, CodeInvalidRefreshToken)
}

func TestLocalSignOutRevokesOtherSessions(t *testing.T) {
	ctx := context.Background()
	a, uid := newLocal(t)
	first, err := a.SignIn(ctx, "a@b.com", "secret1", laptop)
	require.NoError(t, err)
	second, err := a.SignIn(ctx, "a@b.com", "secret1", phone)
	require.NoError(t, err)

	// revocation must land strictly after the sessions were stored
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.SignOut(ctx, uid, first.RefreshToken))

	_, err = a.Refresh(ctx, first.RefreshToken, laptop)
	requireCode(t, err, CodeInvalidRefreshToken)
	_, err = a.Refresh(ctx, second.RefreshToken, phone)
	requireCode(t, err, CodeInvalidRefreshToken)

	time.Sleep(10 * time.Millisecond)
	again, err := a.SignIn(ctx, "a@b.com", "secret1", laptop)
	require.NoError(t, err)
	_, err = a.Refresh(ctx, again.RefreshToken, laptop)
	require.NoError(t, err)
}

func TestKeycloakRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/todo/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("refresh_token") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "acc", "refresh_token": "ref2", "expires_in": 300,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	k := NewKeycloak(credentials.NewKeycloak(credentials.KeycloakConfig{URL: srv.URL, Realm: "todo", ClientID: "todo-api"}, srv.Client()))
	ctx := context.Background()

	ts, err := k.Refresh(ctx, "good", Device{})
	require.NoError(t, err)
	assert.Equal(t, &TokenSet{AccessToken: "acc", RefreshToken: "ref2", ExpiresIn: 300, TokenType: "Bearer"}, ts)

	_, err = k.Refresh(ctx, "stale", Device{})
	requireCode(t, err, CodeInvalidRefreshToken)
	_, err = k.Refresh(ctx, "", Device{})
	requireCode(t, err, CodeInvalidRefreshToken)
}
