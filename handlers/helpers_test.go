package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gogotex/todo-api/internal/auth"
	"github.com/gogotex/todo-api/internal/credentials"
	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/sessions"
	"github.com/gogotex/todo-api/internal/todos"
	"github.com/gogotex/todo-api/internal/tokens"
	"github.com/gogotex/todo-api/internal/users"
	"github.com/gogotex/todo-api/pkg/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// testEnv wires the routes the way main does, on the in-memory store and
// miniredis.
type testEnv struct {
	router *gin.Engine
	store  *database.MemoryStore
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T, opts ...todos.Option) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	store := database.NewMemoryStore()
	creds := credentials.NewLocal(store, credentials.WithBcryptCost(bcrypt.MinCost))
	issuer := tokens.NewIssuer(testSecret, "todo-api", 15*time.Minute)
	verifier := tokens.NewVerifier(testSecret, "todo-api", tokens.WithRevocationCheck(creds.TokensValidAfter))
	blacklist := sessions.NewBlacklist(rc)
	sess := sessions.NewService(sessions.NewRedisRepository(rc, ""))
	authMW := middleware.AuthMiddleware(verifier, blacklist)

	r := gin.New()
	r.Use(middleware.CatchAll(), middleware.ErrorTranslator())
	root := r.Group("/")
	NewUserHandler(users.NewService(users.NewRepository(store), creds)).Register(root, authMW)
	NewAuthHandler(auth.NewLocal(creds, issuer, sess, 15*time.Minute, time.Hour), blacklist).Register(root, authMW)
	NewTodoHandler(todos.NewService(todos.NewRepository(store), opts...)).Register(root, authMW)

	return &testEnv{router: r, store: store, redis: m}
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "handlers-test")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// signUp creates a user and signs in, returning the uid and the token set.
func (e *testEnv) signUp(t *testing.T, name, email string) (string, auth.TokenSet) {
	t.Helper()
	w := e.do(http.MethodPost, "/users/create", `{"name":"`+name+`","email":"`+email+`","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct{ ID string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = e.do(http.MethodPost, "/users/login", `{"email":"`+email+`","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ts auth.TokenSet
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ts))
	return created.ID, ts
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
