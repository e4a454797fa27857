package handlers

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gogotex/todo-api/internal/auth"
	"github.com/gogotex/todo-api/internal/credentials"
	"github.com/gogotex/todo-api/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "Ana", "ana@example.com")

	w := env.do(http.MethodPost, "/users/login", `{"email":"ana@example.com","password":"nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, credentials.CodeInvalidCredential, decodeBody(t, w)["code"])

	w = env.do(http.MethodPost, "/users/login", `{"email":"ghost@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, credentials.CodeInvalidCredential, decodeBody(t, w)["code"])
}

func TestLoginReturnsTokens(t *testing.T) {
	env := newTestEnv(t)
	_, ts := env.signUp(t, "Ana", "ana@example.com")
	assert.NotEmpty(t, ts.AccessToken)
	assert.NotEmpty(t, ts.RefreshToken)
	assert.Equal(t, 900, ts.ExpiresIn)
	assert.Equal(t, "Bearer", ts.TokenType)
	assert.True(t, env.redis.Exists("session:"+ts.RefreshToken))
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	_, ts := env.signUp(t, "Ana", "ana@example.com")

	w := env.do(http.MethodPost, "/users/refresh", `{"refreshToken":"`+ts.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	next := decodeBody(t, w)
	assert.NotEqual(t, ts.RefreshToken, next["refreshToken"])

	// single use
	w = env.do(http.MethodPost, "/users/refresh", `{"refreshToken":"`+ts.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, auth.CodeInvalidRefreshToken, decodeBody(t, w)["code"])

	w = env.do(http.MethodPost, "/users/refresh", `{}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/validations-fail", decodeBody(t, w)["code"])
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	env := newTestEnv(t)
	uid, _ := env.signUp(t, "Ana", "ana@example.com")
	require.NoError(t, env.store.Collection(credentials.LocalCollection).Update(context.Background(), uid, database.Fields{"disabled": true}))

	w := env.do(http.MethodPost, "/users/login", `{"email":"ana@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, credentials.CodeUserDisabled, decodeBody(t, w)["code"])
}

func TestLogoutBlacklistsAccessAndDropsRefresh(t *testing.T) {
	env := newTestEnv(t)
	_, ts := env.signUp(t, "Ana", "ana@example.com")

	w := env.do(http.MethodPost, "/users/logout", `{"refreshToken":"`+ts.RefreshToken+`"}`, ts.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.True(t, env.redis.Exists("blacklist:access:"+ts.AccessToken))
	assert.False(t, env.redis.Exists("session:"+ts.RefreshToken))

	w = env.do(http.MethodGet, "/to-do", "", ts.AccessToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/invalid-token", decodeBody(t, w)["code"])

	w = env.do(http.MethodPost, "/users/refresh", `{"refreshToken":"`+ts.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	_, ts := env.signUp(t, "Ana", "ana@example.com")

	w := env.do(http.MethodPost, "/users/logout", "", ts.AccessToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Signed out."}`, w.Body.String())

	w = env.do(http.MethodPost, "/users/logout", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutReadsChunkedBody(t *testing.T) {
	env := newTestEnv(t)
	_, ts := env.signUp(t, "Ana", "ana@example.com")
	require.True(t, env.redis.Exists("session:"+ts.RefreshToken))

	// a reader of unknown length leaves ContentLength at -1, as with chunked uploads
	body := io.MultiReader(strings.NewReader(`{"refreshToken":"` + ts.RefreshToken + `"}`))
	req := httptest.NewRequest(http.MethodPost, "/users/logout", body)
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.AccessToken)
	require.EqualValues(t, -1, req.ContentLength)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, env.redis.Exists("session:"+ts.RefreshToken))

	w = env.do(http.MethodPost, "/users/refresh", `{"refreshToken":"`+ts.RefreshToken+`"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	_, ts := env.signUp(t, "Ana", "ana@example.com")

	w := env.do(http.MethodPost, "/users/logout", `{"refreshToken":`, ts.AccessToken)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestParseExpFromJWT_VariousFormats(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s1","exp":1700000000}`))
	expTime, err := parseExpFromJWT("hdr." + payload + ".sig")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0), expTime)

	fractional := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1700000000.5}`))
	expTime, err = parseExpFromJWT("hdr." + fractional + ".sig")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), expTime.Unix())

	nopayload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s2"}`))
	_, err = parseExpFromJWT("hdr." + nopayload + ".sig")
	require.Error(t, err)

	_, err = parseExpFromJWT("not.a.jwt")
	require.Error(t, err)
}
