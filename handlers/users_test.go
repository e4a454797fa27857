package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetUser(t *testing.T) {
	env := newTestEnv(t)
	uid, ts := env.signUp(t, "Ana", "ana@example.com")

	w := env.do(http.MethodGet, "/users/"+uid, "", ts.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.Equal(t, uid, got["id"])
	assert.Equal(t, "Ana", got["name"])
	assert.Equal(t, "ana@example.com", got["email"])
	assert.NotNil(t, got["createdAt"])
	assert.Nil(t, got["updatedAt"])
}

func TestGetUserRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/users/whatever", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/token-missing", decodeBody(t, w)["code"])
}

func TestGetMissingUser(t *testing.T) {
	env := newTestEnv(t)
	_, ts := env.signUp(t, "Ana", "ana@example.com")

	w := env.do(http.MethodGet, "/users/nobody", "", ts.AccessToken)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"code":"application/document-not-found","message":"Document 'users/nobody' was not found."}`, w.Body.String())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "Ana", "ana@example.com")

	w := env.do(http.MethodPost, "/users/create", `{"name":"Other","email":"ANA@example.com","password":"secret2"}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "auth/email-already-exists", decodeBody(t, w)["code"])
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/users/create", `{"name":"Ana","email":"not-an-email","password":"  12345  "}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{
		"code": "application/validations-fail",
		"message": "Validation fails.",
		"errors": {
			"_errors": [],
			"email": {"_errors": ["Invalid email"]},
			"password": {"_errors": ["Must contain at least 6 character(s)"]}
		}
	}`, w.Body.String())

	w = env.do(http.MethodPost, "/users/create", "", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/validations-fail", decodeBody(t, w)["code"])
}
