package users

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/credentials"
	"github.com/gogotex/todo-api/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errWrite = errors.New("profile write failed")

// failingStore refuses every Set, the write profile creation relies on.
type failingStore struct{ database.Store }

func (f failingStore) Collection(name string) database.Collection {
	return failingCollection{f.Store.Collection(name)}
}

type failingCollection struct{ database.Collection }

func (failingCollection) Set(context.Context, string, database.Fields, bool) error {
	return errWrite
}

func newCreds() *credentials.Local {
	return credentials.NewLocal(database.NewMemoryStore(), credentials.WithBcryptCost(bcrypt.MinCost))
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	creds := newCreds()
	svc := NewService(NewRepository(database.NewMemoryStore()), creds)

	id, err := svc.Create(ctx, NewUser{Name: "Ana", Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)

	rec, err := creds.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, id, rec.UID)
	assert.Equal(t, "Ana", rec.DisplayName)

	u, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, "a@b.com", u.Email)
	require.NotNil(t, u.CreatedAt)
	assert.Nil(t, u.UpdatedAt)
}

func TestCreateDeletesCredentialWhenProfileFails(t *testing.T) {
	ctx := context.Background()
	creds := newCreds()
	svc := NewService(NewRepository(failingStore{database.NewMemoryStore()}), creds)

	_, err := svc.Create(ctx, NewUser{Name: "Ana", Email: "a@b.com", Password: "secret1"})
	require.Error(t, err)
	require.ErrorIs(t, err, errWrite)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeProfileNotCreated, e.Code)
	assert.Equal(t, http.StatusInternalServerError, e.HTTPStatus())

	_, err = creds.GetByEmail(ctx, "a@b.com")
	require.True(t, apperr.IsKind(err, apperr.KindCredential))
	e, _ = apperr.As(err)
	assert.Equal(t, credentials.CodeUserNotFound, e.Code)
}

func TestCreateSurfacesCredentialErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewRepository(database.NewMemoryStore()), newCreds())

	_, err := svc.Create(ctx, NewUser{Name: "Ana", Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, NewUser{Name: "Bia", Email: "a@b.com", Password: "secret2"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, credentials.CodeEmailExists, e.Code)
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus())
}

func TestGetByIDMissing(t *testing.T) {
	svc := NewService(NewRepository(database.NewMemoryStore()), newCreds())
	_, err := svc.GetByID(context.Background(), "nope")
	require.True(t, apperr.IsKind(err, apperr.KindDocumentNotFound))
	assert.Equal(t, "Document 'users/nope' was not found.", err.Error())
}
