package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/gogotex/todo-api/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(NewDocumentRepository(database.NewMemoryStore()))
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestCreateAndValidateSession(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	device := DeviceHash("curl/8", "10.0.0.1", "")

	r, err := svc.CreateSession(ctx, "sub-1", device, time.Hour)
	require.NoError(t, err)
	require.Len(t, r, 64)

	sess, err := svc.ValidateRefresh(ctx, r, device)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "sub-1", sess.Sub)
	assert.NotEmpty(t, sess.ID)
	assert.NotNil(t, sess.CreatedAt)

	require.NoError(t, svc.DeleteRefresh(ctx, r))
	sess, err = svc.ValidateRefresh(ctx, r, device)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestValidateRefreshRejectsOtherDevice(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "sub-1", DeviceHash("ua", "1.1.1.1", ""), time.Hour)
	require.NoError(t, err)

	sess, err := svc.ValidateRefresh(ctx, r, DeviceHash("ua", "2.2.2.2", ""))
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestValidateRefreshExpired(t *testing.T) {
	svc, now := newService(t)
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "sub-1", "", time.Minute)
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)
	sess, err := svc.ValidateRefresh(ctx, r, "")
	require.NoError(t, err)
	assert.Nil(t, sess)

	// the expired session was removed
	got, err := svc.repo.GetByRefresh(ctx, r)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRotate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	r, err := svc.CreateSession(ctx, "sub-1", "d", time.Hour)
	require.NoError(t, err)

	sess, next, err := svc.Rotate(ctx, r, "d", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "sub-1", sess.Sub)
	assert.NotEqual(t, r, next)

	// the old token is spent
	sess, _, err = svc.Rotate(ctx, r, "d", time.Hour)
	require.NoError(t, err)
	assert.Nil(t, sess)

	got, err := svc.ValidateRefresh(ctx, next, "d")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestDeviceHash(t *testing.T) {
	a := DeviceHash("ua", "ip", "origin")
	assert.Len(t, a, 32)
	assert.Equal(t, a, DeviceHash("ua", "ip", "origin"))
	assert.NotEqual(t, a, DeviceHash("ua", "ip", "other"))
}
