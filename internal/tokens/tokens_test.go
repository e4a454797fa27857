package tokens

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-32-bytes-should-be-long-enough"

func issueAt(t *testing.T, at time.Time, ttl time.Duration) string {
	t.Helper()
	iss := NewIssuer(secret, "todo-api", ttl)
	iss.now = func() time.Time { return at }
	raw, exp, err := iss.Issue(Identity{UID: "user-123", Email: "test@example.com", Name: "Test User"})
	require.NoError(t, err)
	assert.Equal(t, at.Add(ttl).Unix(), exp.Unix())
	return raw
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Now()
	raw := issueAt(t, now, 2*time.Minute)

	tok, err := NewVerifier(secret, "todo-api").Verify(context.Background(), raw)
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, "user-123", claims["sub"])
	assert.Equal(t, "user-123", claims["uid"])
	assert.Equal(t, "test@example.com", claims["email"])
	assert.Equal(t, "Test User", claims["name"])
	assert.Equal(t, "todo-api", claims["iss"])
}

func TestVerify_Expired(t *testing.T) {
	now := time.Now()
	raw := issueAt(t, now, time.Minute)
	later := func() time.Time { return now.Add(2 * time.Minute) }
	_, err := NewVerifier(secret, "todo-api", WithClock(later)).Verify(context.Background(), raw)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestVerify_WrongSecretFails(t *testing.T) {
	raw := issueAt(t, time.Now(), time.Minute)
	_, err := NewVerifier("different-secret-xxxxxxxxxxxxxxxx", "todo-api").Verify(context.Background(), raw)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestVerify_WrongIssuerFails(t *testing.T) {
	raw := issueAt(t, time.Now(), time.Minute)
	_, err := NewVerifier(secret, "someone-else").Verify(context.Background(), raw)
	require.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestVerify_Malformed(t *testing.T) {
	_, err := NewVerifier(secret, "").Verify(context.Background(), "not.a.jwt")
	require.Error(t, err)
}

func TestVerify_AlgNoneRejected(t *testing.T) {
	headerEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"alg":"none"}`))
	payloadEnc := (&jwt.Token{}).EncodeSegment([]byte(`{"sub":"u-none","exp":9999999999}`))
	_, err := NewVerifier(secret, "").Verify(context.Background(), headerEnc+"."+payloadEnc+".")
	require.Error(t, err)
}

func TestVerify_MissingExpRejected(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = NewVerifier(secret, "").Verify(context.Background(), raw)
	require.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
}

func TestVerify_TamperedPayload(t *testing.T) {
	raw := issueAt(t, time.Now(), 5*time.Minute)
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	require.NoError(t, err)
	parts[1] = (&jwt.Token{}).EncodeSegment([]byte(strings.Replace(string(payload), "user-123", "attacker", 2)))
	_, err = NewVerifier(secret, "todo-api").Verify(context.Background(), strings.Join(parts, "."))
	require.Error(t, err)
}

func TestVerify_RevocationCheck(t *testing.T) {
	issued := time.Now().Truncate(time.Second)
	raw := issueAt(t, issued, time.Hour)
	ctx := context.Background()

	validAfter := time.Time{}
	check := WithRevocationCheck(func(_ context.Context, sub string) (time.Time, error) {
		assert.Equal(t, "user-123", sub)
		return validAfter, nil
	})
	v := NewVerifier(secret, "todo-api", check)

	_, err := v.Verify(ctx, raw)
	require.NoError(t, err)

	validAfter = issued.Add(time.Second)
	_, err = v.Verify(ctx, raw)
	require.ErrorIs(t, err, ErrRevoked)

	// a token issued in the same second as the revocation stays valid
	validAfter = issued.Add(500 * time.Millisecond)
	_, err = v.Verify(ctx, raw)
	require.NoError(t, err)
}

func TestVerify_RevocationLookupFailure(t *testing.T) {
	raw := issueAt(t, time.Now(), time.Hour)
	boom := errors.New("store down")
	v := NewVerifier(secret, "todo-api", WithRevocationCheck(func(context.Context, string) (time.Time, error) {
		return time.Time{}, boom
	}))
	_, err := v.Verify(context.Background(), raw)
	require.ErrorIs(t, err, boom)
}
