package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gogotex/todo-api/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// ErrRevoked is returned for tokens issued before the subject's revocation time.
var ErrRevoked = errors.New("token has been revoked")

// Identity is what an access token says about its bearer.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// Issuer signs HS256 access tokens for the local auth provider.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue returns a signed access token and its expiry.
func (i *Issuer) Issue(id Identity) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.MapClaims{
		"sub":   id.UID,
		"uid":   id.UID,
		"name":  id.Name,
		"email": id.Email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	if i.issuer != "" {
		claims["iss"] = i.issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, time.Unix(exp.Unix(), 0), nil
}

// ValidAfterFunc returns the instant before which a subject's tokens are void.
// A zero time means nothing was revoked.
type ValidAfterFunc func(ctx context.Context, sub string) (time.Time, error)

// Verifier checks tokens produced by Issuer. It satisfies middleware.Verifier.
type Verifier struct {
	secret     []byte
	parser     *jwt.Parser
	validAfter ValidAfterFunc
}

type VerifierOption func(*verifierOptions)

type verifierOptions struct {
	now        func() time.Time
	validAfter ValidAfterFunc
}

// WithRevocationCheck rejects tokens whose iat precedes fn's answer.
func WithRevocationCheck(fn ValidAfterFunc) VerifierOption {
	return func(o *verifierOptions) { o.validAfter = fn }
}

// WithClock overrides the time used for expiry checks.
func WithClock(now func() time.Time) VerifierOption {
	return func(o *verifierOptions) { o.now = now }
}

func NewVerifier(secret, issuer string, opts ...VerifierOption) *Verifier {
	o := verifierOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	popts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(o.now),
	}
	if issuer != "" {
		popts = append(popts, jwt.WithIssuer(issuer))
	}
	return &Verifier{secret: []byte(secret), parser: jwt.NewParser(popts...), validAfter: o.validAfter}
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if v.validAfter != nil {
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return nil, fmt.Errorf("token without subject")
		}
		after, err := v.validAfter(ctx, sub)
		if err != nil {
			return nil, err
		}
		iat, err := claims.GetIssuedAt()
		if err != nil || iat == nil {
			return nil, fmt.Errorf("token without iat")
		}
		if !after.IsZero() && iat.Unix() < after.Unix() {
			return nil, ErrRevoked
		}
	}
	return &token{claims: claims}, nil
}

type token struct {
	claims jwt.MapClaims
}

func (t *token) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
