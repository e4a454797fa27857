package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/document/repository"
	"github.com/gogotex/todo-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// LocalCollection stores the credential records of the local provider.
const LocalCollection = "credentials"

// Local keeps credentials in the document store. Email writes are serialized
// in-process; EnsureIndexes adds a unique index where the store supports one so
// that several replicas cannot claim the same address either.
type Local struct {
	store database.Store
	repo  *repository.Repository[models.Credential]
	cost  int
	now   func() time.Time

	// emailMu guards the email lookup and the write that follows it.
	emailMu sync.Mutex
}

type LocalOption func(*Local)

// WithBcryptCost overrides bcrypt.DefaultCost (tests use bcrypt.MinCost).
func WithBcryptCost(cost int) LocalOption {
	return func(l *Local) { l.cost = cost }
}

func NewLocal(store database.Store, opts ...LocalOption) *Local {
	l := &Local{
		store: store,
		repo: repository.New[models.Credential](LocalCollection, store),
		cost: bcrypt.DefaultCost,
		now:  time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// EnsureIndexes creates the unique email index when the store can enforce one.
func (l *Local) EnsureIndexes(ctx context.Context) error {
	ix, ok := l.store.(database.UniqueIndexer)
	if !ok {
		return nil
	}
	return ix.EnsureUniqueIndex(ctx, LocalCollection, "email")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toRecord(c models.Credential) *Record {
	return &Record{
		UID:              c.ID,
		Email:            c.Email,
		DisplayName:      c.DisplayName,
		Disabled:         c.Disabled,
		TokensValidAfter: c.TokensValidAfter,
	}
}

func (l *Local) findByEmail(ctx context.Context, email string) (*models.Credential, error) {
	return l.repo.GetOneWhere(ctx, "email", database.OpEqual, normalizeEmail(email))
}

func (l *Local) Create(ctx context.Context, req CreateRequest) (string, error) {
	if len(req.Password) < MinPasswordLength {
		return "", invalidPassword()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), l.cost)
	if err != nil {
		return "", err
	}

	l.emailMu.Lock()
	defer l.emailMu.Unlock()
	existing, err := l.findByEmail(ctx, req.Email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", emailExists()
	}
	uid, err := l.repo.Add(ctx, models.Credential{
		Email:        normalizeEmail(req.Email),
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
	})
	if errors.Is(err, database.ErrDuplicate) {
		return "", emailExists()
	}
	return uid, err
}

func (l *Local) Get(ctx context.Context, uid string) (*Record, error) {
	c, err := l.repo.GetByID(ctx, uid)
	if err != nil {
		if apperr.IsKind(err, apperr.KindDocumentNotFound) || apperr.IsKind(err, apperr.KindDocumentWithoutIdentifier) {
			return nil, userNotFound(uid)
		}
		return nil, err
	}
	return toRecord(c), nil
}

func (l *Local) Delete(ctx context.Context, uid string) error {
	if _, err := l.Get(ctx, uid); err != nil {
		return err
	}
	return l.repo.Delete(ctx, uid)
}

func (l *Local) Update(ctx context.Context, uid string, req UpdateRequest) error {
	if _, err := l.Get(ctx, uid); err != nil {
		return err
	}
	patch := map[string]any{"id": uid}
	if req.Password != nil {
		if len(*req.Password) < MinPasswordLength {
			return invalidPassword()
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), l.cost)
		if err != nil {
			return err
		}
		patch["passwordHash"] = string(hash)
	}
	if req.DisplayName != nil {
		patch["displayName"] = *req.DisplayName
	}
	if req.Disabled != nil {
		patch["disabled"] = *req.Disabled
	}
	if req.Email == nil {
		return l.repo.Update(ctx, patch)
	}

	l.emailMu.Lock()
	defer l.emailMu.Unlock()
	other, err := l.findByEmail(ctx, *req.Email)
	if err != nil {
		return err
	}
	if other != nil && other.ID != uid {
		return emailExists()
	}
	patch["email"] = normalizeEmail(*req.Email)
	err = l.repo.Update(ctx, patch)
	if errors.Is(err, database.ErrDuplicate) {
		return emailExists()
	}
	return err
}

func (l *Local) GetByEmail(ctx context.Context, email string) (*Record, error) {
	c, err := l.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, userNotFound(email)
	}
	return toRecord(*c), nil
}

// RevokeRefreshTokens invalidates every token issued before now.
func (l *Local) RevokeRefreshTokens(ctx context.Context, uid string) error {
	err := l.repo.Update(ctx, map[string]any{"id": uid, "tokensValidAfter": l.now().UTC()})
	if errors.Is(err, database.ErrNoDocument) {
		return userNotFound(uid)
	}
	return err
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords fail the same way.
func (l *Local) Authenticate(ctx context.Context, email, password string) (*Record, error) {
	c, err := l.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, invalidCredential()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, invalidCredential()
	}
	if c.Disabled {
		return nil, UserDisabled()
	}
	return toRecord(*c), nil
}

// TokensValidAfter returns the revocation cut-off of uid; zero when never revoked.
func (l *Local) TokensValidAfter(ctx context.Context, uid string) (time.Time, error) {
	rec, err := l.Get(ctx, uid)
	if err != nil {
		return time.Time{}, err
	}
	if rec.TokensValidAfter == nil {
		return time.Time{}, nil
	}
	return *rec.TokensValidAfter, nil
}
