package todos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/document"
	"github.com/gogotex/todo-api/internal/models"
	"github.com/gogotex/todo-api/pkg/logger"
)

const (
	CodeDatabaseError  = "application/database-error"
	CodeExportDisabled = "application/export-disabled"
)

// ItemRepository is the subset of Repository the service depends on.
type ItemRepository interface {
	Add(ctx context.Context, data any, opts ...document.Option) (string, error)
	Update(ctx context.Context, data any, opts ...document.Option) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string, opts ...document.Option) (models.Todo, error)
	GetByUserID(ctx context.Context, uid string, opts ...document.Option) ([]models.Todo, error)
}

// ExportStorage receives list exports. Satisfied by *storage.MinIOStorage.
type ExportStorage interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// NewItem is the validated payload of the create use case.
type NewItem struct {
	Description string
	Priority    models.Priority
}

// Export describes an uploaded list export.
type Export struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// Service holds the to-do use cases.
type Service struct {
	repo      ItemRepository
	exports   ExportStorage
	exportTTL time.Duration
	now       func() time.Time
}

type Option func(*Service)

// WithExports enables the export use case; links stay valid for ttl.
func WithExports(s ExportStorage, ttl time.Duration) Option {
	return func(svc *Service) {
		svc.exports = s
		svc.exportTTL = ttl
	}
}

func NewService(repo ItemRepository, opts ...Option) *Service {
	s := &Service{repo: repo, exportTTL: 15 * time.Minute, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func withoutPermission() *apperr.Error {
	return apperr.API("Without permission.", apperr.CodeWithoutPermission, http.StatusForbidden)
}

// Create stores a new, not yet completed item owned by uid.
func (s *Service) Create(ctx context.Context, uid string, in NewItem) (string, error) {
	if uid == "" {
		return "", withoutPermission()
	}
	return s.repo.Add(ctx, models.Todo{
		Description: in.Description,
		IsCompleted: false,
		Priority:    in.Priority,
		UserID:      uid,
	})
}

// List returns the items owned by uid. Store failures surface as API errors.
func (s *Service) List(ctx context.Context, uid string) ([]models.Todo, error) {
	if uid == "" {
		return nil, withoutPermission()
	}
	items, err := s.repo.GetByUserID(ctx, uid)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.Wrap(err, apperr.API(err.Error(), CodeDatabaseError, 0))
	}
	return items, nil
}

// owned loads id and checks it belongs to uid.
func (s *Service) owned(ctx context.Context, uid, id string) (models.Todo, error) {
	if uid == "" {
		return models.Todo{}, withoutPermission()
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Todo{}, err
	}
	if item.UserID != uid {
		return models.Todo{}, withoutPermission()
	}
	return item, nil
}

// Complete marks the item as completed. No other field changes.
func (s *Service) Complete(ctx context.Context, uid, id string) error {
	if _, err := s.owned(ctx, uid, id); err != nil {
		return err
	}
	done := true
	return s.repo.Update(ctx, models.TodoPatch{ID: id, IsCompleted: &done})
}

// Delete removes one of uid's items.
func (s *Service) Delete(ctx context.Context, uid, id string) error {
	if _, err := s.owned(ctx, uid, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ExportEnabled reports whether an export storage is configured.
func (s *Service) ExportEnabled() bool { return s.exports != nil }

// Export uploads uid's items as a JSON document and returns a presigned link.
func (s *Service) Export(ctx context.Context, uid string) (*Export, error) {
	if s.exports == nil {
		return nil, apperr.API("Export is not available.", CodeExportDisabled, http.StatusNotImplemented)
	}
	items, err := s.List(ctx, uid)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]any{
		"userId":     uid,
		"exportedAt": s.now().UTC(),
		"items":      items,
	})
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	key := fmt.Sprintf("exports/%s/%s.json", uid, s.now().UTC().Format("20060102T150405.000Z"))
	if err := s.exports.UploadFile(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	url, err := s.exports.GetPresignedURL(ctx, key, s.exportTTL)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}
	logger.Debugf("exported %d to-do items for %s to %s", len(items), uid, key)
	return &Export{Key: key, URL: url, Count: len(items)}, nil
}
