package sessions

import (
	"context"

	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/document/repository"
)

const Collection = "sessions"

// DocumentRepository keeps sessions in the document store; used when Redis
// is not configured.
type DocumentRepository struct {
	*repository.Repository[Session]
}

func NewDocumentRepository(store database.Store) *DocumentRepository {
	return &DocumentRepository{repository.New[Session](Collection, store)}
}

func (r *DocumentRepository) Create(ctx context.Context, s *Session) error {
	id, err := r.Add(ctx, s)
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *DocumentRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	return r.GetOneWhere(ctx, "refreshToken", database.OpEqual, refresh)
}

func (r *DocumentRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	s, err := r.GetByRefresh(ctx, refresh)
	if err != nil || s == nil {
		return err
	}
	return r.Delete(ctx, s.ID)
}
