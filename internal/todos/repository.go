package todos

import (
	"context"

	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/document"
	"github.com/gogotex/todo-api/internal/document/repository"
	"github.com/gogotex/todo-api/internal/models"
)

// Collection holds every to-do item regardless of owner.
const Collection = "to-do-items"

// Repository is the to-do item specialization of the generic repository.
type Repository struct {
	*repository.Repository[models.Todo]
}

func NewRepository(store database.Store) *Repository {
	return &Repository{Repository: repository.New[models.Todo](Collection, store)}
}

// GetByUserID returns the items owned by uid.
func (r *Repository) GetByUserID(ctx context.Context, uid string, opts ...document.Option) ([]models.Todo, error) {
	return r.GetWhere(ctx, "userId", database.OpEqual, uid, opts...)
}
