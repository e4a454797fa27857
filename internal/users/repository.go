package users

import (
	"github.com/gogotex/todo-api/internal/database"
	"github.com/gogotex/todo-api/internal/document/repository"
	"github.com/gogotex/todo-api/internal/models"
)

const Collection = "users"

// Repository stores user profiles keyed by credential id.
type Repository struct {
	*repository.Repository[models.User]
}

func NewRepository(store database.Store) *Repository {
	return &Repository{Repository: repository.New[models.User](Collection, store)}
}
