package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/gogotex/todo-api/internal/apperr"
	"github.com/gogotex/todo-api/internal/credentials"
	"github.com/gogotex/todo-api/internal/document"
	"github.com/gogotex/todo-api/internal/models"
	"github.com/gogotex/todo-api/pkg/logger"
)

const CodeProfileNotCreated = "application/profile-not-created"

// ProfileRepository is the part of Repository the service needs.
type ProfileRepository interface {
	Set(ctx context.Context, data any, opts ...document.Option) error
	GetByID(ctx context.Context, id string, opts ...document.Option) (models.User, error)
}

// Service creates and reads user profiles together with their credentials.
type Service struct {
	repo  ProfileRepository
	creds credentials.Service
}

func NewService(repo ProfileRepository, creds credentials.Service) *Service {
	return &Service{repo: repo, creds: creds}
}

type NewUser struct {
	Name     string
	Email    string
	Password string
}

// Create registers the credential first and then writes the profile under the
// credential's id. When the profile write fails the credential is deleted
// again so no login exists without a profile.
func (s *Service) Create(ctx context.Context, u NewUser) (string, error) {
	uid, err := s.creds.Create(ctx, credentials.CreateRequest{
		Email:       u.Email,
		Password:    u.Password,
		DisplayName: u.Name,
	})
	if err != nil {
		return "", err
	}

	profile := models.User{Base: document.Base{ID: uid}, Name: u.Name, Email: u.Email}
	if err := s.repo.Set(ctx, profile); err != nil {
		if derr := s.creds.Delete(ctx, uid); derr != nil {
			logger.With("uid", uid).Error("credential left without profile", "error", derr)
			err = errors.Join(err, derr)
		}
		return "", apperr.Wrap(err, apperr.API("User profile could not be created.", CodeProfileNotCreated, http.StatusInternalServerError))
	}
	return uid, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
