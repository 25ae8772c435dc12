package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type directoryStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// DirectoryService answers who a user is and what role they hold.
type DirectoryService struct {
	store  directoryStore
	logger *zap.Logger
}

// NewDirectoryService constructs the service.
func NewDirectoryService(store directoryStore, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{store: store, logger: logger}
}

// User returns an active user. Unknown and inactive users are unauthorized.
func (s *DirectoryService) User(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active || !user.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user is not active")
	}
	return user, nil
}

// RoleOf returns the role of an active user.
func (s *DirectoryService) RoleOf(ctx context.Context, id string) (models.UserRole, error) {
	user, err := s.User(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// Teacher returns the active teacher with id, or NOT_FOUND.
func (s *DirectoryService) Teacher(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !user.Active || user.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return user, nil
}

// Admins lists active administrators.
func (s *DirectoryService) Admins(ctx context.Context) ([]models.User, error) {
	admins, err := s.store.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admins")
	}
	return admins, nil
}
