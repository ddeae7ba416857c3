package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/storage"
)

// UserService materialises users of verified identities.
type UserService struct {
	store storage.Storage
}

func NewUserService(store storage.Storage) *UserService {
	return &UserService{store: store}
}

// EnsureUser returns the user with username, creating it on first sight.
func (s *UserService) EnsureUser(ctx context.Context, username, displayName string) (*domain.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load user %s: %w", username, err)
	}

	u, err = s.store.CreateUser(ctx, &domain.User{Username: username, DisplayName: displayName})
	if errors.Is(err, storage.ErrDuplicate) {
		// Параллельный запрос успел создать пользователя
		return s.store.GetUserByUsername(ctx, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}

	l := logging.Ctx(ctx)
	l.Info().Str(logging.FieldUserID, u.ID).Str(logging.FieldUsername, username).Msg("user created")
	return u, nil
}
