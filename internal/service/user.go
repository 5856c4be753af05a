package service

import (
	"context"
	"time"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	"github.com/89hikari/telegram-clone-backend/internal/repository"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type UserService interface {
	// GetProfile reads through the cache-aside layer.
	GetProfile(ctx context.Context, id int64) (*domain.Profile, error)
	Lookup(ctx context.Context, emailOrName string) (*domain.Profile, error)
	Search(ctx context.Context, query string, limit int, selfID int64) ([]*domain.Profile, error)
	UpdateAvatar(ctx context.Context, id int64, avatar []byte) error
	GetAvatar(ctx context.Context, id int64) ([]byte, error)
	SetLastSeen(ctx context.Context, id int64) error
}

const maxAvatarSize = 2 << 20 // 2 MiB

type userService struct {
	userRepo repository.UserRepository
	cache    repository.UserCacheRepository
	log      logger.Logger
}

func NewUserService(userRepo repository.UserRepository, cache repository.UserCacheRepository, log logger.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		cache:    cache,
		log:      log,
	}
}

func (s *userService) GetProfile(ctx context.Context, id int64) (*domain.Profile, error) {
	if cached := s.cache.GetByID(ctx, id); cached != nil {
		return cached, nil
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := user.Profile()
	s.cache.SetByID(ctx, profile)
	return profile, nil
}

func (s *userService) Lookup(ctx context.Context, emailOrName string) (*domain.Profile, error) {
	if cached := s.cache.GetByLookup(ctx, emailOrName); cached != nil {
		return cached, nil
	}

	user, err := s.userRepo.GetByEmailOrName(ctx, emailOrName)
	if err != nil {
		return nil, err
	}

	profile := user.Profile()
	s.cache.SetByLookup(ctx, emailOrName, profile)
	return profile, nil
}

func (s *userService) Search(ctx context.Context, query string, limit int, selfID int64) ([]*domain.Profile, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}

	users, err := s.userRepo.Search(ctx, query, limit, selfID)
	if err != nil {
		return nil, err
	}

	profiles := make([]*domain.Profile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, user.Profile())
	}
	return profiles, nil
}

func (s *userService) UpdateAvatar(ctx context.Context, id int64, avatar []byte) error {
	if len(avatar) == 0 {
		return apperrors.InvalidArg("avatar is empty")
	}
	if len(avatar) > maxAvatarSize {
		return apperrors.InvalidArg("avatar is too large")
	}

	// Invalidate before the write so no reader can re-cache the old row
	// after the new one is visible.
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id, user.Name, user.Email)

	return s.userRepo.UpdateAvatar(ctx, id, avatar)
}

func (s *userService) GetAvatar(ctx context.Context, id int64) ([]byte, error) {
	return s.userRepo.GetAvatar(ctx, id)
}

func (s *userService) SetLastSeen(ctx context.Context, id int64) error {
	return s.userRepo.SetLastSeen(ctx, id, time.Now())
}
