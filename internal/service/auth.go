package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	"github.com/89hikari/telegram-clone-backend/internal/repository"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/jwt"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

// AuthService is the identity resolver: the only component that may turn a
// credential into a user id. Connection identity binding goes through
// ValidateToken, never through a client-asserted id.
type AuthService interface {
	Register(ctx context.Context, name, email, password, gender string) (*domain.User, error)
	Login(ctx context.Context, emailOrName, password string) (*LoginResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

type LoginResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"accessToken"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   *jwt.Manager
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		log:      log,
	}
}

func (s *authService) Register(ctx context.Context, name, email, password, gender string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, apperrors.InvalidArg("name is required")
	}
	if len(name) > 100 {
		return nil, apperrors.InvalidArg("name is too long (max 100 characters)")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.InvalidArg("valid email is required")
	}
	if len(password) < 8 {
		return nil, apperrors.InvalidArg("password must be at least 8 characters")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("failed to hash password", "error", err)
		return nil, apperrors.Internal("failed to hash password")
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Gender:       gender,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, emailOrName, password string) (*LoginResponse, error) {
	user, err := s.userRepo.GetByEmailOrName(ctx, strings.TrimSpace(emailOrName))
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return nil, apperrors.Unauthenticated("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.Unauthenticated("invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID, user.Name)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		ID:          user.ID,
		Name:        user.Name,
		AccessToken: token,
	}, nil
}

func (s *authService) ValidateToken(_ context.Context, tokenString string) (*jwt.Claims, error) {
	return s.tokens.Verify(tokenString)
}
