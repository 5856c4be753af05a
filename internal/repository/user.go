package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmailOrName(ctx context.Context, emailOrName string) (*domain.User, error)
	Search(ctx context.Context, query string, limit int, excludeID int64) ([]*domain.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	SetLastSeen(ctx context.Context, id int64, at time.Time) error
	UpdateAvatar(ctx context.Context, id int64, avatar []byte) error
	GetAvatar(ctx context.Context, id int64) ([]byte, error)
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

const userColumns = `id, name, email, password, COALESCE(gender, ''), avatar IS NOT NULL, last_seen_at, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (name, email, password, gender)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Gender,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.log.Warn("user already exists", "name", user.Name, "constraint", pgErr.ConstraintName)
			return apperrors.AlreadyExists("user with this name or email already exists")
		}
		r.log.Error("failed to create user", "error", err)
		return apperrors.Persistence(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmailOrName(ctx context.Context, emailOrName string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR name = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, emailOrName))
}

func (r *userRepository) scanOne(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Gender,
		&user.HasAvatar, &user.LastSeenAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		r.log.Error("failed to get user", "error", err)
		return nil, apperrors.Persistence(err)
	}
	return user, nil
}

func (r *userRepository) Search(ctx context.Context, query string, limit int, excludeID int64) ([]*domain.User, error) {
	q := `
		SELECT id, name, email, avatar IS NOT NULL
		FROM users
		WHERE name ILIKE $1 AND id <> $2
		ORDER BY name
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, q, "%"+query+"%", excludeID, limit)
	if err != nil {
		r.log.Error("failed to search users", "error", err)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user := &domain.User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.HasAvatar); err != nil {
			return nil, apperrors.Persistence(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence(err)
	}
	return users, nil
}

func (r *userRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		r.log.Error("failed to check user existence", "error", err, "id", id)
		return false, apperrors.Persistence(err)
	}
	return exists, nil
}

func (r *userRepository) SetLastSeen(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_seen_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		r.log.Error("failed to set last seen", "error", err, "id", id)
		return apperrors.Persistence(err)
	}
	return nil
}

func (r *userRepository) UpdateAvatar(ctx context.Context, id int64, avatar []byte) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET avatar = $2, updated_at = now() WHERE id = $1`, id, avatar)
	if err != nil {
		r.log.Error("failed to update avatar", "error", err, "id", id)
		return apperrors.Persistence(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

func (r *userRepository) GetAvatar(ctx context.Context, id int64) ([]byte, error) {
	var avatar []byte
	err := r.db.QueryRow(ctx, `SELECT avatar FROM users WHERE id = $1`, id).Scan(&avatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		r.log.Error("failed to get avatar", "error", err, "id", id)
		return nil, apperrors.Persistence(err)
	}
	if avatar == nil {
		return nil, apperrors.NotFound("user has no avatar")
	}
	return avatar, nil
}
