package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type MessageRepository interface {
	Insert(ctx context.Context, message *domain.Message) error
	// FindHistory returns the newest messages between two users, oldest first.
	FindHistory(ctx context.Context, userA, userB int64, limit int) ([]*domain.Message, error)
	// LatestPerDirection returns at most one row per ordered (sender,
	// receiver) pair involving the user. The unordered-pair collapse happens
	// in the service layer.
	LatestPerDirection(ctx context.Context, userID int64) ([]*domain.Message, error)
	UpdateBody(ctx context.Context, messageID, senderID int64, body string) (*domain.Message, error)
	// DirectPeers returns every user that shares direct history with the user.
	DirectPeers(ctx context.Context, userID int64) ([]int64, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Insert(ctx context.Context, message *domain.Message) error {
	query := `
		INSERT INTO messages (sender_id, receiver_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		message.SenderID, message.ReceiverID, message.Message,
	).Scan(&message.ID, &message.CreatedAt)

	if err != nil {
		r.log.Error("failed to insert message", "error", err)
		return apperrors.Persistence(err)
	}
	return nil
}

func (r *messageRepository) FindHistory(ctx context.Context, userA, userB int64, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, message, created_at, edited_at
		FROM messages
		WHERE deleted_at IS NULL
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		ORDER BY id DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, userA, userB, limit)
	if err != nil {
		r.log.Error("failed to load history", "error", err)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Oldest first for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) LatestPerDirection(ctx context.Context, userID int64) ([]*domain.Message, error) {
	query := `
		SELECT DISTINCT ON (sender_id, receiver_id)
		       id, sender_id, receiver_id, message, created_at, edited_at
		FROM messages
		WHERE deleted_at IS NULL AND (sender_id = $1 OR receiver_id = $1)
		ORDER BY sender_id, receiver_id, id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("failed to load latest messages", "error", err)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *messageRepository) UpdateBody(ctx context.Context, messageID, senderID int64, body string) (*domain.Message, error) {
	query := `
		UPDATE messages
		SET message = $3, edited_at = now()
		WHERE id = $1 AND sender_id = $2 AND deleted_at IS NULL
		RETURNING id, sender_id, receiver_id, message, created_at, edited_at
	`

	message := &domain.Message{}
	err := r.db.QueryRow(ctx, query, messageID, senderID, body).Scan(
		&message.ID, &message.SenderID, &message.ReceiverID,
		&message.Message, &message.CreatedAt, &message.EditedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("message not found or not owned by user")
		}
		r.log.Error("failed to update message", "error", err, "id", messageID)
		return nil, apperrors.Persistence(err)
	}
	return message, nil
}

func (r *messageRepository) DirectPeers(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END
		FROM messages
		WHERE deleted_at IS NULL AND (sender_id = $1 OR receiver_id = $1)
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("failed to load direct peers", "error", err)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanMessages(rows pgx.Rows) ([]*domain.Message, error) {
	var messages []*domain.Message
	for rows.Next() {
		message := &domain.Message{}
		err := rows.Scan(
			&message.ID, &message.SenderID, &message.ReceiverID,
			&message.Message, &message.CreatedAt, &message.EditedAt,
		)
		if err != nil {
			return nil, apperrors.Persistence(err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence(err)
	}
	return messages, nil
}
