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

type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) error
	GetByID(ctx context.Context, id int64) (*domain.Group, error)
	AddMember(ctx context.Context, member *domain.GroupMember) error
	GetMember(ctx context.Context, groupID, userID int64) (*domain.GroupMember, error)
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	UserGroups(ctx context.Context, userID int64) ([]*domain.Group, error)
	// CoMembers returns every user sharing at least one group with the user.
	CoMembers(ctx context.Context, userID int64) ([]int64, error)

	InsertMessage(ctx context.Context, message *domain.GroupMessage) error
	GetMessage(ctx context.Context, messageID int64) (*domain.GroupMessage, error)
	FindMessages(ctx context.Context, groupID int64, limit int) ([]*domain.GroupMessage, error)
	// LatestPerGroup returns the newest message of each of the user's groups.
	LatestPerGroup(ctx context.Context, userID int64) ([]*domain.GroupMessage, error)
	UpdateMessageBody(ctx context.Context, messageID, senderID int64, body string) (*domain.GroupMessage, error)
}

type groupRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewGroupRepository(db *pgxpool.Pool, log logger.Logger) GroupRepository {
	return &groupRepository{db: db, log: log}
}

func (r *groupRepository) Create(ctx context.Context, group *domain.Group) error {
	query := `
		INSERT INTO groups (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, group.Name, group.OwnerID).Scan(&group.ID, &group.CreatedAt)
	if err != nil {
		r.log.Error("failed to create group", "error", err)
		return apperrors.Persistence(err)
	}
	return nil
}

func (r *groupRepository) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	group := &domain.Group{}
	err := r.db.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at FROM groups WHERE id = $1`, id,
	).Scan(&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("group not found")
		}
		r.log.Error("failed to get group", "error", err, "id", id)
		return nil, apperrors.Persistence(err)
	}
	return group, nil
}

func (r *groupRepository) AddMember(ctx context.Context, member *domain.GroupMember) error {
	query := `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
		RETURNING joined_at
	`

	err := r.db.QueryRow(ctx, query, member.GroupID, member.UserID, member.Role).Scan(&member.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already a member; treated as success.
			return nil
		}
		r.log.Error("failed to add group member", "error", err, "group", member.GroupID)
		return apperrors.Persistence(err)
	}
	return nil
}

func (r *groupRepository) GetMember(ctx context.Context, groupID, userID int64) (*domain.GroupMember, error) {
	member := &domain.GroupMember{}
	err := r.db.QueryRow(ctx,
		`SELECT group_id, user_id, role, joined_at FROM group_members WHERE group_id = $1 AND user_id = $2`,
		groupID, userID,
	).Scan(&member.GroupID, &member.UserID, &member.Role, &member.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user is not a member of this group")
		}
		r.log.Error("failed to get group member", "error", err, "group", groupID)
		return nil, apperrors.Persistence(err)
	}
	return member, nil
}

func (r *groupRepository) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
	if err != nil {
		r.log.Error("failed to load group members", "error", err, "group", groupID)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *groupRepository) UserGroups(ctx context.Context, userID int64) ([]*domain.Group, error) {
	query := `
		SELECT g.id, g.name, g.owner_id, g.created_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.id
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("failed to load user groups", "error", err, "user", userID)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()

	var groups []*domain.Group
	for rows.Next() {
		group := &domain.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt); err != nil {
			return nil, apperrors.Persistence(err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence(err)
	}
	return groups, nil
}

func (r *groupRepository) CoMembers(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT DISTINCT other.user_id
		FROM group_members own
		JOIN group_members other ON other.group_id = own.group_id
		WHERE own.user_id = $1 AND other.user_id <> $1
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("failed to load group co-members", "error", err, "user", userID)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *groupRepository) InsertMessage(ctx context.Context, message *domain.GroupMessage) error {
	query := `
		INSERT INTO group_messages (group_id, sender_id, message)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		message.GroupID, message.SenderID, message.Message,
	).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		r.log.Error("failed to insert group message", "error", err, "group", message.GroupID)
		return apperrors.Persistence(err)
	}
	return nil
}

func (r *groupRepository) FindMessages(ctx context.Context, groupID int64, limit int) ([]*domain.GroupMessage, error) {
	query := `
		SELECT id, group_id, sender_id, message, created_at, edited_at
		FROM group_messages
		WHERE group_id = $1 AND deleted_at IS NULL
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, groupID, limit)
	if err != nil {
		r.log.Error("failed to load group messages", "error", err, "group", groupID)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()

	messages, err := scanGroupMessages(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *groupRepository) LatestPerGroup(ctx context.Context, userID int64) ([]*domain.GroupMessage, error) {
	query := `
		SELECT DISTINCT ON (gm.group_id)
		       gm.id, gm.group_id, gm.sender_id, gm.message, gm.created_at, gm.edited_at
		FROM group_messages gm
		JOIN group_members m ON m.group_id = gm.group_id
		WHERE m.user_id = $1 AND gm.deleted_at IS NULL
		ORDER BY gm.group_id, gm.id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("failed to load latest group messages", "error", err, "user", userID)
		return nil, apperrors.Persistence(err)
	}
	defer rows.Close()

	return scanGroupMessages(rows)
}

func (r *groupRepository) GetMessage(ctx context.Context, messageID int64) (*domain.GroupMessage, error) {
	query := `
		SELECT id, group_id, sender_id, message, created_at, edited_at
		FROM group_messages
		WHERE id = $1 AND deleted_at IS NULL
	`

	message := &domain.GroupMessage{}
	err := r.db.QueryRow(ctx, query, messageID).Scan(
		&message.ID, &message.GroupID, &message.SenderID,
		&message.Message, &message.CreatedAt, &message.EditedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("message not found")
		}
		r.log.Error("failed to load group message", "error", err, "id", messageID)
		return nil, apperrors.Persistence(err)
	}
	return message, nil
}

func (r *groupRepository) UpdateMessageBody(ctx context.Context, messageID, senderID int64, body string) (*domain.GroupMessage, error) {
	query := `
		UPDATE group_messages
		SET message = $3, edited_at = now()
		WHERE id = $1 AND sender_id = $2 AND deleted_at IS NULL
		RETURNING id, group_id, sender_id, message, created_at, edited_at
	`

	message := &domain.GroupMessage{}
	err := r.db.QueryRow(ctx, query, messageID, senderID, body).Scan(
		&message.ID, &message.GroupID, &message.SenderID,
		&message.Message, &message.CreatedAt, &message.EditedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("message not found or not owned by user")
		}
		r.log.Error("failed to update group message", "error", err, "id", messageID)
		return nil, apperrors.Persistence(err)
	}
	return message, nil
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Persistence(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence(err)
	}
	return ids, nil
}

func scanGroupMessages(rows pgx.Rows) ([]*domain.GroupMessage, error) {
	var messages []*domain.GroupMessage
	for rows.Next() {
		message := &domain.GroupMessage{}
		err := rows.Scan(
			&message.ID, &message.GroupID, &message.SenderID,
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
