package service

import (
	"context"
	"sort"
	"strings"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	"github.com/89hikari/telegram-clone-backend/internal/repository"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type MessageService interface {
	// Send validates and persists a direct message. Delivery is the
	// gateway's job and never happens unless this returns nil.
	Send(ctx context.Context, senderID, receiverID int64, body string) (*domain.Message, error)
	History(ctx context.Context, userID, peerID int64, limit int) ([]*domain.DirectMessageView, error)
	// LastMessages is the conversation aggregator: one row per distinct
	// conversation (direct or group), newest first.
	LastMessages(ctx context.Context, userID int64) ([]*domain.LastMessage, error)
	Edit(ctx context.Context, senderID, messageID int64, body string) (*domain.Message, error)
}

const defaultHistoryLimit = 30

type messageService struct {
	messageRepo repository.MessageRepository
	groupRepo   repository.GroupRepository
	userRepo    repository.UserRepository
	users       UserService
	log         logger.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	users UserService,
	log logger.Logger,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		users:       users,
		log:         log,
	}
}

func (s *messageService) Send(ctx context.Context, senderID, receiverID int64, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.InvalidArg("message is required")
	}
	if receiverID <= 0 {
		return nil, apperrors.InvalidArg("receiverId is required")
	}

	exists, err := s.userRepo.Exists(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.InvalidArg("receiver does not exist")
	}

	message := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    body,
	}
	if err := s.messageRepo.Insert(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *messageService) History(ctx context.Context, userID, peerID int64, limit int) ([]*domain.DirectMessageView, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}

	messages, err := s.messageRepo.FindHistory(ctx, userID, peerID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.DirectMessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, &domain.DirectMessageView{
			ID:         m.ID,
			Message:    m.Message,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			CreatedAt:  m.CreatedAt,
			IsMe:       m.SenderID == userID,
		})
	}
	return views, nil
}

func (s *messageService) Edit(ctx context.Context, senderID, messageID int64, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.InvalidArg("message is required")
	}
	return s.messageRepo.UpdateBody(ctx, messageID, senderID, body)
}

func (s *messageService) LastMessages(ctx context.Context, userID int64) ([]*domain.LastMessage, error) {
	rows, err := s.messageRepo.LatestPerDirection(ctx, userID)
	if err != nil {
		return nil, err
	}

	// A direct conversation can surface as two rows, one per direction.
	// Collapse on the unordered pair key, keeping the max-id row.
	latest := collapseDirect(rows)

	result := make([]*domain.LastMessage, 0, len(latest))
	for key, m := range latest {
		counterpartID := key.Counterpart(userID)
		row := &domain.LastMessage{
			Key:       key,
			MessageID: m.ID,
			Message:   m.Message,
			Date:      m.CreatedAt,
			PersonID:  counterpartID,
		}
		if profile, err := s.users.GetProfile(ctx, counterpartID); err == nil {
			row.PersonName = profile.Name
			row.HasAvatar = profile.HasAvatar
		}
		result = append(result, row)
	}

	groupRows, err := s.groupRepo.LatestPerGroup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(groupRows) > 0 {
		groups, err := s.groupRepo.UserGroups(ctx, userID)
		if err != nil {
			return nil, err
		}
		names := make(map[int64]string, len(groups))
		for _, g := range groups {
			names[g.ID] = g.Name
		}
		for _, m := range groupRows {
			result = append(result, &domain.LastMessage{
				Key:       domain.GroupKey(m.GroupID),
				MessageID: m.ID,
				Message:   m.Message,
				Date:      m.CreatedAt,
				GroupID:   m.GroupID,
				GroupName: names[m.GroupID],
			})
		}
	}

	// Newest first; equal timestamps break on the higher message id.
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].MessageID > result[j].MessageID
		}
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

// collapseDirect reduces per-direction latest rows to one row per unordered
// participant pair, keeping the row with the highest id.
func collapseDirect(rows []*domain.Message) map[domain.ConversationKey]*domain.Message {
	latest := make(map[domain.ConversationKey]*domain.Message, len(rows))
	for _, m := range rows {
		key := domain.DirectKey(m.SenderID, m.ReceiverID)
		if cur, ok := latest[key]; !ok || m.ID > cur.ID {
			latest[key] = m
		}
	}
	return latest
}
