package service

import (
	"context"
	"strings"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	"github.com/89hikari/telegram-clone-backend/internal/repository"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type GroupService interface {
	Create(ctx context.Context, ownerID int64, name string, memberIDs []int64) (*domain.Group, error)
	AddMember(ctx context.Context, groupID, requesterID, userID int64) (*domain.GroupMember, error)
	ListGroups(ctx context.Context, userID int64) ([]*domain.Group, error)
	Messages(ctx context.Context, groupID, userID int64, limit int) ([]*domain.GroupMessageView, error)
	MemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	// SendMessage validates membership and persists; fan-out stays with the
	// gateway.
	SendMessage(ctx context.Context, groupID, senderID int64, body string) (*domain.GroupMessage, error)
	EditMessage(ctx context.Context, senderID, messageID int64, body string) (*domain.GroupMessage, error)
}

type groupService struct {
	groupRepo repository.GroupRepository
	userRepo  repository.UserRepository
	log       logger.Logger
}

func NewGroupService(groupRepo repository.GroupRepository, userRepo repository.UserRepository, log logger.Logger) GroupService {
	return &groupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
		log:       log,
	}
}

func (s *groupService) ensureMembership(ctx context.Context, groupID, userID int64) (*domain.GroupMember, error) {
	member, err := s.groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return nil, apperrors.Forbidden("user is not a member of this group")
		}
		return nil, err
	}
	return member, nil
}

func (s *groupService) Create(ctx context.Context, ownerID int64, name string, memberIDs []int64) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidArg("group name is required")
	}

	group := &domain.Group{Name: name, OwnerID: ownerID}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, err
	}

	owner := &domain.GroupMember{GroupID: group.ID, UserID: ownerID, Role: domain.GroupRoleAdmin}
	if err := s.groupRepo.AddMember(ctx, owner); err != nil {
		return nil, err
	}

	seen := map[int64]bool{ownerID: true}
	for _, memberID := range memberIDs {
		if seen[memberID] {
			continue
		}
		seen[memberID] = true

		exists, err := s.userRepo.Exists(ctx, memberID)
		if err != nil {
			return nil, err
		}
		if !exists {
			s.log.Warn("skipping non-existing user when creating group", "user", memberID, "group", group.ID)
			continue
		}

		member := &domain.GroupMember{GroupID: group.ID, UserID: memberID, Role: domain.GroupRoleMember}
		if err := s.groupRepo.AddMember(ctx, member); err != nil {
			return nil, err
		}
	}

	return group, nil
}

func (s *groupService) AddMember(ctx context.Context, groupID, requesterID, userID int64) (*domain.GroupMember, error) {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	requester, err := s.ensureMembership(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	if requester.Role != domain.GroupRoleAdmin {
		return nil, apperrors.Forbidden("only admins can manage members")
	}

	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.NotFound("user not found")
	}

	member := &domain.GroupMember{GroupID: groupID, UserID: userID, Role: domain.GroupRoleMember}
	if err := s.groupRepo.AddMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

func (s *groupService) ListGroups(ctx context.Context, userID int64) ([]*domain.Group, error) {
	return s.groupRepo.UserGroups(ctx, userID)
}

func (s *groupService) Messages(ctx context.Context, groupID, userID int64, limit int) ([]*domain.GroupMessageView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	if _, err := s.ensureMembership(ctx, groupID, userID); err != nil {
		return nil, err
	}

	messages, err := s.groupRepo.FindMessages(ctx, groupID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.GroupMessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, &domain.GroupMessageView{
			ID:        m.ID,
			GroupID:   m.GroupID,
			SenderID:  m.SenderID,
			Message:   m.Message,
			CreatedAt: m.CreatedAt,
			IsMe:      m.SenderID == userID,
		})
	}
	return views, nil
}

func (s *groupService) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	return s.groupRepo.MemberIDs(ctx, groupID)
}

func (s *groupService) SendMessage(ctx context.Context, groupID, senderID int64, body string) (*domain.GroupMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.InvalidArg("message is required")
	}
	if groupID <= 0 {
		return nil, apperrors.InvalidArg("groupId is required")
	}

	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	if _, err := s.ensureMembership(ctx, groupID, senderID); err != nil {
		return nil, err
	}

	message := &domain.GroupMessage{GroupID: groupID, SenderID: senderID, Message: body}
	if err := s.groupRepo.InsertMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *groupService) EditMessage(ctx context.Context, senderID, messageID int64, body string) (*domain.GroupMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.InvalidArg("message is required")
	}

	message, err := s.groupRepo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != senderID {
		return nil, apperrors.NotFound("message not found")
	}

	// Membership may have been revoked since the original send; check it
	// before touching the stored row.
	if _, err := s.ensureMembership(ctx, message.GroupID, senderID); err != nil {
		return nil, err
	}

	return s.groupRepo.UpdateMessageBody(ctx, messageID, senderID, body)
}
