package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/89hikari/telegram-clone-backend/internal/domain"
	"github.com/89hikari/telegram-clone-backend/internal/repository"
	apperrors "github.com/89hikari/telegram-clone-backend/pkg/errors"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type memGroupRepo struct {
	repository.GroupRepository
	groups   map[int64]*domain.Group
	members  map[int64]map[int64]*domain.GroupMember
	messages map[int64]*domain.GroupMessage
	nextID   int64
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{
		groups:   make(map[int64]*domain.Group),
		members:  make(map[int64]map[int64]*domain.GroupMember),
		messages: make(map[int64]*domain.GroupMessage),
	}
}

func (r *memGroupRepo) Create(_ context.Context, group *domain.Group) error {
	r.nextID++
	group.ID = r.nextID
	r.groups[group.ID] = group
	return nil
}

func (r *memGroupRepo) GetByID(_ context.Context, id int64) (*domain.Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, apperrors.NotFound("group not found")
	}
	return g, nil
}

func (r *memGroupRepo) AddMember(_ context.Context, member *domain.GroupMember) error {
	if r.members[member.GroupID] == nil {
		r.members[member.GroupID] = make(map[int64]*domain.GroupMember)
	}
	if _, exists := r.members[member.GroupID][member.UserID]; exists {
		return nil
	}
	r.members[member.GroupID][member.UserID] = member
	return nil
}

func (r *memGroupRepo) GetMember(_ context.Context, groupID, userID int64) (*domain.GroupMember, error) {
	m, ok := r.members[groupID][userID]
	if !ok {
		return nil, apperrors.NotFound("member not found")
	}
	return m, nil
}

func (r *memGroupRepo) MemberIDs(_ context.Context, groupID int64) ([]int64, error) {
	var ids []int64
	for id := range r.members[groupID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memGroupRepo) InsertMessage(_ context.Context, m *domain.GroupMessage) error {
	r.nextID++
	m.ID = r.nextID
	r.messages[m.ID] = m
	return nil
}

func (r *memGroupRepo) GetMessage(_ context.Context, messageID int64) (*domain.GroupMessage, error) {
	m, ok := r.messages[messageID]
	if !ok {
		return nil, apperrors.NotFound("message not found")
	}
	return m, nil
}

func (r *memGroupRepo) UpdateMessageBody(_ context.Context, messageID, senderID int64, body string) (*domain.GroupMessage, error) {
	m, ok := r.messages[messageID]
	if !ok || m.SenderID != senderID {
		return nil, apperrors.NotFound("message not found")
	}
	m.Message = body
	return m, nil
}

func newGroupFixture() (*memGroupRepo, GroupService) {
	groupRepo := newMemGroupRepo()
	userRepo := &fakeUserRepo{existing: map[int64]bool{1: true, 2: true, 3: true}}
	return groupRepo, NewGroupService(groupRepo, userRepo, logger.New("error"))
}

func TestGroupServiceCreate(t *testing.T) {
	t.Run("owner becomes admin, members deduped, unknown users skipped", func(t *testing.T) {
		groupRepo, svc := newGroupFixture()

		group, err := svc.Create(context.Background(), 1, "chess club", []int64{2, 2, 99, 1})
		require.NoError(t, err)

		assert.Equal(t, domain.GroupRoleAdmin, groupRepo.members[group.ID][1].Role)
		assert.Equal(t, domain.GroupRoleMember, groupRepo.members[group.ID][2].Role)
		assert.NotContains(t, groupRepo.members[group.ID], int64(99))
		assert.Len(t, groupRepo.members[group.ID], 2)
	})

	t.Run("blank name is rejected", func(t *testing.T) {
		_, svc := newGroupFixture()

		_, err := svc.Create(context.Background(), 1, "  ", nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))
	})
}

func TestGroupServiceAddMember(t *testing.T) {
	_, svc := newGroupFixture()
	group, err := svc.Create(context.Background(), 1, "chess club", []int64{2})
	require.NoError(t, err)

	t.Run("admin can add", func(t *testing.T) {
		member, err := svc.AddMember(context.Background(), group.ID, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, domain.GroupRoleMember, member.Role)
	})

	t.Run("plain member cannot add", func(t *testing.T) {
		_, err := svc.AddMember(context.Background(), group.ID, 2, 3)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
	})

	t.Run("non-member cannot add", func(t *testing.T) {
		_, err := svc.AddMember(context.Background(), group.ID, 42, 3)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := svc.AddMember(context.Background(), 999, 1, 3)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	})
}

func TestGroupServiceSendMessage(t *testing.T) {
	_, svc := newGroupFixture()
	group, err := svc.Create(context.Background(), 1, "chess club", []int64{2})
	require.NoError(t, err)

	t.Run("member can send", func(t *testing.T) {
		m, err := svc.SendMessage(context.Background(), group.ID, 2, " hi ")
		require.NoError(t, err)
		assert.Equal(t, "hi", m.Message)
		assert.NotZero(t, m.ID)
	})

	t.Run("non-member is rejected before persist", func(t *testing.T) {
		_, err := svc.SendMessage(context.Background(), group.ID, 3, "hi")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := svc.SendMessage(context.Background(), 999, 1, "hi")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	})
}

func TestGroupServiceEditMessage(t *testing.T) {
	groupRepo, svc := newGroupFixture()
	group, err := svc.Create(context.Background(), 1, "chess club", []int64{2})
	require.NoError(t, err)
	m, err := svc.SendMessage(context.Background(), group.ID, 2, "original")
	require.NoError(t, err)

	t.Run("owner can edit", func(t *testing.T) {
		edited, err := svc.EditMessage(context.Background(), 2, m.ID, "fixed")
		require.NoError(t, err)
		assert.Equal(t, "fixed", edited.Message)
	})

	t.Run("non-owner cannot edit", func(t *testing.T) {
		_, err := svc.EditMessage(context.Background(), 1, m.ID, "hijacked")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	})

	t.Run("revoked membership blocks the edit before persisting", func(t *testing.T) {
		delete(groupRepo.members[group.ID], int64(2))

		_, err := svc.EditMessage(context.Background(), 2, m.ID, "too late")
		require.Error(t, err)
		assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
		assert.Equal(t, "fixed", groupRepo.messages[m.ID].Message, "stored body is untouched on the error branch")
	})
}
