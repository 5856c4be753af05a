package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/89hikari/telegram-clone-backend/internal/repository"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

type fakePresenceRepo struct {
	repository.PresenceRepository
	counts map[int64]int
	online map[int64]bool
}

func newFakePresenceRepo() *fakePresenceRepo {
	return &fakePresenceRepo{counts: make(map[int64]int), online: make(map[int64]bool)}
}

func (f *fakePresenceRepo) Connected(_ context.Context, userID int64) (bool, error) {
	f.counts[userID]++
	f.online[userID] = true
	return f.counts[userID] == 1, nil
}

func (f *fakePresenceRepo) Disconnected(_ context.Context, userID int64) (bool, error) {
	f.counts[userID]--
	if f.counts[userID] <= 0 {
		f.online[userID] = false
		return true, nil
	}
	return false, nil
}

func (f *fakePresenceRepo) OnlineAmong(_ context.Context, userIDs []int64) ([]int64, error) {
	var out []int64
	for _, id := range userIDs {
		if f.online[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakePeerMessageRepo struct {
	repository.MessageRepository
	peers []int64
}

func (f *fakePeerMessageRepo) DirectPeers(_ context.Context, _ int64) ([]int64, error) {
	return f.peers, nil
}

type fakePeerGroupRepo struct {
	repository.GroupRepository
	coMembers []int64
}

func (f *fakePeerGroupRepo) CoMembers(_ context.Context, _ int64) ([]int64, error) {
	return f.coMembers, nil
}

type lastSeenUserRepo struct {
	repository.UserRepository
	lastSeen map[int64]time.Time
}

func (f *lastSeenUserRepo) SetLastSeen(_ context.Context, id int64, at time.Time) error {
	if f.lastSeen == nil {
		f.lastSeen = make(map[int64]time.Time)
	}
	f.lastSeen[id] = at
	return nil
}

func newPresenceFixture(direct, coMembers []int64) (*fakePresenceRepo, *lastSeenUserRepo, PresenceService) {
	presenceRepo := newFakePresenceRepo()
	userRepo := &lastSeenUserRepo{}
	svc := NewPresenceService(
		presenceRepo,
		&fakePeerMessageRepo{peers: direct},
		&fakePeerGroupRepo{coMembers: coMembers},
		userRepo,
		logger.New("error"),
	)
	return presenceRepo, userRepo, svc
}

func TestPresencePeersOf(t *testing.T) {
	t.Run("unions direct and group peers without duplicates", func(t *testing.T) {
		_, _, svc := newPresenceFixture([]int64{2, 3}, []int64{3, 4})

		peers, err := svc.PeersOf(context.Background(), 1)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{2, 3, 4}, peers)
	})

	t.Run("never includes the user themselves", func(t *testing.T) {
		_, _, svc := newPresenceFixture([]int64{1, 2}, []int64{1})

		peers, err := svc.PeersOf(context.Background(), 1)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{2}, peers)
	})

	t.Run("no history means no peers", func(t *testing.T) {
		_, _, svc := newPresenceFixture(nil, nil)

		peers, err := svc.PeersOf(context.Background(), 1)
		require.NoError(t, err)
		assert.Empty(t, peers)
	})
}

func TestPresenceOnlinePeers(t *testing.T) {
	presenceRepo, _, svc := newPresenceFixture([]int64{2, 3}, nil)
	presenceRepo.online[2] = true

	online, err := svc.OnlinePeers(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, online)
}

func TestPresenceTransitions(t *testing.T) {
	t.Run("only the first connect reports first", func(t *testing.T) {
		_, _, svc := newPresenceFixture(nil, nil)

		first, err := svc.Connected(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, first)

		first, err = svc.Connected(context.Background(), 1)
		require.NoError(t, err)
		assert.False(t, first)
	})

	t.Run("only the last disconnect reports last and stamps last seen", func(t *testing.T) {
		_, userRepo, svc := newPresenceFixture(nil, nil)
		_, err := svc.Connected(context.Background(), 1)
		require.NoError(t, err)
		_, err = svc.Connected(context.Background(), 1)
		require.NoError(t, err)

		last, err := svc.Disconnected(context.Background(), 1)
		require.NoError(t, err)
		assert.False(t, last)
		assert.Empty(t, userRepo.lastSeen)

		last, err = svc.Disconnected(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, last)
		assert.Contains(t, userRepo.lastSeen, int64(1))
	})
}
