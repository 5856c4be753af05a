package service

import (
	"context"
	"time"

	"github.com/89hikari/telegram-clone-backend/internal/repository"
	"github.com/89hikari/telegram-clone-backend/pkg/logger"
)

// PresenceService is the membership oracle plus the online/offline state
// transitions. The peer set of a user is everyone sharing direct history or
// a group with them, never the user themselves.
type PresenceService interface {
	PeersOf(ctx context.Context, userID int64) ([]int64, error)
	OnlinePeers(ctx context.Context, userID int64) ([]int64, error)
	OnlineAmong(ctx context.Context, userIDs []int64) ([]int64, error)
	// Connected reports whether this was the user's first live connection.
	Connected(ctx context.Context, userID int64) (bool, error)
	// Disconnected reports whether the user went fully offline; only then
	// may a peerOffline be broadcast.
	Disconnected(ctx context.Context, userID int64) (bool, error)
	IsOnline(ctx context.Context, userID int64) (bool, error)
}

type presenceService struct {
	presenceRepo repository.PresenceRepository
	messageRepo  repository.MessageRepository
	groupRepo    repository.GroupRepository
	userRepo     repository.UserRepository
	log          logger.Logger
}

func NewPresenceService(
	presenceRepo repository.PresenceRepository,
	messageRepo repository.MessageRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	log logger.Logger,
) PresenceService {
	return &presenceService{
		presenceRepo: presenceRepo,
		messageRepo:  messageRepo,
		groupRepo:    groupRepo,
		userRepo:     userRepo,
		log:          log,
	}
}

func (s *presenceService) PeersOf(ctx context.Context, userID int64) ([]int64, error) {
	direct, err := s.messageRepo.DirectPeers(ctx, userID)
	if err != nil {
		return nil, err
	}
	coMembers, err := s.groupRepo.CoMembers(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(direct)+len(coMembers))
	peers := make([]int64, 0, len(direct)+len(coMembers))
	for _, id := range direct {
		if id != userID && !seen[id] {
			seen[id] = true
			peers = append(peers, id)
		}
	}
	for _, id := range coMembers {
		if id != userID && !seen[id] {
			seen[id] = true
			peers = append(peers, id)
		}
	}
	return peers, nil
}

func (s *presenceService) OnlinePeers(ctx context.Context, userID int64) ([]int64, error) {
	peers, err := s.PeersOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.presenceRepo.OnlineAmong(ctx, peers)
}

func (s *presenceService) OnlineAmong(ctx context.Context, userIDs []int64) ([]int64, error) {
	return s.presenceRepo.OnlineAmong(ctx, userIDs)
}

func (s *presenceService) Connected(ctx context.Context, userID int64) (bool, error) {
	return s.presenceRepo.Connected(ctx, userID)
}

func (s *presenceService) Disconnected(ctx context.Context, userID int64) (bool, error) {
	last, err := s.presenceRepo.Disconnected(ctx, userID)
	if err != nil {
		return false, err
	}
	if last {
		if err := s.userRepo.SetLastSeen(ctx, userID, time.Now()); err != nil {
			s.log.Warn("failed to record last seen", "error", err, "user", userID)
		}
	}
	return last, nil
}

func (s *presenceService) IsOnline(ctx context.Context, userID int64) (bool, error) {
	return s.presenceRepo.IsOnline(ctx, userID)
}
