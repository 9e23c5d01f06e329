package room

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/analysis"
	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/store"
	"github.com/sirupsen/logrus"
)

// RoomStore manages the live rooms in this process, keyed by debate
// ID. Rooms are created on demand and evicted when their last session
// leaves; the debates themselves live in the persistence store.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room

	store    store.Store
	pipeline *analysis.Pipeline
	logger   *logrus.Logger

	// OnFinalized is installed on every room this store creates.
	OnFinalized func(result *models.Result)
}

func NewRoomStore(st store.Store, pipeline *analysis.Pipeline, logger *logrus.Logger) *RoomStore {
	return &RoomStore{
		rooms:    make(map[uuid.UUID]*Room),
		store:    st,
		pipeline: pipeline,
		logger:   logger,
	}
}

// CreateDebate persists a fresh debate and registers its room.
func (s *RoomStore) CreateDebate(ctx context.Context, topic, inviteCode string) (*Room, error) {
	debate := &models.Debate{
		ID:         uuid.New(),
		Topic:      topic,
		Status:     models.StatusOpen,
		CreatedAt:  time.Now().UTC(),
		InviteCode: inviteCode,
	}
	if err := s.store.SaveDebate(ctx, debate); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.newRoomUnsafe(debate, 0)
	s.rooms[debate.ID] = r
	return r, nil
}

// GetOrLoad returns the live room for a debate, hydrating it from the
// persistence store when this process has no room yet.
func (s *RoomStore) GetOrLoad(ctx context.Context, debateID uuid.UUID) (*Room, error) {
	s.mu.Lock()
	if r, ok := s.rooms[debateID]; ok {
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	debate, err := s.store.LoadDebate(ctx, debateID)
	if err != nil {
		return nil, err
	}
	args, err := s.store.ListArguments(ctx, debateID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[debateID]; ok {
		return r, nil
	}
	r := s.newRoomUnsafe(debate, len(args))
	s.rooms[debateID] = r
	return r, nil
}

// List returns snapshots of every live room's debate, for dashboards
// and the list endpoint.
func (s *RoomStore) List() []models.Debate {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()

	out := make([]models.Debate, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Snapshot())
	}
	return out
}

// Get returns the live room if one exists in this process.
func (s *RoomStore) Get(debateID uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[debateID]
	return r, ok
}

func (s *RoomStore) newRoomUnsafe(debate *models.Debate, nextSeq int) *Room {
	r := NewRoom(debate, s.store, s.pipeline, s.logger, nextSeq)
	r.OnFinalized = s.OnFinalized
	r.OnEmpty = func(id uuid.UUID) {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rooms, id)
		s.logger.Infof("room %s evicted (no live sessions)", id)
	}
	return r
}
