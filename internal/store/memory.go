package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/podiumhq/podium/internal/models"
)

// MemoryStore is an in-process Store used in tests and single-node dev
// runs. All methods are safe for concurrent use.
type MemoryStore struct {
	mu        sync.Mutex
	debates   map[uuid.UUID]*models.Debate
	arguments map[uuid.UUID][]*models.Argument
	results   map[uuid.UUID]*models.Result
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		debates:   make(map[uuid.UUID]*models.Debate),
		arguments: make(map[uuid.UUID][]*models.Argument),
		results:   make(map[uuid.UUID]*models.Result),
	}
}

func (s *MemoryStore) LoadDebate(_ context.Context, id uuid.UUID) (*models.Debate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debates[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	cp.Participants = append([]uuid.UUID(nil), d.Participants...)
	return &cp, nil
}

func (s *MemoryStore) SaveDebate(_ context.Context, debate *models.Debate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *debate
	cp.Participants = append([]uuid.UUID(nil), debate.Participants...)
	s.debates[debate.ID] = &cp
	return nil
}

func (s *MemoryStore) AppendArgument(_ context.Context, arg *models.Argument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *arg
	s.arguments[arg.DebateID] = append(s.arguments[arg.DebateID], &cp)
	return nil
}

func (s *MemoryStore) ListArguments(_ context.Context, debateID uuid.UUID) ([]*models.Argument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Argument(nil), s.arguments[debateID]...), nil
}

func (s *MemoryStore) SaveResult(_ context.Context, result *models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[result.DebateID]; exists {
		return ErrResultExists
	}
	s.results[result.DebateID] = result
	return nil
}

func (s *MemoryStore) LoadResult(_ context.Context, debateID uuid.UUID) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[debateID]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// ListDebates returns all debates, used by the list endpoint in dev mode.
func (s *MemoryStore) ListDebates(_ context.Context) ([]*models.Debate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Debate, 0, len(s.debates))
	for _, d := range s.debates {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}
