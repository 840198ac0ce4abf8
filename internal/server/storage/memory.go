package storage

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardroom/internal/room"
	"cardroom/internal/types"
)

// MemoryStore keeps everything in process. It is the default store and the
// one every test runs against.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[string]room.Participant
	games   map[string]room.Game // by id
	rooms   map[string]room.Room
	states  map[string]types.TurnState
	ledgers map[string][]TurnEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]room.Participant),
		games:   make(map[string]room.Game),
		rooms:   make(map[string]room.Room),
		states:  make(map[string]types.TurnState),
		ledgers: make(map[string][]TurnEntry),
	}
}

func (s *MemoryStore) EnsurePlayer(ctx context.Context, id string) (*room.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[id]; ok {
		return &p, nil
	}
	p := room.Participant{
		ID:       id,
		Name:     fmt.Sprintf("player-%04d", rand.Intn(10000)),
		Nickname: "",
	}
	s.players[id] = p
	return &p, nil
}

func (s *MemoryStore) CreateGame(ctx context.Context, g *room.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.games[g.ID] = *g
	return nil
}

func (s *MemoryStore) GetGameByID(ctx context.Context, id string) (*room.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.games[id]; ok {
		return &g, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetGameByName(ctx context.Context, name string) (*room.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.games {
		if g.Name == name {
			return &g, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListGames(ctx context.Context) ([]room.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]room.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	return out, nil
}

func (s *MemoryStore) CreateRoom(ctx context.Context, r *room.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	s.rooms[r.ID] = cloneRoom(*r)
	return nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, id string) (*room.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[id]; ok {
		c := cloneRoom(r)
		return &c, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListRooms(ctx context.Context) ([]room.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]room.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, cloneRoom(r))
	}
	return out, nil
}

func (s *MemoryStore) UpdateRoom(ctx context.Context, r *room.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[r.ID]; !ok {
		return ErrNotFound
	}
	s.rooms[r.ID] = cloneRoom(*r)
	return nil
}

func (s *MemoryStore) SaveTurnState(ctx context.Context, roomID string, ts *types.TurnState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[roomID] = *ts
	return nil
}

func (s *MemoryStore) GetTurnState(ctx context.Context, roomID string) (*types.TurnState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ts, ok := s.states[roomID]; ok {
		return &ts, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) AppendTurn(ctx context.Context, roomID string, entry TurnEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[roomID] = append(s.ledgers[roomID], entry)
	return nil
}

func (s *MemoryStore) ListTurns(ctx context.Context, roomID string) ([]TurnEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TurnEntry, len(s.ledgers[roomID]))
	copy(out, s.ledgers[roomID])
	return out, nil
}

func cloneRoom(r room.Room) room.Room {
	ps := make([]room.Participant, len(r.Participants))
	copy(ps, r.Participants)
	r.Participants = ps
	return r
}
