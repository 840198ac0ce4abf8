package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cardroom/internal/realtime"
	"cardroom/internal/room"
	"cardroom/internal/server/storage"
)

// Server is the authoritative room service: room lifecycle, participants,
// the turn ledger, and the per-room realtime fan-out.
type Server struct {
	store storage.Store
	hub   *realtime.Hub
	log   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store storage.Store, hub *realtime.Hub, log *zap.Logger) *Server {
	return &Server{
		store: store,
		hub:   hub,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockRoom serializes every mutation of one room. Handlers read a snapshot,
// validate against it and write it back whole; without this, two concurrent
// writers would each validate a stale clone and the later write would erase
// the earlier one. Reads stay lock-free.
func (s *Server) lockRoom(roomID string) func() {
	s.mu.Lock()
	l, ok := s.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[roomID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Seed registers the built-in games, matching the registered view modules.
func (s *Server) Seed(ctx context.Context) error {
	games := []room.Game{
		{Name: "Regicide", MinSize: 1, MaxSize: 4},
		{Name: "TicTacToe", MinSize: 2, MaxSize: 2},
	}
	for i := range games {
		if err := s.store.CreateGame(ctx, &games[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/games", s.listGames)
		r.Get("/games/{name}", s.getGame)
		r.Post("/games/{game_id}/rooms", s.createRoom)

		r.Get("/rooms", s.listRooms)
		r.Get("/rooms/{room_id}", s.getRoom)
		r.Put("/rooms/{room_id}", s.updateRoom)
		r.Get("/rooms/{room_id}/data", s.getTurnState)
		r.Post("/rooms/{room_id}/turn", s.submitTurn)
		r.Post("/rooms/{room_id}/players", s.addParticipant)
		r.Delete("/rooms/{room_id}/players/{player_id}", s.removeParticipant)

		r.Get("/rooms/{room_id}/ws", realtime.Handler(s.hub, s.log))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
