package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"cardroom/internal/room"
	"cardroom/internal/server/storage"
	"cardroom/internal/types"
)

func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.store.ListGames(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeResults(w, games)
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetGameByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, g)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Can't perform this action.")
		return
	}
	g, err := s.store.GetGameByID(r.Context(), chi.URLParam(r, "game_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var body struct {
		Size int `json:"size"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	size := body.Size
	if size == 0 {
		size = g.MinSize
	}
	if size < g.MinSize || size > g.MaxSize {
		writeError(w, http.StatusBadRequest, room.ErrSizeOutOfRange.Error())
		return
	}

	admin, err := s.store.EnsurePlayer(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	rm := &room.Room{
		Game:         *g,
		Admin:        *admin,
		Participants: []room.Participant{*admin},
		Size:         size,
		Status:       room.StatusCreated,
	}
	if err := s.store.CreateRoom(r.Context(), rm); err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("room created",
		zap.String("room_id", rm.ID),
		zap.String("game", g.Name),
		zap.String("admin_id", admin.ID))
	writeData(w, http.StatusCreated, rm)
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.store.ListRooms(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeResults(w, rooms)
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.store.GetRoom(r.Context(), chi.URLParam(r, "room_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, rm)
}

func (s *Server) updateRoom(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Can't perform this action.")
		return
	}
	defer s.lockRoom(chi.URLParam(r, "room_id"))()
	rm, err := s.store.GetRoom(r.Context(), chi.URLParam(r, "room_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if userID != rm.Admin.ID {
		writeError(w, http.StatusUnauthorized, "Can't perform this action.")
		return
	}

	var body struct {
		Size   *int         `json:"size"`
		Status *room.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error")
		return
	}

	if body.Status != nil {
		next := *body.Status
		if !rm.Status.CanTransition(next) {
			writeError(w, http.StatusBadRequest, room.ErrBadTransition.Error())
			return
		}
		if next == room.StatusStarted {
			if err := rm.ValidateStart(userID); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := s.initTurnState(r, rm); err != nil {
				writeStoreError(w, err)
				return
			}
		}
		rm.Status = next
	}

	if body.Size != nil {
		if err := rm.ValidateResize(userID, *body.Size); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rm.Size = *body.Size
	}

	if err := s.store.UpdateRoom(r.Context(), rm); err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("room updated",
		zap.String("room_id", rm.ID),
		zap.Stringer("status", rm.Status),
		zap.Int("size", rm.Size))
	s.hub.Notify(rm.ID)
	writeData(w, http.StatusOK, rm)
}

// initTurnState opens the turn ledger when the room starts: turn zero, the
// first participant to act. The game payload itself stays empty here; game
// rule engines live elsewhere.
func (s *Server) initTurnState(r *http.Request, rm *room.Room) error {
	ts := &types.TurnState{
		Turn:           0,
		ActivePlayerID: rm.Participants[0].ID,
		Status:         types.GameStatusPlaying,
	}
	return s.store.SaveTurnState(r.Context(), rm.ID, ts)
}

func (s *Server) getTurnState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	if _, err := s.store.GetRoom(r.Context(), roomID); err != nil {
		writeStoreError(w, err)
		return
	}
	ts, err := s.store.GetTurnState(r.Context(), roomID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "Game is not started.")
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, ts)
}

func (s *Server) submitTurn(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Can't perform this action.")
		return
	}
	defer s.lockRoom(chi.URLParam(r, "room_id"))()
	rm, err := s.store.GetRoom(r.Context(), chi.URLParam(r, "room_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !rm.HasParticipant(userID) {
		writeError(w, http.StatusForbidden, "Unauthorized action.")
		return
	}
	if !rm.Status.IsStarted() {
		writeError(w, http.StatusBadRequest, "Room is not in play.")
		return
	}

	var turn types.TurnSubmission
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil || turn.Cards == nil {
		writeError(w, http.StatusBadRequest, "Validation error")
		return
	}

	ts, err := s.store.GetTurnState(r.Context(), rm.ID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if ts.Status != types.GameStatusPlaying || ts.ActivePlayerID != userID {
		writeError(w, http.StatusBadRequest, "Invalid turn.")
		return
	}

	entry := storage.TurnEntry{
		Turn:     ts.Turn,
		PlayerID: userID,
		Cards:    turn.Cards,
		Skip:     turn.Skip,
	}
	if err := s.store.AppendTurn(r.Context(), rm.ID, entry); err != nil {
		writeStoreError(w, err)
		return
	}

	ts.Turn++
	ts.ActivePlayerID = nextParticipant(rm, userID)
	if err := s.store.SaveTurnState(r.Context(), rm.ID, ts); err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("turn recorded",
		zap.String("room_id", rm.ID),
		zap.String("player_id", userID),
		zap.Int("turn", entry.Turn),
		zap.Bool("skip", entry.Skip))
	writeData(w, http.StatusOK, ts)
}

func nextParticipant(rm *room.Room, current string) string {
	for i, p := range rm.Participants {
		if p.ID == current {
			return rm.Participants[(i+1)%len(rm.Participants)].ID
		}
	}
	return rm.Participants[0].ID
}

func (s *Server) addParticipant(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Can't perform this action.")
		return
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "Validation error")
		return
	}
	if body.UserID != userID {
		writeError(w, http.StatusUnauthorized, "Can't perform this action.")
		return
	}

	defer s.lockRoom(chi.URLParam(r, "room_id"))()
	rm, err := s.store.GetRoom(r.Context(), chi.URLParam(r, "room_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := rm.ValidateJoin(userID); err != nil {
		writeError(w, http.StatusBadRequest, joinErrorMessage(err))
		return
	}

	p, err := s.store.EnsurePlayer(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	rm.Participants = append(rm.Participants, *p)
	if err := s.store.UpdateRoom(r.Context(), rm); err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusCreated, rm)
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, room.ErrAlreadyJoined):
		return "User already joined the room."
	case errors.Is(err, room.ErrRoomFull):
		return "Room is full."
	default:
		return "Room is not open to join."
	}
}

func (s *Server) removeParticipant(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Can't perform this action.")
		return
	}
	if chi.URLParam(r, "player_id") != userID {
		writeError(w, http.StatusUnauthorized, "Can't perform this action.")
		return
	}

	defer s.lockRoom(chi.URLParam(r, "room_id"))()
	rm, err := s.store.GetRoom(r.Context(), chi.URLParam(r, "room_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !rm.HasParticipant(userID) {
		writeError(w, http.StatusBadRequest, "User is not a participant of the room.")
		return
	}

	kept := rm.Participants[:0]
	for _, p := range rm.Participants {
		if p.ID != userID {
			kept = append(kept, p)
		}
	}
	rm.Participants = kept
	switch {
	case rm.Status.IsStarted() && rm.Status.CanTransition(room.StatusAbandoned):
		// a table missing a player cannot continue
		rm.Status = room.StatusAbandoned
	case len(rm.Participants) == 0 && rm.Status.CanTransition(room.StatusCanceled):
		// nobody left to play; close the room
		rm.Status = room.StatusCanceled
	}
	if err := s.store.UpdateRoom(r.Context(), rm); err != nil {
		writeStoreError(w, err)
		return
	}
	// viewers with an open channel learn about the departure right away
	s.hub.Notify(rm.ID)
	w.WriteHeader(http.StatusNoContent)
}
