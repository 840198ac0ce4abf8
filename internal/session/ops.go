package session

import (
	"context"
	"errors"

	"cardroom/internal/gameview"
	"cardroom/internal/room"
	"cardroom/internal/roomsvc"
	"cardroom/internal/turns"
	"cardroom/internal/types"
)

var ErrNotActive = errors.New("session is not active")

// View is everything a renderer needs for one paint of the room screen.
type View struct {
	Room           *room.Room
	Turn           *types.TurnState
	IsAdmin        bool
	IsParticipant  bool
	CanJoin        bool
	CanStart       bool
	IsActivePlayer bool
	ChannelReady   bool
	Frame          gameview.Frame
	Notices        []string
	PendingCards   []string
}

// View returns a consistent snapshot assembled on the session goroutine.
func (s *Session) View() View {
	if !s.started {
		return View{}
	}
	reply := make(chan View, 1)
	select {
	case s.inbox <- getView{reply: reply}:
	case <-s.ctx.Done():
		return View{}
	}
	select {
	case v := <-reply:
		return v
	case <-s.ctx.Done():
		return View{}
	}
}

// view runs on the loop goroutine.
func (s *Session) view() View {
	r := s.machine.Room()
	v := View{
		Room:          r,
		Turn:          s.turn,
		IsAdmin:       s.machine.IsAdmin(),
		IsParticipant: s.machine.IsParticipant(),
		CanJoin:       s.machine.CanJoin(),
		CanStart:      s.machine.CanStart(),
		Notices:       s.activeNotices(),
		PendingCards:  s.ctrl.Pending().Cards(),
	}
	v.ChannelReady = s.channel != nil && s.channel.Ready()
	v.IsActivePlayer = s.turn != nil && s.machine.ViewerID() != "" &&
		s.turn.ActivePlayerID == s.machine.ViewerID()

	if r == nil {
		return v
	}
	switch {
	case r.Status.IsStarted():
		mod := s.registry.Resolve(r.Game.Name)
		v.Frame = mod.Render(s.turn, gameview.Capabilities{
			ViewerID:       s.machine.ViewerID(),
			IsParticipant:  v.IsParticipant,
			IsActivePlayer: v.IsActivePlayer,
		})
	case r.Status.IsTerminal():
		v.Frame = gameview.Frame{
			Title: r.Game.Name,
			Lines: []string{terminalMessage(r.Status)},
		}
	}
	return v
}

func terminalMessage(st room.Status) string {
	switch {
	case st.IsFinished():
		return "The game is over."
	case st.IsCanceled():
		return "Game has been canceled."
	default:
		return "The game was abandoned."
	}
}

// Refresh manually retriggers the coalesced re-fetch, e.g. when the view
// becomes active again after a connection loss.
func (s *Session) Refresh() {
	s.post(signalMsg{})
}

// NotifyPeers sends the refresh token so other viewers of this room
// re-fetch promptly instead of waiting. A room still in setup has no
// channel; peers there fall back to their own refresh.
func (s *Session) NotifyPeers(ctx context.Context) error {
	if s.channel == nil {
		return nil
	}
	return s.channel.Send(ctx, types.RefreshToken)
}

// Join adds the viewer to the room's participants.
func (s *Session) Join(ctx context.Context) error {
	if !s.started {
		return ErrNotActive
	}
	r, err := s.svc.AddParticipant(ctx, s.roomID, s.machine.ViewerID())
	return s.applyRoomResult(ctx, r, err)
}

// Leave removes the viewer from the room's participants.
func (s *Session) Leave(ctx context.Context) error {
	if !s.started {
		return ErrNotActive
	}
	if err := s.svc.RemoveParticipant(ctx, s.roomID, s.machine.ViewerID()); err != nil {
		s.surface(err)
		return err
	}
	_ = s.NotifyPeers(ctx)
	s.Refresh()
	return nil
}

// Resize changes the target participant count. Admin-only, setup phase
// only; the authority re-validates both.
func (s *Session) Resize(ctx context.Context, newSize int) error {
	if !s.started {
		return ErrNotActive
	}
	r, err := s.svc.UpdateRoom(ctx, s.roomID, roomsvc.RoomUpdate{Size: &newSize})
	return s.applyRoomResult(ctx, r, err)
}

// StartGame moves the room to Started. The server refuses unless the
// caller is admin and the table is full.
func (s *Session) StartGame(ctx context.Context) error {
	if !s.started {
		return ErrNotActive
	}
	st := room.StatusStarted
	r, err := s.svc.UpdateRoom(ctx, s.roomID, roomsvc.RoomUpdate{Status: &st})
	return s.applyRoomResult(ctx, r, err)
}

func (s *Session) applyRoomResult(ctx context.Context, r *room.Room, err error) error {
	if err != nil {
		s.surface(err)
		return err
	}
	s.post(applyRoom{room: r})
	_ = s.NotifyPeers(ctx)
	return nil
}

// surface converts an operation error into a user-visible notice. The
// prior snapshot stays as it was.
func (s *Session) surface(err error) {
	var apiErr *roomsvc.APIError
	if errors.As(err, &apiErr) {
		s.post(noticeMsg{text: apiErr.Message})
		return
	}
	s.post(noticeMsg{text: turns.RetryLaterMessage})
}

// BeginSelection opens a pending action for the current turn.
func (s *Session) BeginSelection() { s.post(beginSelect{}) }

// ToggleCard adds or removes one card from the pending selection.
func (s *Session) ToggleCard(card string) { s.post(toggleCard{card: card}) }

// SubmitTurn sends the pending selection as this turn's action.
func (s *Session) SubmitTurn() { s.post(submitTurn{}) }

// SkipTurn sends an explicit empty turn.
func (s *Session) SkipTurn() { s.post(submitTurn{skip: true}) }
