package room

import (
	"errors"
	"time"
)

var (
	ErrNotAdmin        = errors.New("only the room admin can do this")
	ErrWrongStatus     = errors.New("room status does not allow this")
	ErrRoomFull        = errors.New("room is full")
	ErrAlreadyJoined   = errors.New("user already joined the room")
	ErrNotParticipant  = errors.New("user is not a room participant")
	ErrSizeOutOfRange  = errors.New("size is outside the game's min/max bounds")
	ErrSizeBelowJoined = errors.New("size is below the current participant count")
	ErrNotFull         = errors.New("room must be full to start")
	ErrBadTransition   = errors.New("illegal status transition")
)

// Game describes a playable game and its allowed table sizes.
type Game struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	MinSize int    `json:"min_size"`
	MaxSize int    `json:"max_size"`
}

type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

// Room is the authoritative snapshot of one game room. Clients hold a
// read-mostly mirror that is replaced whole on each fetch, never patched
// field by field.
type Room struct {
	ID           string        `json:"id"`
	Game         Game          `json:"game"`
	Admin        Participant   `json:"admin"`
	Participants []Participant `json:"participants"`
	Size         int           `json:"size"`
	Status       Status        `json:"status"`
	Created      time.Time     `json:"created"`
}

func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

func (r *Room) IsFull() bool {
	return len(r.Participants) >= r.Size
}

// ValidateResize checks the admin-only, setup-phase resize rules without
// mutating anything. The server runs the same checks before persisting.
func (r *Room) ValidateResize(userID string, newSize int) error {
	if !r.Status.IsCreated() {
		return ErrWrongStatus
	}
	if userID != r.Admin.ID {
		return ErrNotAdmin
	}
	if newSize < r.Game.MinSize || newSize > r.Game.MaxSize {
		return ErrSizeOutOfRange
	}
	if newSize < len(r.Participants) {
		return ErrSizeBelowJoined
	}
	return nil
}

// ValidateJoin checks whether userID may be added right now.
func (r *Room) ValidateJoin(userID string) error {
	if !r.Status.IsCreated() {
		return ErrWrongStatus
	}
	if r.HasParticipant(userID) {
		return ErrAlreadyJoined
	}
	if r.IsFull() {
		return ErrRoomFull
	}
	return nil
}

// ValidateStart checks the admin "start" trigger: setup phase, full table.
func (r *Room) ValidateStart(userID string) error {
	if !r.Status.IsCreated() {
		return ErrWrongStatus
	}
	if userID != r.Admin.ID {
		return ErrNotAdmin
	}
	if len(r.Participants) != r.Size {
		return ErrNotFull
	}
	return nil
}
