package storage

import (
	"context"
	"errors"

	"cardroom/internal/room"
	"cardroom/internal/types"
)

var ErrNotFound = errors.New("not found")

// TurnEntry is one row of a room's turn ledger. A skipped turn is a real
// entry with Skip set, which keeps it distinguishable from a turn that was
// never submitted.
type TurnEntry struct {
	Turn     int      `json:"turn"`
	PlayerID string   `json:"player_id"`
	Cards    []string `json:"cards"`
	Skip     bool     `json:"skip"`
}

// Store is the persistence boundary of the room service.
type Store interface {
	EnsurePlayer(ctx context.Context, id string) (*room.Participant, error)

	CreateGame(ctx context.Context, g *room.Game) error
	GetGameByID(ctx context.Context, id string) (*room.Game, error)
	GetGameByName(ctx context.Context, name string) (*room.Game, error)
	ListGames(ctx context.Context) ([]room.Game, error)

	CreateRoom(ctx context.Context, r *room.Room) error
	GetRoom(ctx context.Context, id string) (*room.Room, error)
	ListRooms(ctx context.Context) ([]room.Room, error)
	UpdateRoom(ctx context.Context, r *room.Room) error

	SaveTurnState(ctx context.Context, roomID string, ts *types.TurnState) error
	GetTurnState(ctx context.Context, roomID string) (*types.TurnState, error)
	AppendTurn(ctx context.Context, roomID string, entry TurnEntry) error
	ListTurns(ctx context.Context, roomID string) ([]TurnEntry, error)
}
