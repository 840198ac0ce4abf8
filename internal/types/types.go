package types

import "encoding/json"

// RefreshToken is the only payload the realtime channel ever carries. It
// has no content of its own; receiving it means "re-fetch current state".
const RefreshToken = "refresh"

// TurnState is the authoritative game snapshot for a room. The sync core
// reads only Turn, ActivePlayerID and Status; everything else is an opaque
// per-game payload handed to the game's view module untouched.
type TurnState struct {
	Turn           int             `json:"turn"`
	ActivePlayerID string          `json:"active_player_id"`
	Status         string          `json:"status"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// Gameplay status values every game payload must use for the two fields the
// core interprets. Game-specific statuses beyond these are passed through to
// the view module as-is.
const (
	GameStatusPlaying  = "playing"
	GameStatusFinished = "finished"
)

// TurnSubmission is the wire form of one submitted action. Skip is explicit
// so an empty-handed turn stays distinguishable from "no selection yet" in
// the turn history.
type TurnSubmission struct {
	Cards []string `json:"cards"`
	Skip  bool     `json:"skip,omitempty"`
}
