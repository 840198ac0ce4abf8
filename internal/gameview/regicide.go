package gameview

import (
	"encoding/json"
	"fmt"

	"cardroom/internal/types"
)

// RegicideModule renders the co-op card game's turn payload. Only the two
// fields the core guarantees drive the messaging; the rest of the payload
// is best-effort decoration and missing pieces are simply not shown.
type RegicideModule struct{}

func (RegicideModule) Name() string { return "Regicide" }

// regicidePayload is the slice of the opaque turn data this view shows.
type regicidePayload struct {
	Hand          []string   `json:"hand"`
	EnemyCard     []string   `json:"enemy_card"`
	EnemyDeckSize int        `json:"enemy_deck_size"`
	PlayedCombos  [][]string `json:"played_combos"`
}

func (RegicideModule) Render(state *types.TurnState, caps Capabilities) Frame {
	f := Frame{Title: "Regicide"}
	if state == nil {
		f.Lines = append(f.Lines, "Waiting for game state.")
		return f
	}

	switch {
	case state.Status == types.GameStatusFinished:
		f.Lines = append(f.Lines, "The game is over.")
	case caps.IsActivePlayer:
		f.Lines = append(f.Lines, "You should play cards or yield.")
	case caps.IsParticipant:
		f.Lines = append(f.Lines, "Your partner plays.")
	default:
		f.Lines = append(f.Lines, "You are watching this game.")
	}

	var p regicidePayload
	if err := json.Unmarshal(state.Data, &p); err == nil {
		if len(p.EnemyCard) == 2 {
			f.Lines = append(f.Lines, fmt.Sprintf("Enemy: %s%s (deck %d)",
				p.EnemyCard[0], p.EnemyCard[1], p.EnemyDeckSize))
		}
		if len(p.Hand) > 0 {
			f.Lines = append(f.Lines, fmt.Sprintf("Hand: %v", p.Hand))
		}
		if len(p.PlayedCombos) > 0 {
			f.Lines = append(f.Lines, fmt.Sprintf("Played combos: %d", len(p.PlayedCombos)))
		}
	}

	f.CanAct = canAct(state, caps)
	return f
}
