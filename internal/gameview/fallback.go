package gameview

import "cardroom/internal/types"

// fallbackModule is what unknown or malformed game descriptors resolve to.
// It renders a static notice and permits nothing.
type fallbackModule struct{}

func (fallbackModule) Name() string { return "fallback" }

func (fallbackModule) Render(state *types.TurnState, caps Capabilities) Frame {
	return Frame{
		Title:  "Unknown game",
		Lines:  []string{"No view is available for this game."},
		CanAct: false,
	}
}
