package gameview

import (
	"strings"

	"cardroom/internal/types"
)

// Capabilities is what the sync core knows about the viewer at render time.
// Modules use it only for messaging and input gating; the authority
// re-validates every action regardless.
type Capabilities struct {
	ViewerID       string
	IsParticipant  bool
	IsActivePlayer bool
}

// Frame is one rendered view of a turn state.
type Frame struct {
	Title  string
	Lines  []string
	CanAct bool
}

// Module renders one game's turn payload and decides what the viewer may
// attempt. Everything a module emits funnels back through the turn
// submission controller.
type Module interface {
	Name() string
	Render(state *types.TurnState, caps Capabilities) Frame
}

// Registry maps a game name to its view module. Populated at startup;
// unknown names resolve to the fallback, never to an error. Lookup is
// case-insensitive because game names arrive in whatever casing the room
// descriptor carries.
type Registry struct {
	modules  map[string]Module
	fallback Module
}

// NewRegistry returns a registry with the built-in game views registered.
func NewRegistry() *Registry {
	r := &Registry{
		modules:  make(map[string]Module),
		fallback: fallbackModule{},
	}
	r.Register(RegicideModule{})
	r.Register(TicTacToeModule{})
	return r
}

func (r *Registry) Register(m Module) {
	r.modules[strings.ToLower(m.Name())] = m
}

// Resolve returns the module for gameName, or the fallback when no module
// is registered. It never fails.
func (r *Registry) Resolve(gameName string) Module {
	if m, ok := r.modules[strings.ToLower(gameName)]; ok {
		return m
	}
	return r.fallback
}

// canAct is the shared input gate: gameplay must be live and it must be the
// viewer's turn.
func canAct(state *types.TurnState, caps Capabilities) bool {
	if state == nil {
		return false
	}
	return state.Status != types.GameStatusFinished && caps.IsActivePlayer
}
