package turns

import "sync"

// PendingAction buffers a player's in-progress selection for the next turn
// submission. It is local state only; nothing here has been seen by the
// server. A buffer never survives a turn-counter change it did not cause.
// The internal lock covers the one legal overlap: a fetch completion
// invalidating the buffer while a submission is clearing it.
type PendingAction struct {
	mu      sync.Mutex
	started bool
	turn    int
	cards   []string
}

// Begin opens a selection bound to the given turn counter. Beginning again
// on the same turn keeps the current selection.
func (p *PendingAction) Begin(turn int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started && p.turn == turn {
		return
	}
	p.started = true
	p.turn = turn
	p.cards = nil
}

// Toggle adds the card to the selection, or removes it if already selected.
func (p *PendingAction) Toggle(card string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.cards {
		if c == card {
			p.cards = append(p.cards[:i], p.cards[i+1:]...)
			return
		}
	}
	p.cards = append(p.cards, card)
}

// Started reports whether the user has begun selecting at all. An empty
// started selection is a deliberate "skip", not the absence of input.
func (p *PendingAction) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *PendingAction) Turn() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turn
}

func (p *PendingAction) Cards() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.cards))
	copy(out, p.cards)
	return out
}

func (p *PendingAction) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
}

func (p *PendingAction) clearLocked() {
	p.started = false
	p.turn = 0
	p.cards = nil
}

// Invalidate clears the buffer if the authoritative turn counter has moved
// past the turn the selection was made for.
func (p *PendingAction) Invalidate(currentTurn int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started && p.turn != currentTurn {
		p.clearLocked()
	}
}
