// Package match drives the local game lifecycle from session callbacks: the
// readiness rendezvous, end-of-match agreement, and rematch renegotiation.
package match

import (
	"sync"

	"github.com/ahmadeko2017/dino-online/session"
)

// OpponentProxy is a passive mirror of the last known remote player state. It
// has no write path to the store; the renderer reads it for the ghost and the
// coordinator reads it for the end-of-match compare. No interpolation.
type OpponentProxy struct {
	mu    sync.Mutex
	state session.PlayerSnapshot
}

func NewOpponentProxy() *OpponentProxy {
	p := &OpponentProxy{}
	p.Reset()
	return p
}

func (p *OpponentProxy) Update(s session.PlayerSnapshot) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *OpponentProxy) Snapshot() session.PlayerSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *OpponentProxy) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Alive
}

func (p *OpponentProxy) Score() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Score
}

// Reset returns the mirror to a fresh-match state so a stale dead opponent
// from the previous match cannot end the next one early.
func (p *OpponentProxy) Reset() {
	p.mu.Lock()
	p.state = session.PlayerSnapshot{State: session.StateStanding, Alive: true}
	p.mu.Unlock()
}
