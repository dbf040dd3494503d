package game

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ahmadeko2017/dino-online/session"
)

// TickSink receives the per-tick local player report. The match coordinator
// is the production sink.
type TickSink interface {
	HandleLocalTick(session.PlayerUpdate)
}

// Runner owns the loop goroutine: roughly 60 ticks per second, each advancing
// the world and reporting to the sink. Start resets the world (start and
// restart are the same operation); the loop keeps running after a crash so a
// dead player still replicates state while spectating.
type Runner struct {
	sink TickSink
	rng  *rand.Rand

	mu        sync.Mutex
	state     *State
	highScore int
	jump      bool
	duck      bool
	stop      chan struct{}
}

func NewRunner(sink TickSink, rng *rand.Rand) *Runner {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Runner{sink: sink, rng: rng, state: NewState()}
}

// PressJump queues a jump for the next tick.
func (r *Runner) PressJump() {
	r.mu.Lock()
	r.jump = true
	r.mu.Unlock()
}

// HoldDuck sets the duck key level.
func (r *Runner) HoldDuck(down bool) {
	r.mu.Lock()
	r.duck = down
	r.mu.Unlock()
}

// Snapshot copies the current world for rendering.
func (r *Runner) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := *r.state
	snap.Obstacles = append([]Obstacle(nil), r.state.Obstacles...)
	return snap
}

func (r *Runner) HighScore() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highScore
}

func (r *Runner) Start() {
	r.mu.Lock()
	if r.stop != nil {
		close(r.stop)
	}
	r.state = NewState()
	r.jump, r.duck = false, false
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	go r.loop(stop)
}

func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.mu.Unlock()
}

func (r *Runner) loop(stop chan struct{}) {
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dtMs := float64(now.Sub(last).Milliseconds())
			last = now
			// a long stall collapses to one reference frame
			if dtMs > 100 {
				dtMs = 16
			}
			r.tick(dtMs)
		}
	}
}

func (r *Runner) tick(dtMs float64) {
	r.mu.Lock()
	in := Input{Jump: r.jump, Duck: r.duck}
	r.jump = false
	ev := r.state.Step(dtMs, in, r.rng)
	if ev.Crashed && int(r.state.Score) > r.highScore {
		r.highScore = int(r.state.Score)
	}
	update := session.PlayerUpdate{
		Y:     r.state.Dino.Y,
		State: r.state.Dino.State,
		Score: r.state.Score,
		Alive: !r.state.GameOver,
	}
	r.mu.Unlock()

	r.sink.HandleLocalTick(update)
}
