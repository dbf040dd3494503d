package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmadeko2017/dino-online/game"
	"github.com/ahmadeko2017/dino-online/match"
	"github.com/ahmadeko2017/dino-online/session"
	"github.com/ahmadeko2017/dino-online/store"
)

// ResultRecorder persists a finished match. The HTTP implementation posts to
// the leaderboard endpoint; tests substitute their own.
type ResultRecorder interface {
	RecordResult(ctx context.Context, roomCode string, result match.Result) error
}

// Config for one player's stack.
type Config struct {
	Store    store.Store
	ClientID string
	Notifier match.Notifier

	// Recorder is optional; when set, every MatchEnded is submitted to it.
	Recorder ResultRecorder

	// HeartbeatWindow is the opponent-staleness forfeit window. Zero disables
	// the forfeit check.
	HeartbeatWindow time.Duration

	Log *slog.Logger
}

// Client wires the per-player stack: the session manager against the store,
// the match coordinator between them, and the local game loop feeding ticks
// back into the coordinator.
type Client struct {
	Manager     *session.Manager
	Coordinator *match.Coordinator
	Runner      *game.Runner
}

// New builds and connects the three parts. The manager wants its observer and
// the runner its sink at construction, while both targets are the coordinator
// built from them; small forwarders set immediately afterwards break the
// cycle. Callbacks cannot fire before create/join, ticks not before Start.
func New(cfg Config) *Client {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	c := &Client{}

	observer := &observerRelay{}
	sink := &tickRelay{}

	c.Manager = session.NewManager(cfg.Store, cfg.ClientID, observer, log)
	c.Runner = game.NewRunner(sink, nil)

	notify := cfg.Notifier
	if cfg.Recorder != nil {
		notify = &recordingNotifier{
			Notifier: notify,
			recorder: cfg.Recorder,
			client:   c,
			log:      log,
		}
	}

	c.Coordinator = match.NewCoordinator(c.Manager, c.Runner, notify,
		match.NewOpponentProxy(), cfg.HeartbeatWindow, log)

	observer.set(c.Coordinator)
	sink.set(c.Coordinator)
	return c
}

// recordingNotifier passes every event through and additionally submits
// MatchEnded results. Submission runs off the callback goroutine so a slow
// recorder cannot stall snapshot delivery.
type recordingNotifier struct {
	match.Notifier
	recorder ResultRecorder
	client   *Client
	log      *slog.Logger
}

func (n *recordingNotifier) MatchEnded(r match.Result) {
	n.Notifier.MatchEnded(r)

	roomCode := n.client.Manager.RoomID()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := n.recorder.RecordResult(ctx, roomCode, r); err != nil {
			n.log.Warn("match result submission failed",
				"room", roomCode, "outcome", r.Outcome.String(), "err", err)
		}
	}()
}

type observerRelay struct {
	mu     sync.Mutex
	target session.RoomObserver
}

func (r *observerRelay) set(target session.RoomObserver) {
	r.mu.Lock()
	r.target = target
	r.mu.Unlock()
}

func (r *observerRelay) get() session.RoomObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

func (r *observerRelay) PlayerJoined() {
	if t := r.get(); t != nil {
		t.PlayerJoined()
	}
}

func (r *observerRelay) OpponentUpdate(p session.PlayerSnapshot) {
	if t := r.get(); t != nil {
		t.OpponentUpdate(p)
	}
}

func (r *observerRelay) ReadyStateChanged(rs session.ReadyState) {
	if t := r.get(); t != nil {
		t.ReadyStateChanged(rs)
	}
}

func (r *observerRelay) RematchStateChanged(rs session.RematchState) {
	if t := r.get(); t != nil {
		t.RematchStateChanged(rs)
	}
}

func (r *observerRelay) ChatReceived(msg session.ChatMessage) {
	if t := r.get(); t != nil {
		t.ChatReceived(msg)
	}
}

type tickRelay struct {
	mu     sync.Mutex
	target game.TickSink
}

func (r *tickRelay) set(target game.TickSink) {
	r.mu.Lock()
	r.target = target
	r.mu.Unlock()
}

func (r *tickRelay) HandleLocalTick(u session.PlayerUpdate) {
	r.mu.Lock()
	t := r.target
	r.mu.Unlock()
	if t != nil {
		t.HandleLocalTick(u)
	}
}
