package match

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ahmadeko2017/dino-online/session"
)

type Phase int

const (
	PhaseLobby Phase = iota
	PhaseWaitingRoom
	PhasePlaying
	PhaseMatchOver
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "LOBBY"
	case PhaseWaitingRoom:
		return "WAITING_ROOM"
	case PhasePlaying:
		return "PLAYING"
	case PhaseMatchOver:
		return "MATCH_OVER"
	}
	return "UNKNOWN"
}

type Outcome int

const (
	OutcomeDraw Outcome = iota
	OutcomeWin
	OutcomeLose
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "WIN"
	case OutcomeLose:
		return "LOSE"
	}
	return "DRAW"
}

// Result of a finished match. Forfeit marks a win by opponent abandonment;
// scores are whole points, equality maps to a draw.
type Result struct {
	Outcome  Outcome
	Forfeit  bool
	MyScore  int
	OppScore int
}

// RoomControls is the slice of the session manager the coordinator drives.
type RoomControls interface {
	SendUpdate(session.PlayerUpdate)
	SetReady(ctx context.Context, ready bool) error
	SetWantsRematch(ctx context.Context, wants bool) error
}

// GameDriver starts and stops the local game loop.
type GameDriver interface {
	Start()
	Stop()
}

// Notifier receives the semantic UI events the original wrote straight into
// the DOM. Implementations must not call back into the Coordinator.
type Notifier interface {
	OpponentJoined()
	WaitingRoom(session.ReadyState)
	MatchStarted()
	MatchEnded(Result)
	RematchStatus(session.RematchState)
	BackToWaitingRoom()
	Chat(session.ChatMessage)
}

// Coordinator is the per-client match state machine. It implements
// session.RoomObserver; its transitions are driven solely by snapshot-derived
// booleans and the local tick reports, never by wall-clock alone (the one
// exception is the opponent-staleness forfeit).
type Coordinator struct {
	controls RoomControls
	driver   GameDriver
	notify   Notifier
	proxy    *OpponentProxy
	log      *slog.Logger

	// forfeitAfter is how long the opponent's updates may go quiet during
	// PLAYING before the match ends by abandonment. Zero disables the check.
	forfeitAfter time.Duration
	now          func() time.Time

	mu            sync.Mutex
	phase         Phase
	started       bool // start latch: at most one PLAYING transition per match
	awaitingReset bool // after a rematch agreement, until stale ready flags clear
	localOver     bool
	myScore       float64
	lastOppSeen   time.Time
	lastOppBeat   int64 // opponent heartbeat value carried by the last advance
	lastChatTime  int64
}

func NewCoordinator(controls RoomControls, driver GameDriver, notify Notifier, proxy *OpponentProxy, forfeitAfter time.Duration, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		controls:     controls,
		driver:       driver,
		notify:       notify,
		proxy:        proxy,
		log:          log,
		forfeitAfter: forfeitAfter,
		now:          time.Now,
		phase:        PhaseLobby,
	}
}

func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// EnteredRoom moves LOBBY -> WAITING_ROOM after a successful create or join.
func (c *Coordinator) EnteredRoom() {
	c.mu.Lock()
	c.phase = PhaseWaitingRoom
	c.started = false
	c.awaitingReset = false
	c.localOver = false
	c.lastOppBeat = 0
	c.lastChatTime = 0
	c.mu.Unlock()
	c.proxy.Reset()
}

// LeftRoom returns to LOBBY.
func (c *Coordinator) LeftRoom() {
	c.mu.Lock()
	c.phase = PhaseLobby
	c.started = false
	c.mu.Unlock()
}

// Ready is the local player's ready press.
func (c *Coordinator) Ready(ctx context.Context) error {
	return c.controls.SetReady(ctx, true)
}

// RequestRematch is the local player's rematch press.
func (c *Coordinator) RequestRematch(ctx context.Context) error {
	return c.controls.SetWantsRematch(ctx, true)
}

// HandleLocalTick relays the loop's per-tick state to the store and evaluates
// the end-of-match conditions.
func (c *Coordinator) HandleLocalTick(u session.PlayerUpdate) {
	c.mu.Lock()
	if c.phase != PhasePlaying {
		c.mu.Unlock()
		return
	}
	c.myScore = u.Score
	c.localOver = !u.Alive
	c.mu.Unlock()

	c.controls.SendUpdate(u)
	c.maybeFinish()
	c.checkForfeit()
}

// --- session.RoomObserver ---

func (c *Coordinator) PlayerJoined() {
	c.notify.OpponentJoined()
}

func (c *Coordinator) OpponentUpdate(p session.PlayerSnapshot) {
	c.proxy.Update(p)
	c.mu.Lock()
	// Every room snapshot re-delivers the opponent's state, including ones
	// caused by our own writes. Only a changed heartbeat proves the opponent
	// is still producing ticks.
	if p.HeartbeatMs != c.lastOppBeat {
		c.lastOppBeat = p.HeartbeatMs
		c.lastOppSeen = c.now()
	}
	c.mu.Unlock()
	c.maybeFinish()
}

func (c *Coordinator) ReadyStateChanged(rs session.ReadyState) {
	c.notify.WaitingRoom(rs)

	c.mu.Lock()
	if c.awaitingReset && !rs.MyReady && !rs.OppReady {
		c.awaitingReset = false
	}
	start := c.phase == PhaseWaitingRoom && !c.awaitingReset &&
		rs.PlayerCount == 2 && rs.MyReady && rs.OppReady && !c.started
	if start {
		c.started = true
		c.localOver = false
		c.myScore = 0
		c.phase = PhasePlaying
		c.lastOppSeen = c.now()
	}
	c.mu.Unlock()

	if start {
		c.proxy.Reset()
		c.log.Info("both players ready, starting match")
		c.notify.MatchStarted()
		c.driver.Start()
	}
}

func (c *Coordinator) RematchStateChanged(rs session.RematchState) {
	c.notify.RematchStatus(rs)

	c.mu.Lock()
	agreed := c.phase == PhaseMatchOver && rs.MyWants && rs.OppWants
	if agreed {
		c.phase = PhaseWaitingRoom
		c.started = false
		c.localOver = false
		// The ready flags in the store are still true from the finished
		// match; hold off on a new start until they are observed cleared.
		c.awaitingReset = true
	}
	c.mu.Unlock()

	if !agreed {
		return
	}
	c.proxy.Reset()
	c.notify.BackToWaitingRoom()
	// Flag resets are confirmed writes waiting on future snapshots, which are
	// delivered by the goroutine running this callback. Reset off-thread.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.controls.SetWantsRematch(ctx, false); err != nil {
			c.log.Warn("rematch flag reset failed", "err", err)
		}
		if err := c.controls.SetReady(ctx, false); err != nil {
			c.log.Warn("ready flag reset failed", "err", err)
		}
	}()
}

func (c *Coordinator) ChatReceived(msg session.ChatMessage) {
	c.mu.Lock()
	fresh := msg.TimeMs > c.lastChatTime
	if fresh {
		c.lastChatTime = msg.TimeMs
	}
	c.mu.Unlock()
	if fresh {
		c.notify.Chat(msg)
	}
}

// maybeFinish fires the MATCH_OVER transition exactly once when both alive
// flags have gone false.
func (c *Coordinator) maybeFinish() {
	c.mu.Lock()
	finish := c.phase == PhasePlaying && c.localOver && !c.proxy.Alive()
	var result Result
	if finish {
		c.phase = PhaseMatchOver
		result = c.buildResult(false)
	}
	c.mu.Unlock()

	if finish {
		c.log.Info("match over", "outcome", result.Outcome.String(),
			"myScore", result.MyScore, "oppScore", result.OppScore)
		c.driver.Stop()
		c.notify.MatchEnded(result)
	}
}

// checkForfeit ends the match when the opponent's updates have gone stale.
func (c *Coordinator) checkForfeit() {
	c.mu.Lock()
	forfeit := c.forfeitAfter > 0 && c.phase == PhasePlaying &&
		!c.lastOppSeen.IsZero() && c.now().Sub(c.lastOppSeen) > c.forfeitAfter
	var result Result
	if forfeit {
		c.phase = PhaseMatchOver
		result = c.buildResult(true)
	}
	c.mu.Unlock()

	if forfeit {
		c.log.Warn("opponent gone quiet, claiming forfeit")
		c.driver.Stop()
		c.notify.MatchEnded(result)
	}
}

// buildResult compares whole-point scores; strict compare, ties are draws.
// Caller holds c.mu.
func (c *Coordinator) buildResult(forfeit bool) Result {
	my := int(math.Floor(c.myScore))
	opp := int(math.Floor(c.proxy.Score()))
	r := Result{MyScore: my, OppScore: opp, Forfeit: forfeit}
	switch {
	case forfeit:
		r.Outcome = OutcomeWin
	case my > opp:
		r.Outcome = OutcomeWin
	case my < opp:
		r.Outcome = OutcomeLose
	default:
		r.Outcome = OutcomeDraw
	}
	return r
}
