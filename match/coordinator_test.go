package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadeko2017/dino-online/session"
)

func newTestCoordinator(forfeitAfter time.Duration) (*Coordinator, *fakeControls, *fakeDriver, *fakeNotifier) {
	controls := &fakeControls{}
	driver := &fakeDriver{}
	notify := &fakeNotifier{}
	c := NewCoordinator(controls, driver, notify, NewOpponentProxy(), forfeitAfter, nil)
	return c, controls, driver, notify
}

func bothReady() session.ReadyState {
	return session.ReadyState{MyReady: true, OppReady: true, PlayerCount: 2}
}

func TestStartsExactlyOnceDespiteRepeatedSnapshots(t *testing.T) {
	c, _, driver, notify := newTestCoordinator(0)
	c.EnteredRoom()
	require.Equal(t, PhaseWaitingRoom, c.Phase())

	c.ReadyStateChanged(session.ReadyState{MyReady: true, PlayerCount: 1})
	assert.Equal(t, PhaseWaitingRoom, c.Phase(), "one ready player must not start")

	for i := 0; i < 5; i++ {
		c.ReadyStateChanged(bothReady())
	}

	assert.Equal(t, PhasePlaying, c.Phase())
	assert.Equal(t, 1, driver.startCount())
	notify.mu.Lock()
	started := notify.started
	notify.mu.Unlock()
	assert.Equal(t, 1, started)
}

func TestResultDeterminism(t *testing.T) {
	cases := []struct {
		name     string
		my, opp  float64
		expected Outcome
	}{
		{"higher score wins", 150, 120, OutcomeWin},
		{"equal scores draw", 100, 100, OutcomeDraw},
		{"lower score loses", 80, 200, OutcomeLose},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _, driver, notify := newTestCoordinator(0)
			c.EnteredRoom()
			c.ReadyStateChanged(bothReady())

			c.OpponentUpdate(session.PlayerSnapshot{Score: tc.opp, Alive: true})
			c.HandleLocalTick(session.PlayerUpdate{Score: tc.my, Alive: false})
			assert.Equal(t, PhasePlaying, c.Phase(), "one dead player is not match over")

			c.OpponentUpdate(session.PlayerSnapshot{Score: tc.opp, Alive: false})

			require.Equal(t, PhaseMatchOver, c.Phase())
			results := notify.results()
			require.Len(t, results, 1)
			assert.Equal(t, tc.expected, results[0].Outcome)
			assert.Equal(t, int(tc.my), results[0].MyScore)
			assert.Equal(t, int(tc.opp), results[0].OppScore)
			assert.False(t, results[0].Forfeit)

			driver.mu.Lock()
			stops := driver.stops
			driver.mu.Unlock()
			assert.Equal(t, 1, stops)
		})
	}
}

func TestMatchOverFiresOnce(t *testing.T) {
	c, _, _, notify := newTestCoordinator(0)
	c.EnteredRoom()
	c.ReadyStateChanged(bothReady())

	c.HandleLocalTick(session.PlayerUpdate{Score: 50, Alive: false})
	for i := 0; i < 4; i++ {
		c.OpponentUpdate(session.PlayerSnapshot{Score: 40, Alive: false})
	}

	assert.Len(t, notify.results(), 1)
}

func TestRematchConvergence(t *testing.T) {
	c, controls, driver, notify := newTestCoordinator(0)
	c.EnteredRoom()
	c.ReadyStateChanged(bothReady())
	c.OpponentUpdate(session.PlayerSnapshot{Score: 10, Alive: false})
	c.HandleLocalTick(session.PlayerUpdate{Score: 20, Alive: false})
	require.Equal(t, PhaseMatchOver, c.Phase())

	// one-sided rematch wish keeps us in MATCH_OVER
	c.RematchStateChanged(session.RematchState{MyWants: true})
	assert.Equal(t, PhaseMatchOver, c.Phase())

	c.RematchStateChanged(session.RematchState{MyWants: true, OppWants: true})
	assert.Equal(t, PhaseWaitingRoom, c.Phase())
	assert.Equal(t, 1, notify.backToCount())

	// outgoing flag resets happen off the callback goroutine
	require.Eventually(t, func() bool {
		return len(controls.rematchValues()) == 1 && len(controls.readyValues()) == 1
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []bool{false}, controls.rematchValues())
	assert.Equal(t, []bool{false}, controls.readyValues())

	// stale ready flags from the finished match must not restart anything
	c.ReadyStateChanged(bothReady())
	assert.Equal(t, PhaseWaitingRoom, c.Phase())
	assert.Equal(t, 1, driver.startCount())

	// once the flags are observed cleared, the next rendezvous starts match two
	c.ReadyStateChanged(session.ReadyState{PlayerCount: 2})
	c.ReadyStateChanged(bothReady())
	assert.Equal(t, PhasePlaying, c.Phase())
	assert.Equal(t, 2, driver.startCount())
}

func TestProxyResetBetweenMatches(t *testing.T) {
	c, _, _, notify := newTestCoordinator(0)
	c.EnteredRoom()
	c.ReadyStateChanged(bothReady())
	c.OpponentUpdate(session.PlayerSnapshot{Score: 90, Alive: false})
	c.HandleLocalTick(session.PlayerUpdate{Score: 10, Alive: false})
	require.Equal(t, PhaseMatchOver, c.Phase())

	c.RematchStateChanged(session.RematchState{MyWants: true, OppWants: true})
	c.ReadyStateChanged(session.ReadyState{PlayerCount: 2})
	c.ReadyStateChanged(bothReady())
	require.Equal(t, PhasePlaying, c.Phase())

	// dying immediately must not end the match off the previous opponent state
	c.HandleLocalTick(session.PlayerUpdate{Score: 5, Alive: false})
	assert.Equal(t, PhasePlaying, c.Phase())
	assert.Len(t, notify.results(), 1)
}

func TestForfeitOnStaleOpponent(t *testing.T) {
	c, _, _, notify := newTestCoordinator(500 * time.Millisecond)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.EnteredRoom()
	c.ReadyStateChanged(bothReady())
	c.OpponentUpdate(session.PlayerSnapshot{Score: 30, Alive: true, HeartbeatMs: 1000})

	c.HandleLocalTick(session.PlayerUpdate{Score: 40, Alive: true})
	assert.Equal(t, PhasePlaying, c.Phase())

	// our own writes echo the opponent's last state back at us; a stuck
	// heartbeat must not count as a sign of life
	c.now = func() time.Time { return base.Add(time.Second) }
	c.OpponentUpdate(session.PlayerSnapshot{Score: 30, Alive: true, HeartbeatMs: 1000})
	c.HandleLocalTick(session.PlayerUpdate{Score: 41, Alive: true})

	require.Equal(t, PhaseMatchOver, c.Phase())
	results := notify.results()
	require.Len(t, results, 1)
	assert.True(t, results[0].Forfeit)
	assert.Equal(t, OutcomeWin, results[0].Outcome)
}

func TestFreshHeartbeatsHoldOffForfeit(t *testing.T) {
	c, _, _, notify := newTestCoordinator(500 * time.Millisecond)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.EnteredRoom()
	c.ReadyStateChanged(bothReady())

	// advancing heartbeats keep resetting the staleness window
	for i := 0; i < 5; i++ {
		c.now = func() time.Time { return base.Add(time.Duration(i) * 400 * time.Millisecond) }
		c.OpponentUpdate(session.PlayerSnapshot{Score: 30, Alive: true, HeartbeatMs: int64(1000 + i)})
		c.HandleLocalTick(session.PlayerUpdate{Score: 40, Alive: true})
	}

	assert.Equal(t, PhasePlaying, c.Phase())
	assert.Empty(t, notify.results())
}

func TestChatDedupByTimestamp(t *testing.T) {
	c, _, _, notify := newTestCoordinator(0)
	c.EnteredRoom()

	msg1 := session.ChatMessage{Sender: "P1", Text: "hello", TimeMs: 100}
	msg2 := session.ChatMessage{Sender: "P2", Text: "hi", TimeMs: 200}

	c.ChatReceived(msg1)
	c.ChatReceived(msg2)
	// snapshot replay re-delivers the tail
	c.ChatReceived(msg1)
	c.ChatReceived(msg2)

	msgs := notify.chatMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "hi", msgs[1].Text)
}

func TestTicksIgnoredOutsidePlaying(t *testing.T) {
	c, controls, _, _ := newTestCoordinator(0)
	c.EnteredRoom()

	c.HandleLocalTick(session.PlayerUpdate{Score: 5, Alive: true})

	controls.mu.Lock()
	sent := len(controls.updates)
	controls.mu.Unlock()
	assert.Zero(t, sent)
}
