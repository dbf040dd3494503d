package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmadeko2017/dino-online/store"
)

// fakeObserver records every callback for later assertions.
type fakeObserver struct {
	mu        sync.Mutex
	joined    int
	opponents []PlayerSnapshot
	ready     []ReadyState
	rematch   []RematchState
	chat      []ChatMessage
}

func (f *fakeObserver) PlayerJoined() {
	f.mu.Lock()
	f.joined++
	f.mu.Unlock()
}

func (f *fakeObserver) OpponentUpdate(p PlayerSnapshot) {
	f.mu.Lock()
	f.opponents = append(f.opponents, p)
	f.mu.Unlock()
}

func (f *fakeObserver) ReadyStateChanged(rs ReadyState) {
	f.mu.Lock()
	f.ready = append(f.ready, rs)
	f.mu.Unlock()
}

func (f *fakeObserver) RematchStateChanged(rs RematchState) {
	f.mu.Lock()
	f.rematch = append(f.rematch, rs)
	f.mu.Unlock()
}

func (f *fakeObserver) ChatReceived(msg ChatMessage) {
	f.mu.Lock()
	f.chat = append(f.chat, msg)
	f.mu.Unlock()
}

func (f *fakeObserver) lastReady() (ReadyState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ready) == 0 {
		return ReadyState{}, false
	}
	return f.ready[len(f.ready)-1], true
}

func (f *fakeObserver) lastOpponent() (PlayerSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opponents) == 0 {
		return PlayerSnapshot{}, false
	}
	return f.opponents[len(f.opponents)-1], true
}

func (f *fakeObserver) chatTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.chat))
	for _, m := range f.chat {
		out = append(out, m.Text)
	}
	return out
}

// pathRecorder decorates a Store and records every written path, for the
// ownership-exclusivity property.
type pathRecorder struct {
	store.Store
	mu    sync.Mutex
	paths []string
}

func (r *pathRecorder) record(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *pathRecorder) WriteValue(ctx context.Context, path string, value any) error {
	r.record(path)
	return r.Store.WriteValue(ctx, path, value)
}

func (r *pathRecorder) MergeFields(ctx context.Context, path string, fields map[string]any) error {
	r.record(path)
	return r.Store.MergeFields(ctx, path, fields)
}

func (r *pathRecorder) AppendToList(ctx context.Context, path string, value any) (string, error) {
	r.record(path)
	return r.Store.AppendToList(ctx, path, value)
}

func (r *pathRecorder) RemoveValue(ctx context.Context, path string) error {
	r.record(path)
	return r.Store.RemoveValue(ctx, path)
}

func (r *pathRecorder) written() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTestManager(t *testing.T, st store.Store, id string) (*Manager, *fakeObserver) {
	t.Helper()
	obs := &fakeObserver{}
	m := NewManager(st, id, obs, slog.Default())
	m.confirmRetry = 10 * time.Millisecond
	return m, obs
}

const eventually = 2 * time.Second

func TestCreateRoomWritesInitialDocument(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, obs := newTestManager(t, mem, "player_host")

	roomID, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	require.Len(t, roomID, 4)
	assert.True(t, host.IsHost())

	require.Eventually(t, func() bool {
		rs, ok := obs.lastReady()
		return ok && rs.PlayerCount == 1
	}, eventually, time.Millisecond)

	rs, _ := obs.lastReady()
	assert.False(t, rs.MyReady)
	assert.False(t, rs.OppReady)
	assert.True(t, rs.IsHost)
	assert.Empty(t, obs.chatTexts())

	count, err := host.PlayerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestJoinRoomSeenByBothSides(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, hostObs := newTestManager(t, mem, "player_host")
	guest, guestObs := newTestManager(t, mem, "player_guest")

	roomID, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, roomID))
	assert.False(t, guest.IsHost())

	for _, obs := range []*fakeObserver{hostObs, guestObs} {
		require.Eventually(t, func() bool {
			rs, ok := obs.lastReady()
			return ok && rs.PlayerCount == 2
		}, eventually, time.Millisecond)
	}
}

func TestJoinRejectsBlankAndFullRooms(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, _ := newTestManager(t, mem, "player_host")
	guest, _ := newTestManager(t, mem, "player_guest")
	third, _ := newTestManager(t, mem, "player_third")

	_, err := host.CreateRoom(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, guest.JoinRoom(ctx, "   "), ErrInvalidRoomCode)

	require.NoError(t, guest.JoinRoom(ctx, host.RoomID()))
	assert.ErrorIs(t, third.JoinRoom(ctx, host.RoomID()), ErrRoomFull)
}

func TestWritesStayUnderOwnSubtree(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	hostStore := &pathRecorder{Store: mem}
	guestStore := &pathRecorder{Store: mem}
	host, _ := newTestManager(t, hostStore, "player_host")
	guest, _ := newTestManager(t, guestStore, "player_guest")

	roomID, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, roomID))

	host.SendUpdate(PlayerUpdate{Y: 70, State: StateJumping, Score: 12, Alive: true})
	guest.SendUpdate(PlayerUpdate{Y: 73, State: StateRunning, Score: 9, Alive: true})
	require.NoError(t, host.SetReady(ctx, true))
	require.NoError(t, guest.SetReady(ctx, true))
	host.SendChat("glhf")
	require.NoError(t, guest.LeaveRoom(ctx))

	for _, path := range hostStore.written() {
		assert.False(t, strings.HasPrefix(path, "rooms/"+roomID+"/players/player_guest"),
			"host wrote into guest subtree: %s", path)
	}
	for _, path := range guestStore.written() {
		assert.False(t, strings.HasPrefix(path, "rooms/"+roomID+"/players/player_host"),
			"guest wrote into host subtree: %s", path)
	}
}

func TestOpponentUpdatesMirrored(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, hostObs := newTestManager(t, mem, "player_host")
	guest, _ := newTestManager(t, mem, "player_guest")

	roomID, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, roomID))

	guest.SendUpdate(PlayerUpdate{Y: 42.5, State: StateDucking, Score: 150, Alive: true})

	require.Eventually(t, func() bool {
		p, ok := hostObs.lastOpponent()
		return ok && p.Y == 42.5 && p.State == StateDucking
	}, eventually, time.Millisecond)

	p, _ := hostObs.lastOpponent()
	assert.Equal(t, 150.0, p.Score)
	assert.True(t, p.Alive)
	assert.NotZero(t, p.HeartbeatMs)
}

func TestConfirmedFlagWrites(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, obs := newTestManager(t, mem, "player_host")
	guest, _ := newTestManager(t, mem, "player_guest")

	roomID, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, roomID))

	require.NoError(t, host.SetReady(ctx, true))
	require.NoError(t, guest.SetReady(ctx, true))

	require.Eventually(t, func() bool {
		rs, ok := obs.lastReady()
		return ok && rs.MyReady && rs.OppReady && rs.PlayerCount == 2
	}, eventually, time.Millisecond)

	require.NoError(t, host.SetWantsRematch(ctx, true))
	require.NoError(t, host.SetWantsRematch(ctx, false))
}

func TestChatAppendOnlyOrdering(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, _ := newTestManager(t, mem, "player_host")
	guest, guestObs := newTestManager(t, mem, "player_guest")

	roomID, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, roomID))

	host.SendChat("first")
	host.SendChat("second")
	guest.SendChat("third")
	guest.SendChat("   ") // blank: dropped

	require.Eventually(t, func() bool {
		texts := guestObs.chatTexts()
		return len(texts) >= 3
	}, eventually, time.Millisecond)

	texts := guestObs.chatTexts()
	iFirst := indexOf(texts, "first")
	iSecond := indexOf(texts, "second")
	iThird := indexOf(texts, "third")
	require.GreaterOrEqual(t, iFirst, 0)
	assert.Less(t, iFirst, iSecond)
	assert.Less(t, iSecond, iThird)
	assert.NotContains(t, texts, "   ")

	senders := make(map[string]bool)
	guestObs.mu.Lock()
	for _, m := range guestObs.chat {
		senders[m.Sender] = true
	}
	guestObs.mu.Unlock()
	assert.True(t, senders["P1"])
	assert.True(t, senders["P2"])
}

func TestChatLogTruncatedAtCap(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, obs := newTestManager(t, mem, "player_host")

	_, err := host.CreateRoom(ctx)
	require.NoError(t, err)

	for i := 0; i < chatLogCap+20; i++ {
		host.SendChat("spam")
		// each append must be observed before the next so the truncation
		// bookkeeping sees the growing log
		want := i + 1
		if want > chatLogCap {
			want = chatLogCap
		}
		require.Eventually(t, func() bool {
			host.mu.Lock()
			defer host.mu.Unlock()
			return len(host.msgKeys) == want
		}, eventually, time.Millisecond)
	}

	host.mu.Lock()
	finalLen := len(host.msgKeys)
	host.mu.Unlock()
	assert.Equal(t, chatLogCap, finalLen)
	assert.NotEmpty(t, obs.chatTexts())
}

func TestLeaveRemovesOwnStateOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	host, hostObs := newTestManager(t, mem, "player_host")
	guest, _ := newTestManager(t, mem, "player_guest")

	roomID, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, roomID))

	require.Eventually(t, func() bool {
		rs, ok := hostObs.lastReady()
		return ok && rs.PlayerCount == 2
	}, eventually, time.Millisecond)

	require.NoError(t, guest.LeaveRoom(ctx))

	require.Eventually(t, func() bool {
		rs, ok := hostObs.lastReady()
		return ok && rs.PlayerCount == 1
	}, eventually, time.Millisecond)

	count, err := host.PlayerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, roomID, host.RoomID())

	assert.ErrorIs(t, guest.LeaveRoom(ctx), ErrNotInRoom)
}

func indexOf(s []string, want string) int {
	for i, v := range s {
		if v == want {
			return i
		}
	}
	return -1
}
