package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/ahmadeko2017/dino-online/store"
)

const (
	chatReplayTail = 10 // newest messages re-delivered per snapshot
	chatLogCap     = 50 // log truncated to this many entries after an append

	confirmAttempts = 5
	defaultRetry    = 250 * time.Millisecond
)

// Manager translates local game events into document-store writes and store
// snapshots into RoomObserver callbacks. One Manager handles one room at a
// time; each client writes only its own player subtree.
type Manager struct {
	store    store.Store
	clientID string
	observer RoomObserver
	log      *slog.Logger

	confirmRetry time.Duration
	now          func() time.Time

	mu            sync.Mutex
	roomID        string
	isHost        bool
	cancelSub     func()
	observedReady bool
	observedWants bool
	waiters       []*fieldWaiter
	msgKeys       []string
}

type fieldWaiter struct {
	field string
	want  bool
	done  chan struct{}
}

func NewManager(st store.Store, clientID string, observer RoomObserver, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:        st,
		clientID:     clientID,
		observer:     observer,
		log:          log,
		confirmRetry: defaultRetry,
		now:          time.Now,
	}
}

func (m *Manager) ClientID() string { return m.clientID }

func (m *Manager) RoomID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID
}

func (m *Manager) IsHost() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isHost
}

// CreateRoom writes a fresh room with the caller as host and sole player,
// registers disconnect teardown of the whole room, subscribes, and returns the
// 4-digit code for out-of-band sharing. Code collisions are not checked.
func (m *Manager) CreateRoom(ctx context.Context) (string, error) {
	roomID := fmt.Sprintf("%04d", 1000+rand.IntN(9000))
	roomPath := "rooms/" + roomID

	doc := map[string]any{
		"host":   m.clientID,
		"status": StatusWaiting,
		"players": map[string]any{
			m.clientID: m.freshPlayerState(),
		},
	}
	if err := m.store.WriteValue(ctx, roomPath, doc); err != nil {
		return "", err
	}
	if err := m.store.OnDisconnectCleanup(roomPath); err != nil {
		return "", err
	}
	if err := m.store.OnDisconnectCleanup(roomPath + "/players/" + m.clientID); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.roomID = roomID
	m.isHost = true
	m.mu.Unlock()

	if err := m.subscribeToRoom(roomID); err != nil {
		return "", err
	}
	m.log.Info("room created", "room", roomID, "player", m.clientID)
	return roomID, nil
}

// JoinRoom writes a fresh player state under the given room as guest. The join
// write is the one awaited operation so connectivity failures surface here.
// A room already holding two players is rejected; a room that does not exist
// is not distinguishable from a fresh one at the write layer and will be
// (re)created by the write.
func (m *Manager) JoinRoom(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return ErrInvalidRoomCode
	}
	roomPath := "rooms/" + roomID

	players, err := m.readOnce(ctx, roomPath+"/players")
	if err != nil {
		return err
	}
	if occupants, ok := players.(map[string]any); ok {
		if _, already := occupants[m.clientID]; len(occupants) >= 2 && !already {
			return ErrRoomFull
		}
	}

	ownPath := roomPath + "/players/" + m.clientID
	if err := m.store.WriteValue(ctx, ownPath, m.freshPlayerState()); err != nil {
		return err
	}
	if err := m.store.OnDisconnectCleanup(ownPath); err != nil {
		return err
	}
	if err := m.store.MergeFields(ctx, roomPath, map[string]any{"status": StatusPlaying}); err != nil {
		return err
	}

	m.mu.Lock()
	m.roomID = roomID
	m.isHost = false
	m.mu.Unlock()

	if err := m.subscribeToRoom(roomID); err != nil {
		return err
	}
	m.log.Info("room joined", "room", roomID, "player", m.clientID)
	return nil
}

// LeaveRoom removes the caller's own player state only; the peer learns of the
// departure from the next snapshot.
func (m *Manager) LeaveRoom(ctx context.Context) error {
	m.mu.Lock()
	roomID := m.roomID
	cancel := m.cancelSub
	m.roomID = ""
	m.isHost = false
	m.cancelSub = nil
	m.msgKeys = nil
	m.mu.Unlock()

	if roomID == "" {
		return ErrNotInRoom
	}
	if cancel != nil {
		cancel()
	}
	return m.store.RemoveValue(ctx, "rooms/"+roomID+"/players/"+m.clientID)
}

// SendUpdate merges the tick's player state plus a heartbeat timestamp into
// the caller's own subtree. Fire-and-forget: a lost write is healed by the
// next tick.
func (m *Manager) SendUpdate(u PlayerUpdate) {
	ownPath, ok := m.ownPath()
	if !ok {
		return
	}
	err := m.store.MergeFields(context.Background(), ownPath, map[string]any{
		"y":         u.Y,
		"state":     u.State,
		"score":     u.Score,
		"alive":     u.Alive,
		"heartbeat": m.now().UnixMilli(),
	})
	if err != nil {
		m.log.Debug("tick update dropped", "err", err)
	}
}

// SetReady merges the ready flag and retries until a snapshot reflects it.
func (m *Manager) SetReady(ctx context.Context, ready bool) error {
	return m.confirmField(ctx, "ready", ready)
}

// SetWantsRematch merges the rematch flag and retries until a snapshot reflects it.
func (m *Manager) SetWantsRematch(ctx context.Context, wants bool) error {
	return m.confirmField(ctx, "wantsRematch", wants)
}

// SendChat appends a message to the room log, then trims the log to its cap.
// Blank text is a no-op. Append failures are logged, not surfaced.
func (m *Manager) SendChat(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	m.mu.Lock()
	roomID := m.roomID
	isHost := m.isHost
	known := len(m.msgKeys)
	stale := make([]string, 0)
	if excess := known + 1 - chatLogCap; excess > 0 {
		stale = append(stale, m.msgKeys[:excess]...)
	}
	m.mu.Unlock()
	if roomID == "" {
		return
	}

	sender := "P2"
	if isHost {
		sender = "P1"
	}
	msgPath := "rooms/" + roomID + "/messages"
	_, err := m.store.AppendToList(context.Background(), msgPath, map[string]any{
		"sender": sender,
		"text":   text,
		"time":   m.now().UnixMilli(),
	})
	if err != nil {
		m.log.Debug("chat message dropped", "err", err)
		return
	}
	for _, key := range stale {
		if err := m.store.RemoveValue(context.Background(), msgPath+"/"+key); err != nil {
			m.log.Debug("chat truncation failed", "key", key, "err", err)
		}
	}
}

// PlayerCount reads the room's current occupancy once.
func (m *Manager) PlayerCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	roomID := m.roomID
	m.mu.Unlock()
	if roomID == "" {
		return 0, ErrNotInRoom
	}
	v, err := m.readOnce(ctx, "rooms/"+roomID+"/players")
	if err != nil {
		return 0, err
	}
	players, _ := v.(map[string]any)
	return len(players), nil
}

func (m *Manager) freshPlayerState() map[string]any {
	return map[string]any{
		"y":            0.0,
		"state":        StateStanding,
		"score":        0.0,
		"alive":        true,
		"ready":        false,
		"wantsRematch": false,
		"heartbeat":    m.now().UnixMilli(),
	}
}

func (m *Manager) ownPath() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roomID == "" {
		return "", false
	}
	return "rooms/" + m.roomID + "/players/" + m.clientID, true
}

func (m *Manager) subscribeToRoom(roomID string) error {
	cancel, err := m.store.Subscribe("rooms/"+roomID, m.handleSnapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cancelSub = cancel
	m.mu.Unlock()
	return nil
}

// handleSnapshot demultiplexes one whole-room snapshot. It runs on the
// subscription's delivery goroutine, so callbacks are strictly ordered.
func (m *Manager) handleSnapshot(v any) {
	data, ok := v.(map[string]any)
	if !ok {
		return
	}

	if players, ok := data["players"].(map[string]any); ok {
		count := len(players)
		if count == 2 {
			m.observer.PlayerJoined()
		}

		var myReady, myWants bool
		if my, ok := players[m.clientID].(map[string]any); ok {
			myReady = asBool(my["ready"])
			myWants = asBool(my["wantsRematch"])
		}

		// With more than one other entry this is last-writer-wins over the
		// opponent flags, the same degenerate behavior the data model allows.
		var oppReady, oppWants bool
		for _, key := range sortedKeys(players) {
			if key == m.clientID {
				continue
			}
			p, ok := players[key].(map[string]any)
			if !ok {
				continue
			}
			oppReady = asBool(p["ready"])
			oppWants = asBool(p["wantsRematch"])
			m.observer.OpponentUpdate(parsePlayer(p))
		}

		m.mu.Lock()
		isHost := m.isHost
		m.mu.Unlock()
		m.observer.ReadyStateChanged(ReadyState{
			MyReady:     myReady,
			OppReady:    oppReady,
			PlayerCount: count,
			IsHost:      isHost,
		})
		m.observer.RematchStateChanged(RematchState{MyWants: myWants, OppWants: oppWants})
		m.resolveWaiters(myReady, myWants)
	}

	if msgs, ok := data["messages"].(map[string]any); ok {
		keys := sortedKeys(msgs)
		m.mu.Lock()
		m.msgKeys = keys
		m.mu.Unlock()

		tail := keys
		if len(tail) > chatReplayTail {
			tail = tail[len(tail)-chatReplayTail:]
		}
		for _, key := range tail {
			if msg, ok := msgs[key].(map[string]any); ok {
				m.observer.ChatReceived(parseChatMessage(msg))
			}
		}
	}
}

// confirmField merges a single boolean field and waits for a snapshot carrying
// the intended value, rewriting up to confirmAttempts times. This is the
// at-least-once path for the one-shot flags that per-tick updates cannot heal.
func (m *Manager) confirmField(ctx context.Context, field string, want bool) error {
	ownPath, ok := m.ownPath()
	if !ok {
		return ErrNotInRoom
	}
	for attempt := 0; attempt < confirmAttempts; attempt++ {
		done := m.addWaiter(field, want)
		if err := m.store.MergeFields(ctx, ownPath, map[string]any{field: want}); err != nil {
			m.log.Debug("flag write failed", "field", field, "attempt", attempt, "err", err)
		}
		select {
		case <-done:
			return nil
		case <-time.After(m.confirmRetry):
			m.dropWaiter(done)
		case <-ctx.Done():
			m.dropWaiter(done)
			return ctx.Err()
		}
	}
	m.log.Warn("flag never confirmed", "field", field, "value", want)
	return ErrWriteUnconfirmed
}

// addWaiter returns a channel closed once a snapshot shows field==want. If the
// last observed snapshot already does, the channel comes back closed.
func (m *Manager) addWaiter(field string, want bool) chan struct{} {
	done := make(chan struct{})
	m.mu.Lock()
	defer m.mu.Unlock()
	observed := m.observedWants
	if field == "ready" {
		observed = m.observedReady
	}
	if observed == want {
		close(done)
		return done
	}
	m.waiters = append(m.waiters, &fieldWaiter{field: field, want: want, done: done})
	return done
}

func (m *Manager) dropWaiter(done chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.waiters {
		if w.done == done {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

func (m *Manager) resolveWaiters(myReady, myWants bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observedReady = myReady
	m.observedWants = myWants
	kept := m.waiters[:0]
	for _, w := range m.waiters {
		observed := myWants
		if w.field == "ready" {
			observed = myReady
		}
		if observed == w.want {
			close(w.done)
			continue
		}
		kept = append(kept, w)
	}
	m.waiters = kept
}

// readOnce subscribes, takes the immediately-delivered snapshot, and cancels.
func (m *Manager) readOnce(ctx context.Context, path string) (any, error) {
	first := make(chan any, 1)
	var once sync.Once
	cancel, err := m.store.Subscribe(path, func(v any) {
		once.Do(func() { first <- v })
	})
	if err != nil {
		return nil, err
	}
	defer cancel()
	select {
	case v := <-first:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
