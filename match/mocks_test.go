package match

import (
	"context"
	"sync"

	"github.com/ahmadeko2017/dino-online/session"
)

// --- RoomControls ---

type fakeControls struct {
	mu          sync.Mutex
	updates     []session.PlayerUpdate
	readySet    []bool
	rematchSet  []bool
	readyErr    error
	rematchErr  error
}

func (f *fakeControls) SendUpdate(u session.PlayerUpdate) {
	f.mu.Lock()
	f.updates = append(f.updates, u)
	f.mu.Unlock()
}

func (f *fakeControls) SetReady(ctx context.Context, ready bool) error {
	f.mu.Lock()
	f.readySet = append(f.readySet, ready)
	f.mu.Unlock()
	return f.readyErr
}

func (f *fakeControls) SetWantsRematch(ctx context.Context, wants bool) error {
	f.mu.Lock()
	f.rematchSet = append(f.rematchSet, wants)
	f.mu.Unlock()
	return f.rematchErr
}

func (f *fakeControls) readyValues() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.readySet...)
}

func (f *fakeControls) rematchValues() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.rematchSet...)
}

// --- GameDriver ---

type fakeDriver struct {
	mu     sync.Mutex
	starts int
	stops  int
}

func (f *fakeDriver) Start() {
	f.mu.Lock()
	f.starts++
	f.mu.Unlock()
}

func (f *fakeDriver) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
}

func (f *fakeDriver) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// --- Notifier ---

type fakeNotifier struct {
	mu        sync.Mutex
	joined    int
	waiting   []session.ReadyState
	started   int
	ended     []Result
	rematch   []session.RematchState
	backTo    int
	chat      []session.ChatMessage
}

func (f *fakeNotifier) OpponentJoined() {
	f.mu.Lock()
	f.joined++
	f.mu.Unlock()
}

func (f *fakeNotifier) WaitingRoom(rs session.ReadyState) {
	f.mu.Lock()
	f.waiting = append(f.waiting, rs)
	f.mu.Unlock()
}

func (f *fakeNotifier) MatchStarted() {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
}

func (f *fakeNotifier) MatchEnded(r Result) {
	f.mu.Lock()
	f.ended = append(f.ended, r)
	f.mu.Unlock()
}

func (f *fakeNotifier) RematchStatus(rs session.RematchState) {
	f.mu.Lock()
	f.rematch = append(f.rematch, rs)
	f.mu.Unlock()
}

func (f *fakeNotifier) BackToWaitingRoom() {
	f.mu.Lock()
	f.backTo++
	f.mu.Unlock()
}

func (f *fakeNotifier) Chat(msg session.ChatMessage) {
	f.mu.Lock()
	f.chat = append(f.chat, msg)
	f.mu.Unlock()
}

func (f *fakeNotifier) results() []Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Result(nil), f.ended...)
}

func (f *fakeNotifier) chatMessages() []session.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.ChatMessage(nil), f.chat...)
}

func (f *fakeNotifier) backToCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backTo
}
