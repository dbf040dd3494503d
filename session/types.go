// Package session owns one room's lifecycle against the shared document store:
// membership, per-tick state replication, readiness and rematch flags, chat.
// It demultiplexes whole-room snapshots into the semantic callbacks of a
// RoomObserver injected at construction.
package session

import "errors"

var (
	ErrInvalidRoomCode  = errors.New("invalid room code")
	ErrRoomFull         = errors.New("room full")
	ErrNotInRoom        = errors.New("not in a room")
	ErrWriteUnconfirmed = errors.New("write not confirmed by any snapshot")
)

// Player animation/physics states, owned by the local game loop and mirrored
// read-only by the peer.
const (
	StateStanding = "STANDING"
	StateJumping  = "JUMPING"
	StateDucking  = "DUCKING"
	StateRunning  = "RUNNING"
)

// Advisory room statuses.
const (
	StatusWaiting = "WAITING"
	StatusPlaying = "PLAYING"
)

// PlayerUpdate is what the local game loop reports once per tick.
type PlayerUpdate struct {
	Y     float64
	State string
	Score float64
	Alive bool
}

// PlayerSnapshot is the last known remote player state, parsed out of a room
// snapshot. HeartbeatMs is the writer's clock at its last per-tick update.
type PlayerSnapshot struct {
	Y           float64
	State       string
	Score       float64
	Alive       bool
	HeartbeatMs int64
}

// ReadyState is perspective-based: "my" flags are the local player's.
type ReadyState struct {
	MyReady     bool
	OppReady    bool
	PlayerCount int
	IsHost      bool
}

type RematchState struct {
	MyWants  bool
	OppWants bool
}

// ChatMessage is immutable once appended. TimeMs is the sender's write-time
// clock; consumers dedup replayed messages with a TimeMs high-water mark.
type ChatMessage struct {
	Sender string
	Text   string
	TimeMs int64
}

// RoomObserver receives the demultiplexed snapshot stream. Exactly one
// observer exists per Manager and it is fixed at construction. Callbacks
// arrive in snapshot order on a single goroutine.
//
// PlayerJoined and the two state callbacks fire on every snapshot, not just on
// transitions; consumers latch.
type RoomObserver interface {
	PlayerJoined()
	OpponentUpdate(PlayerSnapshot)
	ReadyStateChanged(ReadyState)
	RematchStateChanged(RematchState)
	ChatReceived(ChatMessage)
}
