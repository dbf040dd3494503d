package store

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Push keys are 20 chars: 8 encoding the millisecond timestamp, 12 random.
// The alphabet is ASCII-ordered so keys sort lexicographically by creation time;
// keys minted in the same millisecond reuse the previous random suffix
// incremented by one, keeping same-instant appends ordered too.
const pushAlphabet = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

type pushIDGen struct {
	mu       sync.Mutex
	lastMs   int64
	lastRand [12]int
	now      func() time.Time
}

func newPushIDGen() *pushIDGen {
	return &pushIDGen{now: time.Now}
}

func (g *pushIDGen) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms == g.lastMs {
		for i := 11; i >= 0; i-- {
			g.lastRand[i]++
			if g.lastRand[i] < 64 {
				break
			}
			g.lastRand[i] = 0
		}
	} else {
		for i := range g.lastRand {
			g.lastRand[i] = rand.IntN(64)
		}
	}
	g.lastMs = ms

	var b [20]byte
	for i := 7; i >= 0; i-- {
		b[i] = pushAlphabet[ms%64]
		ms /= 64
	}
	for i, r := range g.lastRand {
		b[8+i] = pushAlphabet[r]
	}
	return string(b[:])
}
