package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ahmadeko2017/dino-online/store"
)

// Inbound op budget per connection: a 60Hz tick stream plus flag writes and
// chat, with headroom for reconnect bursts.
const (
	opsPerSecond = 120
	opsBurst     = 240

	outboxSize = 256
)

// Server owns the document tree and serves one store session per websocket.
type Server struct {
	mem *store.Memory
	log *slog.Logger
}

func NewServer(mem *store.Memory, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{mem: mem, log: log}
}

// Memory exposes the underlying tree, mainly for tests.
func (s *Server) Memory() *store.Memory { return s.mem }

// HandleConn runs the connection until the peer drops. Closing the store
// session afterwards fires the client's disconnect cleanups.
func (s *Server) HandleConn(conn *websocket.Conn, clientID string) {
	wc := newWSConn(conn)
	sess := s.mem.OpenSession()

	c := &serverConn{
		wc:      wc,
		sess:    sess,
		limiter: rate.NewLimiter(rate.Limit(opsPerSecond), opsBurst),
		outbox:  make(chan []byte, outboxSize),
		done:    make(chan struct{}),
		subs:    make(map[int64]func()),
		log:     s.log.With("client", clientID),
	}

	go c.writePump()
	c.readPump()

	close(c.done)
	sess.Close()
	wc.Close("")
	c.log.Info("sync connection closed")
}

type serverConn struct {
	wc      *wsConn
	sess    *store.Session
	limiter *rate.Limiter
	outbox  chan []byte
	done    chan struct{}
	log     *slog.Logger

	mu   sync.Mutex
	subs map[int64]func()
}

func (c *serverConn) readPump() {
	for {
		data, err := c.wc.Read()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			c.log.Warn("op rate limit exceeded, dropping connection")
			return
		}
		op, err := decodeOp(data)
		if err != nil {
			c.log.Debug("undecodable op", "err", err)
			continue
		}
		c.apply(op)
	}
}

func (c *serverConn) writePump() {
	pings := time.NewTicker(pingInterval)
	defer pings.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-pings.C:
			if err := c.wc.Ping(); err != nil {
				return
			}
		case data := <-c.outbox:
			if err := c.wc.Write(data); err != nil {
				return
			}
		}
	}
}

func (c *serverConn) apply(op Op) {
	ctx := context.Background()
	ack := Frame{Type: FrameAck, ID: op.ID}

	switch op.Op {
	case OpWrite:
		if err := c.sess.WriteValue(ctx, op.Path, op.Value); err != nil {
			ack.Error = err.Error()
		}
	case OpMerge:
		if err := c.sess.MergeFields(ctx, op.Path, op.Fields); err != nil {
			ack.Error = err.Error()
		}
	case OpAppend:
		key, err := c.sess.AppendToList(ctx, op.Path, op.Value)
		if err != nil {
			ack.Error = err.Error()
		}
		ack.Key = key
	case OpRemove:
		if err := c.sess.RemoveValue(ctx, op.Path); err != nil {
			ack.Error = err.Error()
		}
	case OpCleanup:
		if err := c.sess.OnDisconnectCleanup(op.Path); err != nil {
			ack.Error = err.Error()
		}
	case OpSubscribe:
		c.subscribe(op, &ack)
	case OpUnsubscribe:
		c.mu.Lock()
		if cancel, ok := c.subs[op.Sub]; ok {
			delete(c.subs, op.Sub)
			cancel()
		}
		c.mu.Unlock()
	default:
		ack.Error = "unknown op"
	}

	c.send(ack)
}

func (c *serverConn) subscribe(op Op, ack *Frame) {
	subID := op.Sub
	cancel, err := c.sess.Subscribe(op.Path, func(v any) {
		c.send(Frame{Type: FrameSnapshot, Sub: subID, Value: v})
	})
	if err != nil {
		ack.Error = err.Error()
		return
	}
	c.mu.Lock()
	c.subs[subID] = cancel
	c.mu.Unlock()
}

// send marshals and enqueues a frame. A peer too slow to drain its outbox is
// treated as gone: the frame is dropped and the next write failure reaps the
// connection.
func (c *serverConn) send(f Frame) {
	data, err := encodeFrame(f)
	if err != nil {
		c.log.Debug("frame encode failed", "err", err)
		return
	}
	select {
	case c.outbox <- data:
	case <-c.done:
	default:
		c.log.Warn("outbox full, dropping frame")
	}
}
