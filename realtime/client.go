package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ahmadeko2017/dino-online/store"
)

var ErrConnClosed = errors.New("sync connection closed")

// Client implements store.Store over a websocket to a realtime.Server.
// Snapshot callbacks are dispatched in arrival order from the read loop.
type Client struct {
	wc *wsConn

	writeMu sync.Mutex // serializes outbound frames

	mu      sync.Mutex
	nextID  int64
	nextSub int64
	pending map[int64]chan Frame
	subs    map[int64]store.SnapshotFunc
	closed  bool
}

// Dial connects and authenticates with a bearer token issued by the auth
// endpoint.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	c := &Client{
		wc:      newWSConn(conn),
		pending: make(map[int64]chan Frame),
		subs:    make(map[int64]store.SnapshotFunc),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.wc.Close("")
}

func (c *Client) WriteValue(ctx context.Context, path string, value any) error {
	_, err := c.request(ctx, Op{Op: OpWrite, Path: path, Value: value})
	return err
}

func (c *Client) MergeFields(ctx context.Context, path string, fields map[string]any) error {
	_, err := c.request(ctx, Op{Op: OpMerge, Path: path, Fields: fields})
	return err
}

func (c *Client) AppendToList(ctx context.Context, path string, value any) (string, error) {
	frame, err := c.request(ctx, Op{Op: OpAppend, Path: path, Value: value})
	if err != nil {
		return "", err
	}
	return frame.Key, nil
}

func (c *Client) RemoveValue(ctx context.Context, path string) error {
	_, err := c.request(ctx, Op{Op: OpRemove, Path: path})
	return err
}

func (c *Client) OnDisconnectCleanup(path string) error {
	_, err := c.request(context.Background(), Op{Op: OpCleanup, Path: path})
	return err
}

func (c *Client) Subscribe(path string, fn store.SnapshotFunc) (func(), error) {
	c.mu.Lock()
	c.nextSub++
	subID := c.nextSub
	c.subs[subID] = fn
	c.mu.Unlock()

	_, err := c.request(context.Background(), Op{Op: OpSubscribe, Path: path, Sub: subID})
	if err != nil {
		c.mu.Lock()
		delete(c.subs, subID)
		c.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, subID)
			c.mu.Unlock()
			_, _ = c.request(context.Background(), Op{Op: OpUnsubscribe, Sub: subID})
		})
	}, nil
}

func (c *Client) request(ctx context.Context, op Op) (Frame, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Frame{}, ErrConnClosed
	}
	c.nextID++
	op.ID = c.nextID
	reply := make(chan Frame, 1)
	c.pending[op.ID] = reply
	c.mu.Unlock()

	if err := c.write(op); err != nil {
		c.mu.Lock()
		delete(c.pending, op.ID)
		c.mu.Unlock()
		return Frame{}, err
	}

	select {
	case frame, ok := <-reply:
		if !ok {
			return Frame{}, ErrConnClosed
		}
		if frame.Error != "" {
			return frame, fmt.Errorf("store: %s", frame.Error)
		}
		return frame, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, op.ID)
		c.mu.Unlock()
		return Frame{}, ctx.Err()
	}
}

func (c *Client) write(op Op) error {
	data, err := encodeOp(op)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.wc.Write(data)
}

func (c *Client) readLoop() {
	for {
		data, err := c.wc.Read()
		if err != nil {
			c.fail()
			return
		}
		frame, err := decodeFrame(data)
		if err != nil {
			continue
		}
		switch frame.Type {
		case FrameAck:
			c.mu.Lock()
			reply, ok := c.pending[frame.ID]
			delete(c.pending, frame.ID)
			c.mu.Unlock()
			if ok {
				reply <- frame
			}
		case FrameSnapshot:
			c.mu.Lock()
			fn, ok := c.subs[frame.Sub]
			c.mu.Unlock()
			if ok {
				fn(frame.Value)
			}
		}
	}
}

// fail closes every pending request so callers unblock with ErrConnClosed.
func (c *Client) fail() {
	c.mu.Lock()
	c.closed = true
	for id, reply := range c.pending {
		close(reply)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}
