package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is the in-process document tree. It backs the sync server and doubles
// as the store implementation session tests run against.
//
// Each subscriber owns an ordered, unbounded delivery queue drained by its own
// goroutine, so mutators never block on slow consumers and every subscriber
// observes mutations in application order.
type Memory struct {
	mu     sync.Mutex
	root   map[string]any
	subs   map[int]*subscription
	nextID int
	push   *pushIDGen
}

func NewMemory() *Memory {
	return &Memory{
		root: make(map[string]any),
		subs: make(map[int]*subscription),
		push: newPushIDGen(),
	}
}

// AuthenticateAnonymously mints a store-scoped player identity with no
// user-visible credentials.
func (m *Memory) AuthenticateAnonymously() string {
	return "player_" + uuid.NewString()
}

func (m *Memory) WriteValue(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	parent, err := m.ensureParent(segs)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	parent[segs[len(segs)-1]] = deepCopy(value)
	m.notifyLocked(segs)
	m.mu.Unlock()
	return nil
}

func (m *Memory) MergeFields(ctx context.Context, path string, fields map[string]any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	parent, err := m.ensureParent(segs)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	last := segs[len(segs)-1]
	target, ok := parent[last].(map[string]any)
	if !ok {
		if _, exists := parent[last]; exists {
			m.mu.Unlock()
			return ErrNotAContainer
		}
		target = make(map[string]any)
		parent[last] = target
	}
	for k, v := range fields {
		target[k] = deepCopy(v)
	}
	m.notifyLocked(segs)
	m.mu.Unlock()
	return nil
}

func (m *Memory) AppendToList(ctx context.Context, path string, value any) (string, error) {
	segs, err := splitPath(path)
	if err != nil {
		return "", err
	}
	key := m.push.next()
	m.mu.Lock()
	parent, err := m.ensureParent(segs)
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	last := segs[len(segs)-1]
	list, ok := parent[last].(map[string]any)
	if !ok {
		if _, exists := parent[last]; exists {
			m.mu.Unlock()
			return "", ErrNotAContainer
		}
		list = make(map[string]any)
		parent[last] = list
	}
	list[key] = deepCopy(value)
	m.notifyLocked(segs)
	m.mu.Unlock()
	return key, nil
}

func (m *Memory) RemoveValue(ctx context.Context, path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.removeLocked(segs) {
		m.notifyLocked(segs)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Subscribe(path string, fn SnapshotFunc) (func(), error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	sub := newSubscription(segs, fn)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = sub
	sub.enqueue(deepCopy(m.valueAtLocked(segs)))
	m.mu.Unlock()
	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			sub.close()
		})
	}, nil
}

// OnDisconnectCleanup on the bare Memory is a no-op: cleanup hooks belong to a
// connection-scoped Session, which is what clients of a Memory should hold.
func (m *Memory) OnDisconnectCleanup(path string) error {
	_, err := splitPath(path)
	return err
}

// ensureParent walks to the map holding the final segment, creating interior
// maps as needed. Caller holds m.mu.
func (m *Memory) ensureParent(segs []string) (map[string]any, error) {
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			if _, exists := node[seg]; exists {
				return nil, ErrNotAContainer
			}
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	return node, nil
}

func (m *Memory) valueAtLocked(segs []string) any {
	var node any = m.root
	for _, seg := range segs {
		asMap, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = asMap[seg]
		if !ok {
			return nil
		}
	}
	return node
}

// removeLocked deletes the subtree and prunes emptied ancestors, mirroring the
// absent-means-deleted convention of the document model. Reports whether
// anything was actually removed.
func (m *Memory) removeLocked(segs []string) bool {
	parents := make([]map[string]any, 0, len(segs))
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		parents = append(parents, node)
		child, ok := node[seg].(map[string]any)
		if !ok {
			return false
		}
		node = child
	}
	last := segs[len(segs)-1]
	if _, exists := node[last]; !exists {
		return false
	}
	delete(node, last)
	for i := len(parents) - 1; i >= 0; i-- {
		seg := segs[i]
		child := parents[i][seg].(map[string]any)
		if len(child) > 0 {
			break
		}
		delete(parents[i], seg)
	}
	return true
}

// notifyLocked snapshots every subscription overlapping the changed path.
// Caller holds m.mu; enqueue never blocks, preserving per-subscriber order.
func (m *Memory) notifyLocked(changed []string) {
	for _, sub := range m.subs {
		if hasPrefix(changed, sub.path) || hasPrefix(sub.path, changed) {
			sub.enqueue(deepCopy(m.valueAtLocked(sub.path)))
		}
	}
}

type subscription struct {
	path    []string
	fn      SnapshotFunc
	mu      sync.Mutex
	cond    *sync.Cond
	pending []any
	closed  bool
}

func newSubscription(path []string, fn SnapshotFunc) *subscription {
	s := &subscription{path: path, fn: fn}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscription) enqueue(v any) {
	s.mu.Lock()
	if !s.closed {
		s.pending = append(s.pending, v)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscription) run() {
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.fn(next)
	}
}
