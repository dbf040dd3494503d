package store

import (
	"context"
	"sync"
)

// Session scopes a Memory to one connection: it tracks the connection's
// subscriptions and its disconnect-cleanup registrations, and tears both down
// on Close. The sync server opens one Session per websocket.
type Session struct {
	mem      *Memory
	mu       sync.Mutex
	cleanups []string
	cancels  []func()
	closed   bool
}

func (m *Memory) OpenSession() *Session {
	return &Session{mem: m}
}

func (s *Session) WriteValue(ctx context.Context, path string, value any) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.mem.WriteValue(ctx, path, value)
}

func (s *Session) MergeFields(ctx context.Context, path string, fields map[string]any) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.mem.MergeFields(ctx, path, fields)
}

func (s *Session) AppendToList(ctx context.Context, path string, value any) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return s.mem.AppendToList(ctx, path, value)
}

func (s *Session) RemoveValue(ctx context.Context, path string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.mem.RemoveValue(ctx, path)
}

func (s *Session) Subscribe(path string, fn SnapshotFunc) (func(), error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	cancel, err := s.mem.Subscribe(path, fn)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
	return cancel, nil
}

func (s *Session) OnDisconnectCleanup(path string) error {
	if _, err := splitPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cleanups = append(s.cleanups, path)
	return nil
}

// Close cancels the session's subscriptions and performs every registered
// disconnect cleanup. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := s.cancels
	cleanups := s.cleanups
	s.cancels, s.cleanups = nil, nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, path := range cleanups {
		_ = s.mem.RemoveValue(context.Background(), path)
	}
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
