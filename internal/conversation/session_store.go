package conversation

import (
	"context"
	"sync"
)

// SessionStore holds the ordered message list for each chat session.
//
// Callers serialize a whole turn with Lock; the other methods are individually
// safe for concurrent use.
type SessionStore interface {
	// GetOrCreate returns the session's messages, empty for an unseen session.
	GetOrCreate(ctx context.Context, sessionID string) ([]Message, error)
	Append(ctx context.Context, sessionID string, msg Message) error
	Replace(ctx context.Context, sessionID string, history []Message) error
	// Lock blocks until the caller holds the session or ctx is done.
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// MemorySessionStore keeps sessions in process memory with no eviction.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string][]Message
	locks    map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string][]Message),
		locks:    make(map[string]*sessionLock),
	}
}

func (s *MemorySessionStore) GetOrCreate(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, ok := s.sessions[sessionID]
	if !ok {
		s.sessions[sessionID] = nil
		return []Message{}, nil
	}
	return cloneMessages(history), nil
}

func (s *MemorySessionStore) Append(_ context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], msg)
	return nil
}

func (s *MemorySessionStore) Replace(_ context.Context, sessionID string, history []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = cloneMessages(history)
	return nil
}

func (s *MemorySessionStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{ch: make(chan struct{}, 1)}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				s.release(sessionID, l)
			})
		}, nil
	case <-ctx.Done():
		s.release(sessionID, l)
		return nil, ctx.Err()
	}
}

// release drops a waiter reference and forgets idle locks.
func (s *MemorySessionStore) release(sessionID string, l *sessionLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, sessionID)
	}
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
