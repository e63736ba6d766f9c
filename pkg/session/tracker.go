package session

import (
	"context"
	"sync"
)

// Tracker follows the lifecycle of a set of sessions so an
// application can close them together on shutdown. A nil Tracker is
// safe to use.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

type trackedSession struct {
	session *Session
	once    sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*trackedSession)}
}

// Track registers a started session and unregisters it automatically
// when it terminates. Returns an unregister func for early removal.
func (t *Tracker) Track(s *Session) (unregister func()) {
	if t == nil || s == nil {
		return func() {}
	}

	entry := &trackedSession{session: s}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*trackedSession)
	}
	old := t.sessions[s.ID()]
	t.sessions[s.ID()] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(old)
	}

	go func() {
		<-s.Done()
		t.unregister(entry)
	}()

	return func() { t.unregister(entry) }
}

func (t *Tracker) unregister(entry *trackedSession) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions != nil && t.sessions[entry.session.ID()] == entry {
			delete(t.sessions, entry.session.ID())
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

// Count reports the number of tracked sessions.
func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// CloseAll closes every tracked session and reports how many it hit.
func (t *Tracker) CloseAll() (closed int) {
	if t == nil {
		return 0
	}

	var sessions []*Session
	t.mu.Lock()
	for _, entry := range t.sessions {
		sessions = append(sessions, entry.session)
	}
	t.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
		closed++
	}
	return closed
}

// Wait blocks until every tracked session terminated or ctx expires.
// Reports whether all sessions finished.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
