package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-rivermind/internal/analyzer"
	"go-rivermind/internal/errors"
	"go-rivermind/internal/logger"
)

// Store tracks live sessions and expires idle ones
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	analyzer   analyzer.FrameAnalyzer
	idleTTL    time.Duration
	windowSize int

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewStore creates a session store sharing one analyzer across sessions
func NewStore(a analyzer.FrameAnalyzer, idleTTL time.Duration, windowSize int) *Store {
	return &Store{
		sessions:   make(map[string]*Session),
		analyzer:   a,
		idleTTL:    idleTTL,
		windowSize: windowSize,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Create registers a new session under a random id
func (st *Store) Create() *Session {
	s := New(uuid.NewString(), st.analyzer, st.windowSize)

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	logger.WithSession(s.ID).Info("Session created")
	return s
}

// Ephemeral returns a session that is not registered in the store
func (st *Store) Ephemeral() *Session {
	return New(uuid.NewString(), st.analyzer, st.windowSize)
}

// Get returns the session with the given id
func (st *Store) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewValidationError("malformed session id", err).WithDetails("session_id=%s", id)
	}

	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError("session not found", nil).WithDetails("session_id=%s", id)
	}
	return s, nil
}

// Delete removes a session
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return errors.NewNotFoundError("session not found", nil).WithDetails("session_id=%s", id)
	}
	logger.WithSession(id).Info("Session deleted")
	return nil
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes sessions idle for longer than the TTL as of now
func (st *Store) Sweep(now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if now.Sub(s.LastActivity()) > st.idleTTL {
			delete(st.sessions, id)
			removed++
			logger.WithFields(logrus.Fields{
				"session_id": id,
				"idle":       now.Sub(s.LastActivity()).String(),
			}).Info("Session expired")
		}
	}
	return removed
}

// StartJanitor sweeps idle sessions every interval until Stop is called
func (st *Store) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = st.idleTTL / 2
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if !st.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(st.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-st.stop:
				return
			case now := <-ticker.C:
				st.Sweep(now)
			}
		}
	}()
}

// Stop ends the janitor and waits for it to exit
func (st *Store) Stop() {
	st.stopOnce.Do(func() {
		close(st.stop)
	})
	if st.started.Load() {
		<-st.done
	}
}
