package form

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"qrcode-workers/internal/common/errors"
	"qrcode-workers/internal/common/logger"
	"qrcode-workers/internal/common/metrics"
)

const defaultBuildTimeout = 30 * time.Second

// Store keeps sessions in memory, keyed by a random UUID.
type Store struct {
	builder      ValueBuilder
	logger       logger.Logger
	buildTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty store. buildTimeout bounds each build; zero
// uses 30s.
func NewStore(builder ValueBuilder, log logger.Logger, buildTimeout time.Duration) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if buildTimeout <= 0 {
		buildTimeout = defaultBuildTimeout
	}
	return &Store{
		builder:      builder,
		logger:       log,
		buildTimeout: buildTimeout,
		sessions:     make(map[string]*Session),
	}
}

// Create starts a new session with default inputs.
func (s *Store) Create() *Session {
	id := uuid.NewString()
	sess := newSession(id, s.builder, s.logger, s.buildTimeout)

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.FormSessionsActive.Set(float64(n))
	s.logger.Debug("Form session created", map[string]interface{}{"sessionId": id})
	return sess
}

// Get returns the session or a SESSION_NOT_FOUND error.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NewSessionNotFoundError(id)
	}
	return sess, nil
}

// Delete removes a session and waits for its builds to stop.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if ok {
		sess.close()
		metrics.FormSessionsActive.Set(float64(n))
	}
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Prune drops sessions idle for longer than maxIdle and returns how many
// were removed.
func (s *Store) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)

	s.mu.RLock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if s.Delete(id) {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("Pruned idle form sessions", map[string]interface{}{"removed": removed})
	}
	return removed
}

// Close cancels in-flight builds and drops every session.
func (s *Store) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	metrics.FormSessionsActive.Set(0)
}
