package quiz

import (
	"sync"
	"time"

	"groupquiz/internal/errors"
	"groupquiz/internal/telemetry"
)

// Registry is the process-wide map from group ID to live session. Sessions
// remove themselves on reaching a terminal state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	newSession func(groupID, ownerID string) *Session
}

func newRegistry(newSession func(groupID, ownerID string) *Session) *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		newSession: newSession,
	}
}

// GetOrCreate returns the group's session, creating one in the Idle state
// when absent. created reports whether this call created it.
func (r *Registry) GetOrCreate(groupID, ownerID string) (s *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[groupID]; ok {
		return s, false
	}

	s = r.newSession(groupID, ownerID)
	r.sessions[groupID] = s
	telemetry.ActiveSessions.Inc()
	return s, true
}

func (r *Registry) Get(groupID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[groupID]
	return s, ok
}

func (r *Registry) Remove(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[groupID]; ok {
		delete(r.sessions, groupID)
		telemetry.ActiveSessions.Dec()
	}
}

// All returns a snapshot of the live sessions.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// RoutePrivateAnswer resolves which session a private reply belongs to: the
// sender must be a registered player of a running session with an open
// round they have not answered yet. When several sessions qualify, the one
// whose round started most recently wins.
func (r *Registry) RoutePrivateAnswer(senderID string) (*Session, error) {
	var (
		best      *Session
		bestStart time.Time
		answered  bool
	)

	for _, s := range r.All() {
		startTime, status := s.awaitingAnswer(senderID)
		switch status {
		case awaitAnswered:
			answered = true
		case awaitOpen:
			if best == nil || startTime.After(bestStart) {
				best, bestStart = s, startTime
			}
		}
	}

	if best != nil {
		return best, nil
	}
	if answered {
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("you already answered this question"))
	}

	return nil, errors.New(errors.CodeNotFound,
		errors.WithMessagef("no active question for you"))
}
