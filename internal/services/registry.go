package services

import (
	"sync"
	"time"
)

type sessionKey struct {
	learnerID    int
	assignmentID int
}

// SessionRegistry holds the live playback sessions.
//
// There is at most one session per (learner, assignment): registering a new one returns the
// session it replaces so the caller can close it.
type SessionRegistry struct {
	mu    sync.RWMutex
	byID  map[string]*Session
	byKey map[sessionKey]*Session
}

// NewSessionRegistry creates an empty registry
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byID:  make(map[string]*Session),
		byKey: make(map[sessionKey]*Session),
	}
}

// Add registers s and returns the session it replaced, if any
func (r *SessionRegistry) Add(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey{learnerID: s.LearnerID, assignmentID: s.AssignmentID}
	old := r.byKey[key]
	if old != nil {
		delete(r.byID, old.ID)
	}
	r.byID[s.ID] = s
	r.byKey[key] = s
	return old
}

// Get returns the session with the given id
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// Remove unregisters s. A session that was already replaced is left alone.
func (r *SessionRegistry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.byID[s.ID]; ok && cur == s {
		delete(r.byID, s.ID)
	}
	key := sessionKey{learnerID: s.LearnerID, assignmentID: s.AssignmentID}
	if cur := r.byKey[key]; cur == s {
		delete(r.byKey, key)
	}
}

// All returns a copy of the live sessions
func (r *SessionRegistry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

// IdleSince returns the sessions without activity since cutoff
func (r *SessionRegistry) IdleSince(cutoff time.Time) []*Session {
	var idle []*Session
	for _, s := range r.All() {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	return idle
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
