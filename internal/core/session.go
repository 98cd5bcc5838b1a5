package core

import (
	"sync"
	"time"
)

// SessionState is a step of the import lifecycle.
//
//	Empty -> Loaded -> Validated -> Resolving -> Ready <-> Editing -> Committing -> Empty
//
// A failed resolution returns to the state before the import. A failed
// commit returns to Ready or Editing with records and overlay intact.
type SessionState string

const (
	StateEmpty      SessionState = "empty"
	StateLoaded     SessionState = "loaded"
	StateValidated  SessionState = "validated"
	StateResolving  SessionState = "resolving"
	StateReady      SessionState = "ready"
	StateEditing    SessionState = "editing"
	StateCommitting SessionState = "committing"
)

// Transition is one entry of a session's history.
type Transition struct {
	From   SessionState `json:"from"`
	To     SessionState `json:"to"`
	Reason string       `json:"reason"`
	Client string       `json:"client,omitempty"`
	At     time.Time    `json:"at"`
}

// maxHistory bounds the transitions kept per session.
var maxHistory = 200

// Session is one user's import workspace.
type Session struct {
	ID        string
	Profile   *Profile
	Scope     string
	CreatedAt time.Time

	mu         sync.Mutex
	state      SessionState
	draft      State
	busy       bool
	lastActive time.Time
	history    []Transition
}

func newSession(id string, p *Profile, scope string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Profile:    p,
		Scope:      scope,
		CreatedAt:  now,
		state:      StateEmpty,
		lastActive: now,
	}
}

// SessionSnapshot is a consistent read of a session.
type SessionSnapshot struct {
	ID         string       `json:"id"`
	Profile    string       `json:"profile"`
	Scope      string       `json:"scope"`
	State      SessionState `json:"state"`
	Busy       bool         `json:"busy"`
	Records    []Record     `json:"records"`
	Pending    int          `json:"pending"`
	History    []Transition `json:"history"`
	CreatedAt  time.Time    `json:"createdAt"`
	LastActive time.Time    `json:"lastActive"`
}

// Snapshot returns the merged records and metadata under one lock.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SessionSnapshot{
		ID:         s.ID,
		Profile:    s.Profile.Key,
		Scope:      s.Scope,
		State:      s.state,
		Busy:       s.busy,
		Records:    s.draft.Merged(s.Profile),
		Pending:    s.draft.Pending(),
		History:    append([]Transition(nil), s.history...),
		CreatedAt:  s.CreatedAt,
		LastActive: s.lastActive,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// begin marks the session busy for an operation that calls out to a
// collaborator. It returns the state and draft to restore on failure.
func (s *Session) begin(now time.Time) (SessionState, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return "", State{}, ErrSessionBusy
	}
	s.busy = true
	s.lastActive = now
	return s.state, s.draft, nil
}

// end clears the busy mark set by begin.
func (s *Session) end(now time.Time) {
	s.mu.Lock()
	s.busy = false
	s.lastActive = now
	s.mu.Unlock()
}

// transition moves to state to, optionally replacing the draft, and returns
// the event describing the result. Callers publish the event after the
// lock is released.
func (s *Session) transition(to SessionState, draft *State, reason, client string, now time.Time) SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(to, draft, reason, client, now)
}

func (s *Session) transitionLocked(to SessionState, draft *State, reason, client string, now time.Time) SessionEvent {
	if draft != nil {
		s.draft = *draft
	}
	s.history = append(s.history, Transition{From: s.state, To: to, Reason: reason, Client: client, At: now})
	if over := len(s.history) - maxHistory; over > 0 {
		s.history = append([]Transition(nil), s.history[over:]...)
	}
	s.state = to
	s.lastActive = now

	return SessionEvent{
		SessionID: s.ID,
		Kind:      reason,
		State:     to,
		Records:   s.draft.Len(),
		Pending:   s.draft.Pending(),
		At:        now,
	}
}

// restingState is Editing when edits are pending, Ready when records exist,
// and Empty otherwise.
func restingState(d State) SessionState {
	switch {
	case d.Dirty():
		return StateEditing
	case d.Len() > 0:
		return StateReady
	default:
		return StateEmpty
	}
}

// idleSince reports whether the session has been untouched since cutoff
// and is not in the middle of an operation.
func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.busy && s.lastActive.Before(cutoff)
}
