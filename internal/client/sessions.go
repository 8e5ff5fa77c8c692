package client

import (
	"context"
	"sync"
)

// SessionList tracks the user's chat sessions and which one is active.
// Every mutation talks to the server first and updates local state only
// on success, so a failed call never leaves the list half changed.
type SessionList struct {
	client *Client

	mu       sync.RWMutex
	sessions []Session
	activeID string
}

func NewSessionList(c *Client) *SessionList {
	return &SessionList{client: c}
}

func (l *SessionList) Sessions() []Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Session, len(l.sessions))
	copy(out, l.sessions)
	return out
}

func (l *SessionList) ActiveID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeID
}

func (l *SessionList) SetActive(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sessions {
		if s.ID == id {
			l.activeID = id
			return true
		}
	}
	return false
}

// Refresh reloads the list from the server, newest activity first. The
// active session is kept when it still exists, otherwise it falls back
// to the top of the list.
func (l *SessionList) Refresh(ctx context.Context) error {
	sessions, err := l.client.ListSessions(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = sessions
	if !l.containsLocked(l.activeID) {
		l.activeID = ""
		if len(sessions) > 0 {
			l.activeID = sessions[0].ID
		}
	}
	return nil
}

// Create makes a new session, puts it at the top and makes it active.
func (l *SessionList) Create(ctx context.Context) (*Session, error) {
	sess, err := l.client.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.sessions = append([]Session{*sess}, l.sessions...)
	l.activeID = sess.ID
	l.mu.Unlock()
	return sess, nil
}

// EnsureActive returns the active session id, creating a session first
// when none exists. There is always a valid current session after a
// successful call.
func (l *SessionList) EnsureActive(ctx context.Context) (string, error) {
	l.mu.RLock()
	id := l.activeID
	l.mu.RUnlock()
	if id != "" {
		return id, nil
	}
	sess, err := l.Create(ctx)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// Remove deletes a session. Deleting the active one promotes the next
// remaining session, or creates a fresh one when the list is empty, so
// the caller is never left without a current session.
func (l *SessionList) Remove(ctx context.Context, id string) error {
	if err := l.client.DeleteSession(ctx, id); err != nil {
		return err
	}

	l.mu.Lock()
	kept := l.sessions[:0]
	for _, s := range l.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	l.sessions = kept
	wasActive := l.activeID == id
	if wasActive {
		l.activeID = ""
		if len(kept) > 0 {
			l.activeID = kept[0].ID
		}
	}
	needNew := wasActive && len(kept) == 0
	l.mu.Unlock()

	if needNew {
		if _, err := l.Create(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Messages loads the transcript of a session, oldest first.
func (l *SessionList) Messages(ctx context.Context, id string) ([]Message, error) {
	return l.client.SessionMessages(ctx, id)
}

// Clear drops all cached state. Wired to the auth session's logout hook
// so one account's sessions never leak into the next login.
func (l *SessionList) Clear() {
	l.mu.Lock()
	l.sessions = nil
	l.activeID = ""
	l.mu.Unlock()
}

func (l *SessionList) containsLocked(id string) bool {
	if id == "" {
		return false
	}
	for _, s := range l.sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}
