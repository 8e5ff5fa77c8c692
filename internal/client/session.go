package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// AuthSession owns the login state: the bearer token, the signed-in user
// and the on-disk copy that survives restarts. All mutations go through
// it so the API client token and the saved state never diverge.
type AuthSession struct {
	client *Client

	mu    sync.RWMutex
	user  *User
	token string

	statePath string
	onLogout  []func()
}

type sessionState struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// StatePath resolves the session file location. ROLEAI_STATE_DIR wins,
// otherwise the platform config dir is used.
func StatePath() (string, error) {
	if dir := os.Getenv("ROLEAI_STATE_DIR"); dir != "" {
		return filepath.Join(dir, "session.json"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "roleai", "session.json"), nil
}

func NewAuthSession(c *Client, statePath string) *AuthSession {
	s := &AuthSession{client: c, statePath: statePath}
	c.OnUnauthorized(func() { s.clear() })
	return s
}

// OnLogout registers a hook run whenever the session ends, either by an
// explicit logout or by the server rejecting the token. Controllers use
// it to drop per-account caches.
func (s *AuthSession) OnLogout(fn func()) {
	s.mu.Lock()
	s.onLogout = append(s.onLogout, fn)
	s.mu.Unlock()
}

func (s *AuthSession) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *AuthSession) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// Restore loads a previously saved session. A missing file or a state
// blob without a token, user id or email is treated as signed out, not
// as an error.
func (s *AuthSession) Restore() bool {
	raw, err := os.ReadFile(s.statePath)
	if err != nil {
		return false
	}
	var st sessionState
	if err := json.Unmarshal(raw, &st); err != nil {
		return false
	}
	if st.Token == "" || st.User.ID == 0 || st.User.Email == "" {
		return false
	}
	s.mu.Lock()
	s.token = st.Token
	u := st.User
	s.user = &u
	s.mu.Unlock()
	s.client.SetToken(st.Token)
	return true
}

func (s *AuthSession) Login(ctx context.Context, email, password string) (*User, error) {
	res, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.accept(res)
}

func (s *AuthSession) Signup(ctx context.Context, fullName, email, password string) (*User, error) {
	res, err := s.client.Signup(ctx, fullName, email, password)
	if err != nil {
		return nil, err
	}
	return s.accept(res)
}

func (s *AuthSession) accept(res *AuthResult) (*User, error) {
	if res.Token == "" || res.User.ID == 0 {
		return nil, errors.New("client: malformed auth response")
	}
	s.mu.Lock()
	s.token = res.Token
	u := res.User
	s.user = &u
	s.mu.Unlock()
	s.client.SetToken(res.Token)

	if err := s.save(res.Token, res.User); err != nil {
		log.Printf("session save failed path=%s err=%v", s.statePath, err)
	}
	return &u, nil
}

// Logout clears the token, the saved state and every per-account cache
// registered through OnLogout.
func (s *AuthSession) Logout() {
	s.clear()
}

// clear ends the session everywhere at once: a token the server has
// rejected must not survive on disk and come back through Restore.
func (s *AuthSession) clear() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	hooks := make([]func(), len(s.onLogout))
	copy(hooks, s.onLogout)
	s.mu.Unlock()

	s.client.SetToken("")
	os.Remove(s.statePath)
	for _, fn := range hooks {
		fn()
	}
}

func (s *AuthSession) save(token string, user User) error {
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o700); err != nil {
		return err
	}
	raw, err := json.Marshal(sessionState{Token: token, User: user})
	if err != nil {
		return err
	}
	return os.WriteFile(s.statePath, raw, 0o600)
}
