package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func authServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		writeOK(w, map[string]any{
			"token": "tok-1",
			"user":  map[string]any{"id": 9, "email": "a@b.com", "fullName": "Ada"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthSessionLoginPersistsAndRestores(t *testing.T) {
	srv := authServer(t)
	statePath := filepath.Join(t.TempDir(), "session.json")

	c := New(srv.URL)
	s := NewAuthSession(c, statePath)

	user, err := s.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != 9 || user.Email != "a@b.com" {
		t.Fatalf("unexpected user %+v", user)
	}
	if c.Token() != "tok-1" {
		t.Fatalf("client token = %q", c.Token())
	}

	// A fresh session over the same state file picks the login back up.
	c2 := New(srv.URL)
	s2 := NewAuthSession(c2, statePath)
	if !s2.Restore() {
		t.Fatal("Restore should succeed from saved state")
	}
	if c2.Token() != "tok-1" {
		t.Fatalf("restored token = %q", c2.Token())
	}
	if u := s2.User(); u == nil || u.FullName != "Ada" {
		t.Fatalf("restored user = %+v", u)
	}
}

func TestAuthSessionRestoreRejectsMalformedState(t *testing.T) {
	cases := []struct {
		name string
		blob string
	}{
		{"missing file", ""},
		{"not json", "{{{"},
		{"no token", `{"user":{"id":9,"email":"a@b.com"}}`},
		{"no user id", `{"token":"t","user":{"email":"a@b.com"}}`},
		{"no email", `{"token":"t","user":{"id":9}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			statePath := filepath.Join(t.TempDir(), "session.json")
			if tc.blob != "" {
				if err := os.WriteFile(statePath, []byte(tc.blob), 0o600); err != nil {
					t.Fatal(err)
				}
			}
			s := NewAuthSession(New("http://127.0.0.1:0"), statePath)
			if s.Restore() {
				t.Fatal("Restore should reject malformed state")
			}
			if s.Authenticated() {
				t.Fatal("session must stay signed out")
			}
		})
	}
}

func TestLogoutClearsCachesAndStateFile(t *testing.T) {
	srv := authServer(t)
	statePath := filepath.Join(t.TempDir(), "session.json")

	c := New(srv.URL)
	s := NewAuthSession(c, statePath)

	list := NewSessionList(c)
	orch := NewOrchestrator(c, nil)
	s.OnLogout(list.Clear)
	s.OnLogout(orch.Reset)

	if _, err := s.Login(context.Background(), "a@b.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	orch.SelectRoles([]Role{{ID: 1, Name: "Critic"}})
	orch.SelectModelConfig(uptr(5))
	orch.SetSession("s1")

	s.Logout()

	if s.Authenticated() || c.Token() != "" {
		t.Fatal("logout must clear the token")
	}
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Fatalf("state file should be gone, stat err = %v", err)
	}
	if len(orch.SelectedRoles()) != 0 {
		t.Fatal("logout must drop the orchestrator selection")
	}
	if err := orch.Submit(context.Background(), "hi"); err != ErrNoRoles {
		t.Fatalf("post-logout Submit error = %v, want ErrNoRoles", err)
	}
	if len(list.Sessions()) != 0 || list.ActiveID() != "" {
		t.Fatal("logout must drop the cached session list")
	}
}

func TestUnauthorizedResponseEndsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		writeOK(w, map[string]any{
			"token": "tok-1",
			"user":  map[string]any{"id": 9, "email": "a@b.com", "fullName": "Ada"},
		})
	})
	mux.HandleFunc("/api/roles", func(w http.ResponseWriter, req *http.Request) {
		writeFail(w, http.StatusUnauthorized, 40102, "invalid token")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(srv.URL)
	s := NewAuthSession(c, filepath.Join(t.TempDir(), "session.json"))
	hookRuns := 0
	s.OnLogout(func() { hookRuns++ })
	if _, err := s.Login(context.Background(), "a@b.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := c.ListRoles(context.Background()); err == nil {
		t.Fatal("expected an API error")
	}
	if s.Authenticated() {
		t.Fatal("a 401 must end the session")
	}
	if hookRuns != 1 {
		t.Fatalf("logout hooks should run once on a 401, ran %d times", hookRuns)
	}
}

func TestUnauthorizedResponseDiscardsSavedState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		writeOK(w, map[string]any{
			"token": "revoked-tok",
			"user":  map[string]any{"id": 9, "email": "a@b.com", "fullName": "Ada"},
		})
	})
	mux.HandleFunc("/api/roles", func(w http.ResponseWriter, req *http.Request) {
		writeFail(w, http.StatusUnauthorized, 40102, "invalid token")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	statePath := filepath.Join(t.TempDir(), "session.json")
	c := New(srv.URL)
	s := NewAuthSession(c, statePath)
	if _, err := s.Login(context.Background(), "a@b.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := os.Stat(statePath); err != nil {
		t.Fatalf("login should have saved state: %v", err)
	}

	if _, err := c.ListRoles(context.Background()); err == nil {
		t.Fatal("expected an API error")
	}

	// The rejected token must not survive on disk.
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Fatalf("state file should be gone after a 401, stat err = %v", err)
	}
	s2 := NewAuthSession(New(srv.URL), statePath)
	if s2.Restore() {
		t.Fatal("Restore must not revive a rejected token")
	}
}
