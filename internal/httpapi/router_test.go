package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/roleai-app/roleai/internal/config"
	"github.com/roleai-app/roleai/internal/db"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Setenv("GEMINI_API_KEY", "")
	cfg := config.Load()
	return NewRouter(gdb, cfg, nil, nil)
}

type apiResp struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func request(t *testing.T, r *gin.Engine, method, path, token string, body any) (int, apiResp) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResp
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w.Code, resp
}

func signupToken(t *testing.T, r *gin.Engine, email string) string {
	t.Helper()
	status, resp := request(t, r, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"fullName": "Test User", "email": email, "password": "secret1",
	})
	if status != http.StatusOK || resp.Code != 0 {
		t.Fatalf("signup failed: status=%d resp=%+v", status, resp)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("signup response missing token: %s", resp.Data)
	}
	return data.Token
}

func TestAuthRequiredOnProtectedRoutes(t *testing.T) {
	r := testRouter(t)

	status, resp := request(t, r, http.MethodGet, "/api/roles", "", nil)
	if status != http.StatusUnauthorized || resp.Code != 40101 {
		t.Fatalf("status=%d code=%d", status, resp.Code)
	}

	status, resp = request(t, r, http.MethodGet, "/api/roles", "not-a-token", nil)
	if status != http.StatusUnauthorized || resp.Code != 40102 {
		t.Fatalf("status=%d code=%d", status, resp.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	r := testRouter(t)
	signupToken(t, r, "ada@example.com")

	status, resp := request(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong-pass",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("status=%d", status)
	}
	if resp.Message != "invalid email or password" {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestGenerateFlowWithMockProvider(t *testing.T) {
	r := testRouter(t)
	token := signupToken(t, r, "ada@example.com")

	// role
	status, resp := request(t, r, http.MethodPost, "/api/roles", token, map[string]string{
		"name": "Critic", "description": "Reviews everything harshly.",
	})
	if status != http.StatusOK || resp.Code != 0 {
		t.Fatalf("create role: status=%d resp=%+v", status, resp)
	}
	var created struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil || created.ID == 0 {
		t.Fatalf("role response: %s", resp.Data)
	}

	// session
	status, resp = request(t, r, http.MethodPost, "/api/chats/create", token, nil)
	if status != http.StatusOK {
		t.Fatalf("create session: status=%d", status)
	}
	var sess struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(resp.Data, &sess); err != nil {
		t.Fatal(err)
	}
	if len(sess.ID) != 16 || sess.Title != "New Chat" {
		t.Fatalf("session = %+v", sess)
	}

	// generate without any credential: the canned reply comes back and
	// is stored under the session with role attribution
	status, resp = request(t, r, http.MethodPost, "/api/chat/generate", token, map[string]any{
		"roleId": created.ID, "message": "Hello", "sessionId": sess.ID,
	})
	if status != http.StatusOK || resp.Code != 0 {
		t.Fatalf("generate: status=%d resp=%+v", status, resp)
	}
	var gen struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(resp.Data, &gen); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(gen.Reply, "Mock response from Critic: Hello") {
		t.Fatalf("reply = %q", gen.Reply)
	}

	status, resp = request(t, r, http.MethodGet, "/api/chats/"+sess.ID+"/messages", token, nil)
	if status != http.StatusOK {
		t.Fatalf("messages: status=%d", status)
	}
	var msgs struct {
		Messages []struct {
			Sender string  `json:"sender"`
			RoleID *uint64 `json:"roleId"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(resp.Data, &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs.Messages) != 1 {
		t.Fatalf("messages = %+v", msgs.Messages)
	}
	if msgs.Messages[0].Sender != "ai" || msgs.Messages[0].RoleID == nil || *msgs.Messages[0].RoleID != created.ID {
		t.Fatalf("ai message = %+v", msgs.Messages[0])
	}
}

func TestGenerateRejectsForeignRole(t *testing.T) {
	r := testRouter(t)
	owner := signupToken(t, r, "owner@example.com")
	other := signupToken(t, r, "other@example.com")

	_, resp := request(t, r, http.MethodPost, "/api/roles", owner, map[string]string{
		"name": "Critic", "description": "Reviews everything.",
	})
	var created struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatal(err)
	}

	status, resp := request(t, r, http.MethodPost, "/api/chat/generate", other, map[string]any{
		"roleId": created.ID, "message": "Hello",
	})
	if status != http.StatusBadRequest || resp.Code != 10030 {
		t.Fatalf("status=%d code=%d", status, resp.Code)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	r := testRouter(t)
	token := signupToken(t, r, "ada@example.com")

	_, resp := request(t, r, http.MethodPost, "/api/chats/create", token, nil)
	var sess struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &sess); err != nil {
		t.Fatal(err)
	}

	status, _ := request(t, r, http.MethodPost, "/api/chats/"+sess.ID+"/messages", token, map[string]any{
		"sender": "user", "content": "hi",
	})
	if status != http.StatusOK {
		t.Fatalf("add message: status=%d", status)
	}

	status, _ = request(t, r, http.MethodDelete, "/api/chats/"+sess.ID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: status=%d", status)
	}

	status, resp = request(t, r, http.MethodGet, "/api/chats/"+sess.ID+"/messages", token, nil)
	if status != http.StatusNotFound || resp.Code != 40404 {
		t.Fatalf("status=%d code=%d", status, resp.Code)
	}
}
