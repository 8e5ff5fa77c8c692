// Package client implements the application side of the chat service:
// an HTTP API client, a persistent auth session, a chat session list
// controller and the multi-role prompt orchestrator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIError carries the server's envelope code alongside the HTTP status.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

type User struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

type Role struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ModelConfig struct {
	ID       uint64  `json:"id"`
	Provider string  `json:"provider"`
	ModelID  string  `json:"modelId"`
	Label    *string `json:"label"`
}

// DisplayName prefers the label and falls back to the raw model id.
func (m ModelConfig) DisplayName() string {
	if m.Label != nil && *m.Label != "" {
		return *m.Label
	}
	return m.ModelID
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID        uint64    `json:"id"`
	SessionID string    `json:"sessionId"`
	RoleID    *uint64   `json:"roleId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type RoleMatch struct {
	Role  Role    `json:"role"`
	Score float64 `json:"score"`
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Client talks to the REST API. Token access is guarded so the auth
// session and in-flight requests can share one instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnUnauthorized registers a hook fired whenever the server answers 401,
// regardless of which call hit it.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		if raw, ok := body.([]byte); ok {
			reader = bytes.NewReader(raw)
		} else {
			buf, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(buf)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.RLock()
		hook := c.onUnauthorized
		c.mu.RUnlock()
		if hook != nil {
			hook()
		}
	}
	if env.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// --- auth ---

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Signup(ctx context.Context, fullName, email, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/signup",
		map[string]string{"fullName": fullName, "email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/forgot-password",
		map[string]string{"email": email}, nil)
}

func (c *Client) VerifyResetCode(ctx context.Context, email, code string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/verify-reset-code",
		map[string]string{"email": email, "code": code}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/reset-password",
		map[string]string{"email": email, "code": code, "newPassword": newPassword}, nil)
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- roles ---

func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var out struct {
		Roles []Role `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/roles", nil, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (c *Client) SearchRoles(ctx context.Context, query string) ([]Role, error) {
	var out struct {
		Roles []Role `json:"roles"`
	}
	path := "/api/roles/search?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (c *Client) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	var out Role
	err := c.do(ctx, http.MethodPost, "/api/roles",
		map[string]string{"name": name, "description": description}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateRole(ctx context.Context, id uint64, name, description string) (*Role, error) {
	var out Role
	err := c.do(ctx, http.MethodPut, "/api/roles/"+strconv.FormatUint(id, 10),
		map[string]string{"name": name, "description": description}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteRole(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, "/api/roles/"+strconv.FormatUint(id, 10), nil, nil)
}

func (c *Client) FindSimilarRoles(ctx context.Context, description string, limit int) ([]RoleMatch, error) {
	var out struct {
		Matches []RoleMatch `json:"matches"`
	}
	path := "/api/roles/similar"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodPost, path, []byte(description), &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// --- model configs ---

func (c *Client) ListModelConfigs(ctx context.Context) ([]ModelConfig, error) {
	var out struct {
		Models []ModelConfig `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

func (c *Client) CreateModelConfig(ctx context.Context, provider, modelID, label, apiKey string) (*ModelConfig, error) {
	var out ModelConfig
	err := c.do(ctx, http.MethodPost, "/api/models", map[string]string{
		"provider": provider, "modelId": modelID, "label": label, "apiKey": apiKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateModelConfig sends only the fields given. A blank apiKey leaves the
// stored credential untouched.
func (c *Client) UpdateModelConfig(ctx context.Context, id uint64, provider, modelID, label, apiKey string) (*ModelConfig, error) {
	var out ModelConfig
	err := c.do(ctx, http.MethodPatch, "/api/models/"+strconv.FormatUint(id, 10), map[string]string{
		"provider": provider, "modelId": modelID, "label": label, "apiKey": apiKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteModelConfig(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodDelete, "/api/models/"+strconv.FormatUint(id, 10), nil, nil)
}

// --- chat sessions ---

func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/chats/create", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+sessionID+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) AddMessage(ctx context.Context, sessionID, sender, content string, roleID *uint64) (*Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPost, "/api/chats/"+sessionID+"/messages", map[string]any{
		"sender": sender, "content": content, "roleId": roleID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+sessionID, nil, nil)
}

// --- generation ---

type GenerateParams struct {
	RoleID        uint64  `json:"roleId"`
	Message       string  `json:"message"`
	ModelConfigID *uint64 `json:"modelConfigId,omitempty"`
	SessionID     string  `json:"sessionId,omitempty"`
}

func (c *Client) Generate(ctx context.Context, p GenerateParams) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat/generate", p, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}
