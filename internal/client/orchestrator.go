package client

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
)

// A single prompt fans out to at most this many roles. Extra selections
// are ignored without error.
const maxRolesPerPrompt = 3

var (
	ErrEmptyPrompt   = errors.New("client: prompt is empty")
	ErrNoRoles       = errors.New("client: no roles selected")
	ErrNoModelConfig = errors.New("client: no model config selected")
	ErrNoSession     = errors.New("client: no active session")
	ErrBusy          = errors.New("client: a submission is already in flight")
)

// Entry is one line of the conversation as the UI sees it: the user's
// prompt, a role's reply, or a per-role error notice.
type Entry struct {
	Sender   string
	RoleID   uint64
	RoleName string
	Content  string
}

// Orchestrator turns one prompt into a sequence of per-role generation
// calls against the active session. Replies stream to the sink in role
// selection order; a failing role produces an error entry and the next
// role still runs.
type Orchestrator struct {
	client *Client

	mu            sync.Mutex
	busy          bool
	roles         []Role
	modelConfigID *uint64
	sessionID     string

	sink        func(Entry)
	afterSubmit func()
}

func NewOrchestrator(c *Client, sink func(Entry)) *Orchestrator {
	return &Orchestrator{client: c, sink: sink}
}

// AfterSubmit registers a hook run once per completed submission, after
// every role has answered or failed. The session list uses it to pick
// up title and ordering changes.
func (o *Orchestrator) AfterSubmit(fn func()) {
	o.mu.Lock()
	o.afterSubmit = fn
	o.mu.Unlock()
}

func (o *Orchestrator) SelectRoles(roles []Role) {
	o.mu.Lock()
	o.roles = append([]Role(nil), roles...)
	o.mu.Unlock()
}

func (o *Orchestrator) SelectedRoles() []Role {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Role(nil), o.roles...)
}

func (o *Orchestrator) SelectModelConfig(id *uint64) {
	o.mu.Lock()
	if id == nil {
		o.modelConfigID = nil
	} else {
		v := *id
		o.modelConfigID = &v
	}
	o.mu.Unlock()
}

func (o *Orchestrator) SetSession(id string) {
	o.mu.Lock()
	o.sessionID = id
	o.mu.Unlock()
}

// Reset drops the role, config and session selection. Wired to the auth
// session's logout hook.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.roles = nil
	o.modelConfigID = nil
	o.sessionID = ""
	o.mu.Unlock()
}

func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Submit runs one full prompt round. Validation happens before any
// network call; a rejected submission touches neither the server nor
// the sink. Only one submission runs at a time.
func (o *Orchestrator) Submit(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrBusy
	}
	roles := append([]Role(nil), o.roles...)
	cfgID := o.modelConfigID
	sessionID := o.sessionID
	after := o.afterSubmit
	switch {
	case len(roles) == 0:
		o.mu.Unlock()
		return ErrNoRoles
	case cfgID == nil:
		o.mu.Unlock()
		return ErrNoModelConfig
	case sessionID == "":
		o.mu.Unlock()
		return ErrNoSession
	}
	o.busy = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	if len(roles) > maxRolesPerPrompt {
		roles = roles[:maxRolesPerPrompt]
	}

	o.emit(Entry{Sender: "user", Content: prompt})

	// The user message is persisted before any generation so the
	// transcript reads in order. Generation replies are stored by the
	// server; a persistence failure here only costs history.
	if _, err := o.client.AddMessage(ctx, sessionID, "user", prompt, nil); err != nil {
		log.Printf("persist user message failed session=%s err=%v", sessionID, err)
	}

	for _, r := range roles {
		name := r.Name
		if name == "" {
			name = "Role " + strconv.FormatUint(r.ID, 10)
		}
		reply, err := o.client.Generate(ctx, GenerateParams{
			RoleID:        r.ID,
			Message:       prompt,
			ModelConfigID: cfgID,
			SessionID:     sessionID,
		})
		if err != nil {
			o.emit(Entry{
				Sender:   "ai",
				RoleID:   r.ID,
				RoleName: name,
				Content:  "Error for " + name + ": " + err.Error(),
			})
			continue
		}
		o.emit(Entry{Sender: "ai", RoleID: r.ID, RoleName: name, Content: reply})
	}

	if after != nil {
		after()
	}
	return nil
}

func (o *Orchestrator) emit(e Entry) {
	if o.sink != nil {
		o.sink(e)
	}
}
