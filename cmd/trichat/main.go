package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/roleai-app/roleai/internal/client"
)

const submitTimeout = 5 * time.Minute

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	roleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

type view int

const (
	viewLogin view = iota
	viewChat
)

// entryMsg carries one conversation entry from the orchestrator sink.
// seq ties it to the submission that produced it so entries from an
// abandoned session or account are dropped instead of rendered.
type entryMsg struct {
	seq   uint64
	entry client.Entry
}

type submitDoneMsg struct {
	seq uint64
	err error
}

type loggedInMsg struct {
	user *client.User
	err  error
}

// sessionEndedMsg fires when the server rejects the token mid-use and
// the unauthorized hook ends the session outside the update loop.
type sessionEndedMsg struct{}

type workspaceMsg struct {
	roles   []client.Role
	configs []client.ModelConfig
	history []client.Message
	err     error
}

type model struct {
	api     *client.Client
	session *client.AuthSession
	list    *client.SessionList
	orch    *client.Orchestrator
	entries chan entryMsg
	ended   chan struct{}

	view   view
	width  int
	height int
	// seq tags submissions so completions that arrive after a session
	// switch or logout are recognized as stale. Read from the submit
	// goroutine, bumped from the update loop.
	seq     atomic.Uint64
	inFly   bool
	status  string
	lines   []string
	roles   []client.Role
	configs []client.ModelConfig

	email    textinput.Model
	password textinput.Model
	input    textinput.Model
	vp       viewport.Model
	spin     spinner.Model
}

func newModel(baseURL string) *model {
	api := client.New(baseURL)

	statePath, err := client.StatePath()
	if err != nil {
		log.Fatalf("state path: %v", err)
	}
	session := client.NewAuthSession(api, statePath)
	list := client.NewSessionList(api)

	m := &model{
		api:     api,
		session: session,
		list:    list,
		entries: make(chan entryMsg, 16),
		ended:   make(chan struct{}, 1),
	}
	m.orch = client.NewOrchestrator(api, func(e client.Entry) {
		m.entries <- entryMsg{seq: m.seq.Load(), entry: e}
	})
	session.OnLogout(list.Clear)
	session.OnLogout(m.orch.Reset)
	session.OnLogout(func() {
		select {
		case m.ended <- struct{}{}:
		default:
		}
	})

	m.email = textinput.New()
	m.email.Placeholder = "email"
	m.email.Focus()
	m.password = textinput.New()
	m.password.Placeholder = "password"
	m.password.EchoMode = textinput.EchoPassword

	m.input = textinput.New()
	m.input.Placeholder = "ask your roles anything"
	m.input.CharLimit = 4000

	m.spin = spinner.New()
	m.spin.Spinner = spinner.Dot

	m.vp = viewport.New(80, 20)

	m.view = viewLogin
	if session.Restore() {
		m.view = viewChat
		m.input.Focus()
	}
	return m
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEntry(), m.waitForSessionEnd(), m.spin.Tick}
	if m.view == viewChat {
		cmds = append(cmds, m.loadWorkspace())
	}
	return tea.Batch(cmds...)
}

func (m *model) waitForEntry() tea.Cmd {
	return func() tea.Msg { return <-m.entries }
}

func (m *model) waitForSessionEnd() tea.Cmd {
	return func() tea.Msg {
		<-m.ended
		return sessionEndedMsg{}
	}
}

func (m *model) loadWorkspace() tea.Cmd {
	list := m.list
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		roles, err := api.ListRoles(ctx)
		if err != nil {
			return workspaceMsg{err: err}
		}
		configs, err := api.ListModelConfigs(ctx)
		if err != nil {
			return workspaceMsg{err: err}
		}
		if err := list.Refresh(ctx); err != nil {
			return workspaceMsg{err: err}
		}
		id, err := list.EnsureActive(ctx)
		if err != nil {
			return workspaceMsg{err: err}
		}
		history, err := list.Messages(ctx, id)
		if err != nil {
			return workspaceMsg{err: err}
		}
		return workspaceMsg{roles: roles, configs: configs, history: history}
	}
}

func (m *model) submit(prompt string) tea.Cmd {
	seq := m.seq.Load()
	orch := m.orch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		return submitDoneMsg{seq: seq, err: orch.Submit(ctx, prompt)}
	}
}

func (m *model) login(email, password string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		user, err := session.Login(ctx, email, password)
		return loggedInMsg{user: user, err: err}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 6
		m.input.Width = msg.Width - 4
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case loggedInMsg:
		if msg.err != nil {
			m.status = "login failed: " + msg.err.Error()
			return m, nil
		}
		m.view = viewChat
		m.status = "signed in as " + msg.user.Email
		m.password.SetValue("")
		m.input.Focus()
		return m, m.loadWorkspace()

	case workspaceMsg:
		if msg.err != nil {
			m.status = "load failed: " + msg.err.Error()
			return m, nil
		}
		if msg.roles != nil {
			m.roles = msg.roles
		}
		if msg.configs != nil {
			m.configs = msg.configs
		}
		m.applySelection()
		m.lines = nil
		for _, h := range msg.history {
			m.appendMessage(h)
		}
		m.refreshTranscript()
		return m, nil

	case sessionEndedMsg:
		// Explicit sign-out already switched the view; anything else
		// means the server rejected the token mid-use.
		if m.view == viewChat {
			m.seq.Add(1)
			m.resetToLogin("session expired, please sign in again")
		}
		return m, m.waitForSessionEnd()

	case entryMsg:
		// Entries from a superseded submission are stale: the user
		// switched sessions or logged out while it was running.
		if msg.seq == m.seq.Load() {
			m.appendEntry(msg.entry)
			m.refreshTranscript()
		}
		return m, m.waitForEntry()

	case submitDoneMsg:
		if msg.seq == m.seq.Load() {
			m.inFly = false
			m.input.Focus()
			if msg.err != nil {
				m.status = msg.err.Error()
			} else {
				m.status = ""
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, m.updateFocused(msg)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.view == viewLogin {
			if m.email.Focused() {
				m.email.Blur()
				m.password.Focus()
			} else {
				m.password.Blur()
				m.email.Focus()
			}
			return m, nil
		}

	case "enter":
		switch m.view {
		case viewLogin:
			email := strings.TrimSpace(m.email.Value())
			password := m.password.Value()
			if email == "" || password == "" {
				m.status = "email and password are required"
				return m, nil
			}
			m.status = "signing in..."
			return m, m.login(email, password)

		case viewChat:
			if m.inFly {
				return m, nil
			}
			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.input.Blur()
			m.inFly = true
			m.status = ""
			m.seq.Add(1)
			return m, m.submit(prompt)
		}

	case "ctrl+n":
		if m.view == viewChat && !m.inFly {
			m.seq.Add(1)
			return m, m.newSession()
		}

	case "ctrl+d":
		if m.view == viewChat && !m.inFly {
			m.seq.Add(1)
			return m, m.removeSession(m.list.ActiveID())
		}

	case "ctrl+l":
		if m.view == viewChat {
			m.seq.Add(1)
			m.session.Logout()
			m.resetToLogin("signed out")
			return m, nil
		}
	}

	return m, m.updateFocused(msg)
}

// resetToLogin drops everything tied to the signed-out account and puts
// the login form back up.
func (m *model) resetToLogin(status string) {
	m.view = viewLogin
	m.lines = nil
	m.roles = nil
	m.configs = nil
	m.inFly = false
	m.status = status
	m.input.Blur()
	m.email.Focus()
	m.refreshTranscript()
}

func (m *model) newSession() tea.Cmd {
	list := m.list
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := list.Create(ctx); err != nil {
			return workspaceMsg{err: err}
		}
		return workspaceMsg{}
	}
}

func (m *model) removeSession(id string) tea.Cmd {
	list := m.list
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := list.Remove(ctx, id); err != nil {
			return workspaceMsg{err: err}
		}
		active := list.ActiveID()
		history, err := list.Messages(ctx, active)
		if err != nil {
			return workspaceMsg{err: err}
		}
		return workspaceMsg{history: history}
	}
}

func (m *model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.view == viewLogin && m.email.Focused():
		m.email, cmd = m.email.Update(msg)
	case m.view == viewLogin:
		m.password, cmd = m.password.Update(msg)
	case m.input.Focused():
		m.input, cmd = m.input.Update(msg)
	default:
		m.vp, cmd = m.vp.Update(msg)
	}
	return cmd
}

// applySelection wires the first three roles and the first model config
// into the orchestrator and points it at the active session.
func (m *model) applySelection() {
	selected := make([]client.Role, 0, 3)
	for _, r := range m.roles {
		if len(selected) == 3 {
			break
		}
		selected = append(selected, r)
	}
	m.orch.SelectRoles(selected)

	if len(m.configs) > 0 {
		id := m.configs[0].ID
		m.orch.SelectModelConfig(&id)
	} else {
		m.orch.SelectModelConfig(nil)
	}
	m.orch.SetSession(m.list.ActiveID())
}

func (m *model) appendMessage(msg client.Message) {
	label := userStyle.Render("you")
	if msg.Sender == "ai" {
		name := "assistant"
		if msg.RoleID != nil {
			name = m.roleName(*msg.RoleID)
		}
		label = roleStyle.Render(name)
	}
	m.lines = append(m.lines, label+" "+msg.Content)
}

func (m *model) appendEntry(e client.Entry) {
	if e.Sender == "user" {
		m.lines = append(m.lines, userStyle.Render("you")+" "+e.Content)
		return
	}
	if strings.HasPrefix(e.Content, "Error for ") {
		m.lines = append(m.lines, errStyle.Render(e.Content))
		return
	}
	m.lines = append(m.lines, roleStyle.Render(e.RoleName)+" "+e.Content)
}

func (m *model) roleName(id uint64) string {
	for _, r := range m.roles {
		if r.ID == id {
			return r.Name
		}
	}
	return fmt.Sprintf("Role %d", id)
}

func (m *model) refreshTranscript() {
	m.vp.SetContent(strings.Join(m.lines, "\n\n"))
	m.vp.GotoBottom()
}

func (m *model) View() string {
	if m.view == viewLogin {
		var b strings.Builder
		b.WriteString(titleStyle.Render("roleai") + "\n\n")
		b.WriteString(m.email.View() + "\n")
		b.WriteString(m.password.View() + "\n\n")
		if m.status != "" {
			b.WriteString(statusStyle.Render(m.status) + "\n")
		}
		b.WriteString(helpStyle.Render("tab switch field · enter sign in · ctrl+c quit"))
		return b.String()
	}

	var b strings.Builder
	header := titleStyle.Render("roleai") + " " + statusStyle.Render(m.headerLine())
	b.WriteString(header + "\n")
	b.WriteString(m.vp.View() + "\n")
	if m.inFly {
		b.WriteString(m.spin.View() + " waiting for roles...\n")
	} else {
		b.WriteString(m.input.View() + "\n")
	}
	if m.status != "" {
		b.WriteString(errStyle.Render(m.status) + "\n")
	}
	b.WriteString(helpStyle.Render("enter send · ctrl+n new chat · ctrl+d delete chat · ctrl+l sign out · ctrl+c quit"))
	return b.String()
}

func (m *model) headerLine() string {
	parts := make([]string, 0, 3)
	if id := m.list.ActiveID(); id != "" {
		parts = append(parts, "session "+id)
	}
	names := make([]string, 0, 3)
	for _, r := range m.orch.SelectedRoles() {
		names = append(names, r.Name)
	}
	if len(names) > 0 {
		parts = append(parts, strings.Join(names, ", "))
	}
	if len(m.configs) > 0 {
		parts = append(parts, m.configs[0].DisplayName())
	}
	return strings.Join(parts, " · ")
}

func main() {
	baseURL := flag.String("server", envOr("ROLEAI_SERVER", "http://127.0.0.1:8080"), "API server base URL")
	flag.Parse()

	p := tea.NewProgram(newModel(*baseURL), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "trichat: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
