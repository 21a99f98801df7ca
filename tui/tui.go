// Package tui is the terminal interface: the chat transcript, the session
// sidebar and the authentication forms.
package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"medgpt/api"
	"medgpt/chat"
	"medgpt/config"
	"medgpt/validate"
)

type viewMode int

const (
	viewChat viewMode = iota
	viewSidebar
	viewRename
	viewDelete
	viewUpload
	viewLogin
	viewSignup
	viewChangePassword
)

// authResultMsg is the completion of a login/signup/change-password call.
type authResultMsg struct {
	view viewMode
	err  error
}

// logoutMsg is the completion of a logout call.
type logoutMsg struct {
	err error
}

// Model is the bubbletea model for the client.
type Model struct {
	ctrl   *chat.Controller
	client *api.Client
	cfg    *config.Config

	view        viewMode
	input       string
	searchTerm  string
	selected    int
	width       int
	height      int
	status      string
	renameInput string
	filePath    string
	// session the open rename/delete modal refers to
	targetSession api.Session

	loginForm  *validate.Form
	signupForm *validate.Form
	changeForm *validate.Form
	focusField int

	// chatKeys is the key->handler table for the chat view, built once
	chatKeys map[string]func(*Model) tea.Cmd
}

// NewModel wires the controller and forms.
func NewModel(ctrl *chat.Controller, client *api.Client, cfg *config.Config) *Model {
	m := &Model{
		ctrl:   ctrl,
		client: client,
		cfg:    cfg,
		view:   viewChat,
	}
	m.loginForm = validate.NewForm(
		&validate.Field{Name: "email", Label: "Email", Value: cfg.Email, Rules: []validate.Rule{validate.EmailRule()}},
		&validate.Field{Name: "password", Label: "Password", Mask: true, Rules: []validate.Rule{validate.PasswordRule("")}},
	)
	m.signupForm = validate.NewForm(
		&validate.Field{Name: "email", Label: "Email", Rules: []validate.Rule{validate.EmailRule()}},
		&validate.Field{Name: "password", Label: "Password", Mask: true, Rules: []validate.Rule{validate.PasswordRule("")}},
	)
	m.changeForm = validate.NewForm(
		&validate.Field{Name: "email", Label: "Email", Rules: []validate.Rule{validate.EmailRule()}},
		&validate.Field{Name: "newPassword", Label: "New password", Mask: true, Rules: []validate.Rule{validate.PasswordRule("New password")}},
		&validate.Field{Name: "confirmPassword", Label: "Confirm password", Mask: true, Rules: []validate.Rule{validate.MatchRule("newPassword")}},
	)
	m.chatKeys = buildChatKeymap()
	return m
}

// buildChatKeymap is the declarative event-to-handler table for the chat
// view. Handlers hold the logic; key attachment stays a thin adapter.
func buildChatKeymap() map[string]func(*Model) tea.Cmd {
	return map[string]func(*Model) tea.Cmd{
		"enter": func(m *Model) tea.Cmd {
			cmd := m.ctrl.SendMessage(m.input)
			m.input = ""
			return cmd
		},
		"ctrl+n": func(m *Model) tea.Cmd {
			return m.ctrl.NewChat()
		},
		"ctrl+s": func(m *Model) tea.Cmd {
			m.view = viewSidebar
			m.searchTerm = ""
			m.selected = 0
			return nil
		},
		"ctrl+t": func(m *Model) tea.Cmd {
			m.ctrl.ToggleModel()
			return nil
		},
		"ctrl+o": func(m *Model) tea.Cmd {
			m.view = viewUpload
			m.filePath = ""
			return nil
		},
		"ctrl+l": func(m *Model) tea.Cmd {
			m.view = viewLogin
			m.focusField = 0
			return nil
		},
		"ctrl+q": func(m *Model) tea.Cmd {
			client := m.client
			return func() tea.Msg {
				return logoutMsg{err: client.Logout(context.Background())}
			}
		},
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.ctrl.Init()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Controller completions first: they mutate chat state and may chain
	// follow-up requests.
	if cmd := m.ctrl.HandleMsg(msg); cmd != nil {
		return m, tea.Batch(cmd, m.applyUIEffects(msg))
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case chat.LoginRequiredMsg:
		m.view = viewLogin
		m.focusField = 0
		m.status = "Please log in to continue"
		return m, nil
	case authResultMsg:
		return m.handleAuthResult(msg)
	case logoutMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = "Logged out"
		// The next history fetch comes back 401 and flips guest mode
		return m, m.ctrl.LoadHistory()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if cmd := m.applyUIEffects(msg); cmd != nil {
		return m, cmd
	}
	return m, nil
}

// applyUIEffects reacts to controller completions that also change view
// state: closing the sidebar after a session loads, closing modals after a
// successful rename or delete. Failed modal calls leave the modal open.
func (m *Model) applyUIEffects(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case chat.SessionLoadedMsg:
		if msg.Err == nil && m.view == viewSidebar {
			m.view = viewChat
		}
	case chat.SessionCreatedMsg:
		if msg.Err == nil && m.view == viewSidebar {
			m.view = viewChat
		}
		if msg.Err != nil {
			m.status = "Could not create a new chat"
		}
	case chat.SessionRenamedMsg:
		if msg.Err == nil && m.view == viewRename {
			m.view = viewSidebar
		}
	case chat.SessionDeletedMsg:
		if msg.Err == nil && m.view == viewDelete {
			m.view = viewSidebar
		}
	}
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.view {
	case viewChat:
		return m.updateChat(msg)
	case viewSidebar:
		return m.updateSidebar(msg)
	case viewRename:
		return m.updateRename(msg)
	case viewDelete:
		return m.updateDelete(msg)
	case viewUpload:
		return m.updateUpload(msg)
	case viewLogin, viewSignup, viewChangePassword:
		return m.updateAuthForm(msg)
	}
	return m, nil
}

func (m *Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if handler, ok := m.chatKeys[key]; ok {
		m.status = ""
		return m, handler(m)
	}

	switch key {
	case "backspace":
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case " ":
		m.input += " "
	default:
		if len(key) == 1 || msg.Type == tea.KeyRunes {
			m.input += string(msg.Runes)
		}
	}
	return m, nil
}

func (m *Model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.ctrl.FilterSessions(m.searchTerm)

	switch msg.String() {
	case "esc", "ctrl+s":
		m.view = viewChat
		return m, nil
	case "up":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down":
		if m.selected < len(visible)-1 {
			m.selected++
		}
		return m, nil
	case "enter":
		if m.selected < len(visible) {
			return m, m.ctrl.LoadSession(visible[m.selected].ID)
		}
		return m, nil
	case "ctrl+n":
		return m, m.ctrl.NewChat()
	case "ctrl+r":
		if m.selected < len(visible) {
			m.targetSession = visible[m.selected]
			m.renameInput = m.targetSession.Title
			m.view = viewRename
		}
		return m, nil
	case "ctrl+d":
		if m.selected < len(visible) {
			m.targetSession = visible[m.selected]
			m.view = viewDelete
		}
		return m, nil
	case "backspace":
		if len(m.searchTerm) > 0 {
			m.searchTerm = m.searchTerm[:len(m.searchTerm)-1]
			m.selected = 0
		}
		return m, nil
	}

	if msg.Type == tea.KeyRunes {
		m.searchTerm += string(msg.Runes)
		m.selected = 0
	}
	return m, nil
}

func (m *Model) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewSidebar
		return m, nil
	case "enter":
		title := strings.TrimSpace(m.renameInput)
		if title == "" {
			return m, nil
		}
		return m, m.ctrl.RenameSession(m.targetSession.ID, title)
	case "backspace":
		if len(m.renameInput) > 0 {
			m.renameInput = m.renameInput[:len(m.renameInput)-1]
		}
		return m, nil
	}
	if msg.Type == tea.KeyRunes {
		m.renameInput += string(msg.Runes)
	}
	return m, nil
}

func (m *Model) updateDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "n":
		m.view = viewSidebar
		return m, nil
	case "enter", "y":
		return m, m.ctrl.DeleteSession(m.targetSession.ID)
	}
	return m, nil
}

func (m *Model) updateUpload(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewChat
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.filePath)
		// Reset the file input regardless of outcome
		m.filePath = ""
		m.view = viewChat
		return m, m.ctrl.UploadFile(path)
	case "backspace":
		if len(m.filePath) > 0 {
			m.filePath = m.filePath[:len(m.filePath)-1]
		}
		return m, nil
	}
	if msg.Type == tea.KeyRunes {
		m.filePath += string(msg.Runes)
	}
	return m, nil
}

// activeForm returns the form for the current auth view.
func (m *Model) activeForm() *validate.Form {
	switch m.view {
	case viewSignup:
		return m.signupForm
	case viewChangePassword:
		return m.changeForm
	default:
		return m.loginForm
	}
}

func (m *Model) updateAuthForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	form := m.activeForm()
	field := form.Fields[m.focusField]

	switch msg.String() {
	case "esc":
		form.Reset()
		m.view = viewChat
		return m, nil
	case "tab", "down":
		// Leaving a field validates it (blur)
		form.Blur(field.Name)
		m.focusField = (m.focusField + 1) % len(form.Fields)
		return m, nil
	case "shift+tab", "up":
		form.Blur(field.Name)
		m.focusField--
		if m.focusField < 0 {
			m.focusField = len(form.Fields) - 1
		}
		return m, nil
	case "enter":
		return m, m.submitAuthForm()
	case "ctrl+g":
		// Switch between login and signup
		if m.view == viewLogin {
			m.view = viewSignup
		} else {
			m.view = viewLogin
		}
		m.focusField = 0
		return m, nil
	case "ctrl+p":
		m.view = viewChangePassword
		m.focusField = 0
		return m, nil
	case "backspace":
		if len(field.Value) > 0 {
			field.Value = field.Value[:len(field.Value)-1]
		}
		return m, nil
	}

	if msg.Type == tea.KeyRunes {
		field.Value += string(msg.Runes)
	}
	return m, nil
}

// submitAuthForm validates the active form and submits it. Submission is
// blocked while any validator fails.
func (m *Model) submitAuthForm() tea.Cmd {
	form := m.activeForm()
	if !form.Submit() {
		return nil
	}

	view := m.view
	client := m.client
	email := form.Value("email")

	switch view {
	case viewSignup:
		password := form.Value("password")
		return func() tea.Msg {
			return authResultMsg{view: view, err: client.Signup(context.Background(), email, password)}
		}
	case viewChangePassword:
		newPassword := form.Value("newPassword")
		confirm := form.Value("confirmPassword")
		return func() tea.Msg {
			return authResultMsg{view: view, err: client.ChangePassword(context.Background(), email, newPassword, confirm)}
		}
	default:
		password := form.Value("password")
		return func() tea.Msg {
			return authResultMsg{view: view, err: client.Login(context.Background(), email, password)}
		}
	}
}

func (m *Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = msg.err.Error()
		return m, nil
	}

	switch msg.view {
	case viewSignup:
		m.status = "Account created successfully! Please login."
		m.signupForm.Reset()
		m.view = viewLogin
		m.focusField = 0
		return m, nil
	case viewChangePassword:
		m.status = "Your password has been updated successfully! Please login."
		m.changeForm.Reset()
		m.view = viewLogin
		m.focusField = 0
		return m, nil
	default:
		m.status = "Logged in"
		m.loginForm.Reset()
		m.view = viewChat
		return m, m.ctrl.LoadHistory()
	}
}

// StartTUI initializes and runs the interface.
func StartTUI(cfg *config.Config, client *api.Client, ctrl *chat.Controller) error {
	m := NewModel(ctrl, client, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
