package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"medgpt/api"
	"medgpt/chat"
	"medgpt/validate"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2E7D32")).
			Padding(0, 1)

	userMsgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			PaddingLeft(2)

	botMsgStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)

	contextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			PaddingLeft(4)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1)

	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2)

	activeSessionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#04B575"))

	selectedSessionStyle = lipgloss.NewStyle().
				Reverse(true)

	modalStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F25D94")).
			Padding(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4d4d"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffa500"))
)

// View implements tea.Model.
func (m *Model) View() string {
	switch m.view {
	case viewSidebar:
		return m.renderSidebar()
	case viewRename:
		return m.renderRenameModal()
	case viewDelete:
		return m.renderDeleteModal()
	case viewUpload:
		return m.renderUploadPrompt()
	case viewLogin:
		return m.renderAuthForm("Login", m.loginForm, "Ctrl+G signup • Ctrl+P change password • Esc back")
	case viewSignup:
		return m.renderAuthForm("Sign Up", m.signupForm, "Ctrl+G login • Esc back")
	case viewChangePassword:
		return m.renderChangePassword()
	default:
		return m.renderChat()
	}
}

func (m *Model) renderChat() string {
	state := m.ctrl.State()

	title := titleStyle.Render("MedGPT - Medical Assistant")
	modelLine := fmt.Sprintf("Model: %s%s", modelLabel(state.CurrentModel), availabilityNote(state))

	var lines []string
	for _, e := range m.ctrl.Transcript() {
		lines = append(lines, renderEntry(e))
	}
	transcript := strings.Join(lines, "\n")

	input := inputStyle.Render("> " + m.input)

	help := helpStyle.Render("Enter send • Ctrl+N new chat • Ctrl+S history • Ctrl+T model • Ctrl+O upload • Ctrl+L login • Ctrl+Q logout • Ctrl+C quit")

	parts := []string{title, modelLine, "", transcript, "", input}
	if m.status != "" {
		parts = append(parts, statusStyle.Render(m.status))
	}
	parts = append(parts, help)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderEntry renders one transcript block.
func renderEntry(e chat.Entry) string {
	switch e.Kind {
	case chat.EntryUser:
		return userMsgStyle.Render("You: " + e.Body)
	case chat.EntryLoading:
		return botMsgStyle.Render("...")
	case chat.EntryContext:
		return contextStyle.Render(formatContextInfo(e.Context))
	default:
		badge := badgeStyle.Render(modelLabel(e.Model))
		return botMsgStyle.Render(badge + " " + e.Body)
	}
}

// formatContextInfo renders RAG evidence: source question snippets with
// their similarity as a percentage.
func formatContextInfo(items []api.ContextItem) string {
	var b strings.Builder
	b.WriteString("Sources used for this answer:")
	for i, ctx := range items {
		if ctx.SimilarityScore == 0 {
			continue
		}
		question := ctx.OriginalQuestion
		if len(question) > 50 {
			question = question[:50] + "..."
		}
		score := int(math.Round(ctx.SimilarityScore * 100))
		b.WriteString(fmt.Sprintf("\n  %d. %q - %d%% match", i+1, question, score))
	}
	return b.String()
}

// modelLabel maps a model id to its display badge.
func modelLabel(model string) string {
	if model == chat.ModelRAG {
		return "RAG"
	}
	return "Gemini"
}

func availabilityNote(state chat.State) string {
	var down []string
	if !state.GeminiAvailable {
		down = append(down, "Gemini unavailable")
	}
	if !state.RAGAvailable {
		down = append(down, "RAG unavailable")
	}
	if len(down) == 0 {
		return ""
	}
	return "  (" + strings.Join(down, ", ") + ")"
}

func (m *Model) renderSidebar() string {
	state := m.ctrl.State()

	var b strings.Builder
	b.WriteString("Conversations\n")
	b.WriteString("Search: " + m.searchTerm + "\n\n")

	switch {
	case state.Guest:
		b.WriteString("Login to save your conversations\n")
		b.WriteString("Press Ctrl+L to login")
	case len(state.Sessions) == 0:
		b.WriteString("No conversations yet")
	default:
		visible := m.ctrl.FilterSessions(m.searchTerm)
		if len(visible) == 0 {
			b.WriteString("No matching conversations")
		}
		for i, s := range visible {
			b.WriteString(m.renderSessionItem(i, s, state.ActiveSessionID))
			b.WriteString("\n")
		}
	}

	help := helpStyle.Render("↑↓ select • Enter open • Ctrl+R rename • Ctrl+D delete • Ctrl+N new • type to search • Esc back")
	return lipgloss.JoinVertical(lipgloss.Left, sidebarStyle.Render(b.String()), help)
}

func (m *Model) renderSessionItem(index int, s api.Session, activeID string) string {
	title := s.Title
	if title == "" {
		title = "New Chat"
	}
	line := fmt.Sprintf("%s  %s", title, formatSessionDate(s.CreatedAt))

	if s.ID == activeID {
		line = activeSessionStyle.Render(line)
	}
	if index == m.selected {
		line = selectedSessionStyle.Render(line)
	}
	return line
}

// formatSessionDate shortens a server timestamp for the sidebar. Unknown
// formats pass through untouched.
func formatSessionDate(raw string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Format("Jan 2 15:04")
		}
	}
	return raw
}

func (m *Model) renderRenameModal() string {
	content := fmt.Sprintf("Rename conversation\n\nNew title: %s", m.renameInput)
	help := helpStyle.Render("Enter save • Esc cancel")
	return lipgloss.JoinVertical(lipgloss.Left, modalStyle.Render(content), help)
}

func (m *Model) renderDeleteModal() string {
	title := m.targetSession.Title
	if title == "" {
		title = "New Chat"
	}
	content := fmt.Sprintf("Delete conversation %q?\n\nThis cannot be undone.", title)
	help := helpStyle.Render("Y/Enter delete • N/Esc cancel")
	return lipgloss.JoinVertical(lipgloss.Left, modalStyle.Render(content), help)
}

func (m *Model) renderUploadPrompt() string {
	content := fmt.Sprintf("Upload a document for summarization\n\nFile path: %s", m.filePath)
	help := helpStyle.Render("Enter upload • Esc cancel")
	return lipgloss.JoinVertical(lipgloss.Left, modalStyle.Render(content), help)
}

func (m *Model) renderAuthForm(title string, form *validate.Form, help string) string {
	var b strings.Builder
	b.WriteString(title + "\n\n")

	for i, field := range form.Fields {
		cursor := "  "
		if i == m.focusField {
			cursor = "> "
		}
		value := field.Value
		if field.Mask {
			value = strings.Repeat("•", len(value))
		}
		b.WriteString(fmt.Sprintf("%s%s: %s\n", cursor, field.Label, value))
		if field.Error != "" {
			b.WriteString("    " + errorStyle.Render(field.Error) + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		modalStyle.Render(b.String()),
		helpStyle.Render("Tab next field • Enter submit • "+help),
	)
}

func (m *Model) renderChangePassword() string {
	base := m.renderAuthForm("Change Password", m.changeForm, "Ctrl+G login • Esc back")
	meter := renderStrengthMeter(m.changeForm.Value("newPassword"))
	return lipgloss.JoinVertical(lipgloss.Left, base, meter)
}

// renderStrengthMeter draws the password strength bar: width proportional
// to the 0-4 score, colored red, orange or green.
func renderStrengthMeter(password string) string {
	score := validate.Strength(password)
	const total = 20
	filled := validate.StrengthWidth(score) * total / 100

	bar := strings.Repeat("█", filled) + strings.Repeat("░", total-filled)
	return "Strength: " + lipgloss.NewStyle().
		Foreground(lipgloss.Color(validate.StrengthColor(score))).
		Render(bar)
}
