package chat

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"medgpt/api"
)

// chatSource distinguishes the two paths that feed the chat endpoint, so
// application errors carry the right prefix.
type chatSource int

const (
	chatSourceSend chatSource = iota
	chatSourceUpload
)

// StatusCheckedMsg carries the system status response.
type StatusCheckedMsg struct {
	Status *api.SystemStatus
	Err    error
}

// SessionCreatedMsg carries the result of creating a new session.
type SessionCreatedMsg struct {
	ID  string
	Err error
}

// ChatResultMsg carries the completion of a chat request.
type ChatResultMsg struct {
	Gen           int
	PlaceholderID int
	Model         string
	Source        chatSource
	Resp          *api.ChatResponse
	Err           error
}

// UploadResultMsg carries the completion of a file upload.
type UploadResultMsg struct {
	Filename string
	Resp     *api.UploadResponse
	Err      error
}

// HistoryLoadedMsg carries the fetched session list.
type HistoryLoadedMsg struct {
	Sessions []api.Session
	Err      error
}

// SessionLoadedMsg carries the fetched history of one session.
type SessionLoadedMsg struct {
	ID       string
	Messages []api.Message
	Err      error
}

// SessionRenamedMsg carries the result of a rename call.
type SessionRenamedMsg struct {
	ID  string
	Err error
}

// SessionDeletedMsg carries the result of a delete call.
type SessionDeletedMsg struct {
	ID  string
	Err error
}

// LoginRequiredMsg tells the UI the server rejected the user as
// unauthenticated and the login view should take over.
type LoginRequiredMsg struct{}

// HandleMsg applies a completed call to controller state and the
// transcript, and returns any follow-up command. Messages it does not know
// are ignored, so the UI can route everything through here first.
func (c *Controller) HandleMsg(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case StatusCheckedMsg:
		return c.handleStatusChecked(msg)
	case SessionCreatedMsg:
		return c.handleSessionCreated(msg)
	case ChatResultMsg:
		return c.handleChatResult(msg)
	case UploadResultMsg:
		return c.handleUploadResult(msg)
	case HistoryLoadedMsg:
		return c.handleHistoryLoaded(msg)
	case SessionLoadedMsg:
		return c.handleSessionLoaded(msg)
	case SessionRenamedMsg:
		return c.handleSessionRenamed(msg)
	case SessionDeletedMsg:
		return c.handleSessionDeleted(msg)
	}
	return nil
}

func (c *Controller) handleStatusChecked(msg StatusCheckedMsg) tea.Cmd {
	if msg.Err != nil {
		c.log.Error("error checking system status", zap.Error(msg.Err))
		return nil
	}

	c.state.RAGAvailable = msg.Status.RAGSystem
	c.state.GeminiAvailable = msg.Status.GeminiAPI

	// Fall back to the other provider when the selected one is down
	if c.state.CurrentModel == ModelRAG && !msg.Status.RAGSystem && msg.Status.GeminiAPI {
		c.SetModel(ModelGemini)
	}
	if c.state.CurrentModel == ModelGemini && !msg.Status.GeminiAPI && msg.Status.RAGSystem {
		c.SetModel(ModelRAG)
	}

	if !msg.Status.RAGSystem && !msg.Status.GeminiAPI {
		// Plain text, not markdown
		c.appendEntry(Entry{Kind: EntryBot, Model: c.state.CurrentModel, Body: noModelsMessage})
	}
	return nil
}

func (c *Controller) handleSessionCreated(msg SessionCreatedMsg) tea.Cmd {
	if msg.Err != nil {
		if errors.Is(msg.Err, api.ErrUnauthorized) {
			return func() tea.Msg { return LoginRequiredMsg{} }
		}
		c.log.Error("error creating new chat", zap.Error(msg.Err))
		return nil
	}
	if msg.ID == "" {
		return nil
	}

	c.clearTranscript()
	c.state.ActiveSessionID = msg.ID
	c.showWelcome()
	return c.LoadHistory()
}

func (c *Controller) handleChatResult(msg ChatResultMsg) tea.Cmd {
	if msg.Gen != c.gen {
		// The transcript this send targeted is gone; drop the response.
		c.log.Info("discarding stale chat response", zap.Int("gen", msg.Gen))
		return nil
	}

	c.removeEntry(msg.PlaceholderID)

	switch {
	case msg.Err != nil:
		c.log.Error("error in chat request", zap.Error(msg.Err))
		c.appendEntry(Entry{
			Kind:  EntryBot,
			Model: msg.Model,
			Body:  fmt.Sprintf("Sorry, there was a connection error: %v. Please check the log for more details.", msg.Err),
		})
	case msg.Resp.Error != "":
		// Application errors render as plain text, never markdown
		prefix := "Sorry, I encountered an error: "
		if msg.Source == chatSourceUpload {
			prefix = "Error analyzing document: "
		}
		c.appendEntry(Entry{Kind: EntryBot, Model: msg.Model, Body: prefix + msg.Resp.Error})
	default:
		c.appendEntry(Entry{Kind: EntryBot, Model: msg.Model, Body: c.renderBody(msg.Resp.Response)})
		if len(msg.Resp.ContextInfo) > 0 {
			c.appendEntry(Entry{Kind: EntryContext, Context: msg.Resp.ContextInfo})
		}
	}

	// Titles and timestamps may have changed server-side
	return c.LoadHistory()
}

func (c *Controller) handleUploadResult(msg UploadResultMsg) tea.Cmd {
	switch {
	case msg.Err != nil:
		c.log.Error("error in file upload", zap.Error(msg.Err))
		c.appendEntry(Entry{Kind: EntryBot, Model: c.state.CurrentModel, Body: fmt.Sprintf("Failed to upload file: %v", msg.Err)})
		return nil
	case msg.Resp.Error != "":
		c.appendEntry(Entry{Kind: EntryBot, Model: c.state.CurrentModel, Body: "Error processing file: " + msg.Resp.Error})
		return nil
	}

	c.appendEntry(Entry{
		Kind:  EntryBot,
		Model: c.state.CurrentModel,
		Body:  fmt.Sprintf("I've received your %s. Here's a summary of its contents:", msg.Filename),
	})

	prompt := fmt.Sprintf("Summarize this medical document and highlight key findings:\n\n%s", msg.Resp.Content)
	return c.dispatchChat(prompt, chatSourceUpload)
}

func (c *Controller) handleHistoryLoaded(msg HistoryLoadedMsg) tea.Cmd {
	if msg.Err != nil {
		if errors.Is(msg.Err, api.ErrUnauthorized) {
			// Guest user: the sidebar shows a login prompt instead
			c.state.Guest = true
			c.state.Sessions = nil
			return nil
		}
		c.log.Error("error loading chat history", zap.Error(msg.Err))
		return nil
	}

	c.state.Guest = false
	c.state.Sessions = msg.Sessions

	// With no active session, auto-load the most recent one
	if c.state.ActiveSessionID == "" && len(msg.Sessions) > 0 {
		return c.LoadSession(msg.Sessions[0].ID)
	}
	return nil
}

func (c *Controller) handleSessionLoaded(msg SessionLoadedMsg) tea.Cmd {
	if msg.Err != nil {
		c.log.Error("error loading session", zap.String("session_id", msg.ID), zap.Error(msg.Err))
		return nil
	}

	c.clearTranscript()
	c.state.ActiveSessionID = msg.ID

	if len(msg.Messages) == 0 {
		c.showWelcome()
		return nil
	}

	for _, m := range msg.Messages {
		if m.Role == "user" {
			c.appendEntry(Entry{Kind: EntryUser, Body: m.Content})
			continue
		}

		model := m.Model
		if model == "" {
			model = ModelGemini
		}
		// The selector tracks the model that produced the last bot message
		c.state.CurrentModel = model

		c.appendEntry(Entry{Kind: EntryBot, Model: model, Body: c.renderBody(m.Content)})

		// Stored context is a JSON string; parse failures are swallowed
		if items := api.ParseContextInfo(m.ContextInfo); len(items) > 0 {
			c.appendEntry(Entry{Kind: EntryContext, Context: items})
		}
	}
	return nil
}

func (c *Controller) handleSessionRenamed(msg SessionRenamedMsg) tea.Cmd {
	if msg.Err != nil {
		c.log.Error("error renaming session", zap.String("session_id", msg.ID), zap.Error(msg.Err))
		return nil
	}
	return c.LoadHistory()
}

func (c *Controller) handleSessionDeleted(msg SessionDeletedMsg) tea.Cmd {
	if msg.Err != nil {
		c.log.Error("error deleting session", zap.String("session_id", msg.ID), zap.Error(msg.Err))
		return nil
	}

	if msg.ID == c.state.ActiveSessionID {
		c.clearTranscript()
		c.state.ActiveSessionID = ""
		c.showWelcome()
	}
	return c.LoadHistory()
}
