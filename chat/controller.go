// Package chat implements the session controller: it owns the active
// session, the in-memory session list and the rendered transcript, and
// mediates every read and write of chat state against the server.
package chat

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"medgpt/api"
	"medgpt/render"
)

// Model identifiers for the two backend providers.
const (
	ModelGemini = "gemini"
	ModelRAG    = "rag"
)

// Service is the server surface the controller depends on. *api.Client
// implements it; tests substitute fakes.
type Service interface {
	CheckSystemStatus(ctx context.Context) (*api.SystemStatus, error)
	NewSession(ctx context.Context) (*api.NewSessionResponse, error)
	SendMessage(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	ListSessions(ctx context.Context) ([]api.Session, error)
	GetSession(ctx context.Context, id string) ([]api.Message, error)
	RenameSession(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error
	UploadFile(ctx context.Context, filename string, r io.Reader) (*api.UploadResponse, error)
}

// State is the controller-owned client state. ActiveSessionID, when set,
// references a session from the last successfully fetched session list,
// or is empty immediately after that session was deleted.
type State struct {
	ActiveSessionID string
	CurrentModel    string
	Sessions        []api.Session
	Guest           bool
	GeminiAvailable bool
	RAGAvailable    bool
}

// Controller drives all chat interactions. Begin methods run on the event
// loop, mutate state synchronously and hand back a tea.Cmd for the network
// call; HandleMsg applies each call's completion. Nothing else mutates
// State or the transcript.
type Controller struct {
	svc      Service
	renderer render.Renderer
	log      *zap.Logger

	state      State
	transcript []Entry
	nextID     int

	// gen invalidates in-flight completions when the transcript they
	// targeted has been replaced (e.g. the user switched sessions while a
	// send was pending).
	gen int
}

// New creates a controller. defaultModel selects the initial provider.
func New(svc Service, renderer render.Renderer, logger *zap.Logger, defaultModel string) *Controller {
	if defaultModel != ModelRAG {
		defaultModel = ModelGemini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		svc:      svc,
		renderer: renderer,
		log:      logger,
		state:    State{CurrentModel: defaultModel, GeminiAvailable: true, RAGAvailable: true},
	}
}

// State returns a snapshot of the client state.
func (c *Controller) State() State {
	return c.state
}

// Transcript returns the entries to render, in order.
func (c *Controller) Transcript() []Entry {
	return c.transcript
}

// Init shows the welcome message and kicks off the startup requests.
func (c *Controller) Init() tea.Cmd {
	c.showWelcome()
	return tea.Batch(c.CheckSystemStatus(), c.LoadHistory())
}

// SetModel is the model-selector change handler. Switching models on an
// empty chat swaps the welcome message.
func (c *Controller) SetModel(model string) {
	if model != ModelGemini && model != ModelRAG {
		return
	}
	c.state.CurrentModel = model
	c.updateWelcome()
}

// ToggleModel flips between the two providers, skipping unavailable ones.
func (c *Controller) ToggleModel() {
	next := ModelRAG
	if c.state.CurrentModel == ModelRAG {
		next = ModelGemini
	}
	if next == ModelRAG && !c.state.RAGAvailable {
		return
	}
	if next == ModelGemini && !c.state.GeminiAvailable {
		return
	}
	c.SetModel(next)
}

// showWelcome appends the model-appropriate welcome message to an empty
// transcript.
func (c *Controller) showWelcome() {
	c.appendEntry(Entry{Kind: EntryBot, Model: c.state.CurrentModel, Body: welcomeFor(c.state.CurrentModel)})
}

// updateWelcome replaces the welcome message when the chat holds nothing
// but a welcome yet.
func (c *Controller) updateWelcome() {
	if len(c.transcript) <= 1 {
		c.clearTranscript()
		c.showWelcome()
	}
}

// CheckSystemStatus queries availability of the two backend providers.
func (c *Controller) CheckSystemStatus() tea.Cmd {
	return func() tea.Msg {
		status, err := c.svc.CheckSystemStatus(context.Background())
		return StatusCheckedMsg{Status: status, Err: err}
	}
}

// NewChat requests a new session from the server. Session ids are only
// ever created server-side.
func (c *Controller) NewChat() tea.Cmd {
	return func() tea.Msg {
		resp, err := c.svc.NewSession(context.Background())
		if err != nil {
			return SessionCreatedMsg{Err: err}
		}
		return SessionCreatedMsg{ID: resp.SessionID}
	}
}

// SendMessage appends the user bubble and a loading placeholder, then
// issues the chat request. Blank input is a no-op.
func (c *Controller) SendMessage(text string) tea.Cmd {
	message := strings.TrimSpace(text)
	if message == "" {
		return nil
	}

	c.appendEntry(Entry{Kind: EntryUser, Body: message})
	return c.dispatchChat(message, chatSourceSend)
}

// UploadFile uploads the document at path, then feeds the extracted text
// through the chat path for summarization. An empty path is a no-op.
func (c *Controller) UploadFile(path string) tea.Cmd {
	if path == "" {
		return nil
	}

	filename := filepath.Base(path)
	c.appendEntry(Entry{Kind: EntryUser, Body: fmt.Sprintf("Uploading file: %s...", filename)})

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return UploadResultMsg{Filename: filename, Err: err}
		}
		defer f.Close()

		resp, err := c.svc.UploadFile(context.Background(), filename, f)
		return UploadResultMsg{Filename: filename, Resp: resp, Err: err}
	}
}

// LoadHistory fetches the session list for the sidebar. History display is
// best-effort and never blocks the chat path.
func (c *Controller) LoadHistory() tea.Cmd {
	return func() tea.Msg {
		sessions, err := c.svc.ListSessions(context.Background())
		return HistoryLoadedMsg{Sessions: sessions, Err: err}
	}
}

// LoadSession fetches and renders the full history of one session.
func (c *Controller) LoadSession(id string) tea.Cmd {
	return func() tea.Msg {
		messages, err := c.svc.GetSession(context.Background(), id)
		return SessionLoadedMsg{ID: id, Messages: messages, Err: err}
	}
}

// RenameSession sets a new title on a session.
func (c *Controller) RenameSession(id, title string) tea.Cmd {
	return func() tea.Msg {
		err := c.svc.RenameSession(context.Background(), id, title)
		return SessionRenamedMsg{ID: id, Err: err}
	}
}

// DeleteSession removes a session.
func (c *Controller) DeleteSession(id string) tea.Cmd {
	return func() tea.Msg {
		err := c.svc.DeleteSession(context.Background(), id)
		return SessionDeletedMsg{ID: id, Err: err}
	}
}

// FilterSessions returns the sessions whose title contains term,
// case-insensitive. Purely local; the underlying list is untouched and no
// network call is made.
func (c *Controller) FilterSessions(term string) []api.Session {
	if term == "" {
		return c.state.Sessions
	}
	term = strings.ToLower(term)
	var visible []api.Session
	for _, s := range c.state.Sessions {
		if strings.Contains(strings.ToLower(s.Title), term) {
			visible = append(visible, s)
		}
	}
	return visible
}

// dispatchChat appends a loading placeholder and issues the chat request
// with the currently selected model. The placeholder id and generation are
// captured so the completion only ever touches its own placeholder, and is
// discarded wholesale if the transcript was replaced meanwhile.
func (c *Controller) dispatchChat(message string, source chatSource) tea.Cmd {
	placeholderID := c.appendEntry(Entry{Kind: EntryLoading})
	gen := c.gen
	model := c.state.CurrentModel

	return func() tea.Msg {
		resp, err := c.svc.SendMessage(context.Background(), &api.ChatRequest{
			Message: message,
			Model:   model,
		})
		return ChatResultMsg{
			Gen:           gen,
			PlaceholderID: placeholderID,
			Model:         model,
			Source:        source,
			Resp:          resp,
			Err:           err,
		}
	}
}
