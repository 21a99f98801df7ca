package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"medgpt/api"
)

// fakeService records calls and returns canned responses.
type fakeService struct {
	status       *api.SystemStatus
	newSessionID string
	chatResp     *api.ChatResponse
	chatErr      error
	sessions     []api.Session
	sessionsErr  error
	messages     map[string][]api.Message
	uploadResp   *api.UploadResponse
	uploadErr    error
	renameErr    error
	deleteErr    error

	chatCalls   []api.ChatRequest
	listCalls   int
	renameCalls int
	deleteCalls int
}

func (f *fakeService) CheckSystemStatus(ctx context.Context) (*api.SystemStatus, error) {
	if f.status == nil {
		return &api.SystemStatus{RAGSystem: true, GeminiAPI: true}, nil
	}
	return f.status, nil
}

func (f *fakeService) NewSession(ctx context.Context) (*api.NewSessionResponse, error) {
	if f.newSessionID == "" {
		return nil, api.ErrUnauthorized
	}
	return &api.NewSessionResponse{SessionID: f.newSessionID}, nil
}

func (f *fakeService) SendMessage(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	f.chatCalls = append(f.chatCalls, *req)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.chatResp == nil {
		return &api.ChatResponse{Response: "ok"}, nil
	}
	return f.chatResp, nil
}

func (f *fakeService) ListSessions(ctx context.Context) ([]api.Session, error) {
	f.listCalls++
	return f.sessions, f.sessionsErr
}

func (f *fakeService) GetSession(ctx context.Context, id string) ([]api.Message, error) {
	msgs, ok := f.messages[id]
	if !ok {
		return nil, &api.APIError{StatusCode: 404}
	}
	return msgs, nil
}

func (f *fakeService) RenameSession(ctx context.Context, id, title string) error {
	f.renameCalls++
	return f.renameErr
}

func (f *fakeService) DeleteSession(ctx context.Context, id string) error {
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeService) UploadFile(ctx context.Context, filename string, r io.Reader) (*api.UploadResponse, error) {
	return f.uploadResp, f.uploadErr
}

// failRenderer always errors, to exercise the plain-text fallback.
type failRenderer struct{}

func (failRenderer) Render(text string) (string, error) {
	return "", errors.New("render failed")
}

// plainRenderer returns input unchanged.
type plainRenderer struct{}

func (plainRenderer) Render(text string) (string, error) {
	return text, nil
}

func newTestController(svc Service) *Controller {
	return New(svc, plainRenderer{}, nil, ModelGemini)
}

// run executes a command and feeds the resulting message back through the
// controller, the way the TUI event loop would.
func run(t *testing.T, c *Controller, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if msg == nil {
		return nil
	}
	c.HandleMsg(msg)
	return msg
}

func countKind(entries []Entry, kind EntryKind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestSendMessageAppendsUserAndBotBubble(t *testing.T) {
	svc := &fakeService{chatResp: &api.ChatResponse{Response: "the answer"}}
	c := newTestController(svc)

	cmd := c.SendMessage("what is aspirin?")
	if cmd == nil {
		t.Fatal("expected a command for non-empty message")
	}

	// Optimistic update: user bubble and loading placeholder are already in
	if countKind(c.Transcript(), EntryUser) != 1 {
		t.Fatal("expected one user bubble before completion")
	}
	if countKind(c.Transcript(), EntryLoading) != 1 {
		t.Fatal("expected a loading placeholder before completion")
	}

	run(t, c, cmd)

	if countKind(c.Transcript(), EntryLoading) != 0 {
		t.Error("expected loading placeholder removed after completion")
	}
	if countKind(c.Transcript(), EntryUser) != 1 {
		t.Error("expected exactly one user bubble")
	}
	if countKind(c.Transcript(), EntryBot) != 1 {
		t.Error("expected exactly one bot bubble")
	}
	if len(svc.chatCalls) != 1 || svc.chatCalls[0].Model != ModelGemini {
		t.Errorf("unexpected chat calls: %+v", svc.chatCalls)
	}
}

func TestSendMessageBlankIsNoOp(t *testing.T) {
	svc := &fakeService{}
	c := newTestController(svc)

	for _, text := range []string{"", "   ", "\n\t "} {
		if cmd := c.SendMessage(text); cmd != nil {
			t.Errorf("SendMessage(%q): expected nil command", text)
		}
	}
	if len(c.Transcript()) != 0 {
		t.Error("expected no transcript change for blank input")
	}
	if len(svc.chatCalls) != 0 {
		t.Error("expected no network call for blank input")
	}
}

func TestSendMessageApplicationError(t *testing.T) {
	svc := &fakeService{chatResp: &api.ChatResponse{Error: "model overloaded"}}
	c := newTestController(svc)

	run(t, c, c.SendMessage("hi"))

	bots := 0
	for _, e := range c.Transcript() {
		if e.Kind == EntryBot {
			bots++
			if !strings.Contains(e.Body, "Sorry, I encountered an error: model overloaded") {
				t.Errorf("unexpected error body: %q", e.Body)
			}
		}
	}
	if bots != 1 {
		t.Errorf("expected one error bubble, got %d", bots)
	}
	if countKind(c.Transcript(), EntryLoading) != 0 {
		t.Error("expected placeholder removed on error path")
	}
}

func TestSendMessageTransportError(t *testing.T) {
	svc := &fakeService{chatErr: errors.New("connection refused")}
	c := newTestController(svc)

	run(t, c, c.SendMessage("hi"))

	if countKind(c.Transcript(), EntryLoading) != 0 {
		t.Error("expected placeholder removed on transport failure")
	}
	found := false
	for _, e := range c.Transcript() {
		if e.Kind == EntryBot && strings.Contains(e.Body, "connection error") && strings.Contains(e.Body, "connection refused") {
			found = true
		}
	}
	if !found {
		t.Error("expected a connection error bubble with the failure detail")
	}
}

func TestSendMessageRefreshesHistory(t *testing.T) {
	svc := &fakeService{chatResp: &api.ChatResponse{Response: "ok"}}
	c := newTestController(svc)

	msg := c.SendMessage("hi")()
	follow := c.HandleMsg(msg)
	if follow == nil {
		t.Fatal("expected a history refresh command after send")
	}
	follow()
	if svc.listCalls != 1 {
		t.Errorf("expected one session list call, got %d", svc.listCalls)
	}

	// Failure path refreshes too
	svc.chatErr = errors.New("boom")
	msg = c.SendMessage("hi again")()
	follow = c.HandleMsg(msg)
	if follow == nil {
		t.Fatal("expected a history refresh command after failed send")
	}
}

func TestSendMessageRendersContextInfo(t *testing.T) {
	svc := &fakeService{chatResp: &api.ChatResponse{
		Response: "answer",
		ContextInfo: []api.ContextItem{
			{OriginalQuestion: "what is aspirin", SimilarityScore: 0.92},
		},
	}}
	c := New(svc, plainRenderer{}, nil, ModelRAG)

	run(t, c, c.SendMessage("hi"))

	if countKind(c.Transcript(), EntryContext) != 1 {
		t.Fatal("expected one context entry")
	}
	for _, e := range c.Transcript() {
		if e.Kind == EntryContext && e.Context[0].SimilarityScore != 0.92 {
			t.Errorf("unexpected context: %+v", e.Context)
		}
		if e.Kind == EntryBot && e.Model != ModelRAG {
			t.Errorf("expected rag badge, got %q", e.Model)
		}
	}
}

func TestStaleChatResponseDiscarded(t *testing.T) {
	svc := &fakeService{chatResp: &api.ChatResponse{Response: "late answer"}}
	c := newTestController(svc)

	cmd := c.SendMessage("hi")
	msg := cmd().(ChatResultMsg)

	// The user switches sessions before the response lands
	svc.messages = map[string][]api.Message{"s1": {{Role: "user", Content: "old"}}}
	run(t, c, c.LoadSession("s1"))
	before := len(c.Transcript())

	if follow := c.HandleMsg(msg); follow != nil {
		t.Error("expected no follow-up for a stale response")
	}
	if len(c.Transcript()) != before {
		t.Error("expected stale response to leave the transcript untouched")
	}
}

func TestMarkdownFallbackOnRenderError(t *testing.T) {
	svc := &fakeService{chatResp: &api.ChatResponse{Response: "**raw markdown**"}}
	c := New(svc, failRenderer{}, nil, ModelGemini)

	run(t, c, c.SendMessage("hi"))

	found := false
	for _, e := range c.Transcript() {
		if e.Kind == EntryBot && e.Body == "**raw markdown**" {
			found = true
		}
	}
	if !found {
		t.Error("expected raw text fallback when rendering fails")
	}
}

func TestNewChat(t *testing.T) {
	svc := &fakeService{newSessionID: "fresh"}
	c := newTestController(svc)
	c.Init()

	msg := c.NewChat()()
	c.HandleMsg(msg)

	if c.State().ActiveSessionID != "fresh" {
		t.Errorf("expected active session 'fresh', got %q", c.State().ActiveSessionID)
	}
	// Transcript holds only the welcome message
	entries := c.Transcript()
	if len(entries) != 1 || entries[0].Kind != EntryBot {
		t.Fatalf("expected a single welcome entry, got %d entries", len(entries))
	}
	if !strings.Contains(entries[0].Body, "powered by Gemini") {
		t.Errorf("unexpected welcome message: %q", entries[0].Body)
	}
}

func TestNewChatUnauthorized(t *testing.T) {
	svc := &fakeService{} // empty newSessionID -> 401
	c := newTestController(svc)

	msg := c.NewChat()()
	follow := c.HandleMsg(msg)
	if follow == nil {
		t.Fatal("expected a follow-up command for 401")
	}
	if _, ok := follow().(LoginRequiredMsg); !ok {
		t.Error("expected LoginRequiredMsg for 401 on new chat")
	}
	if c.State().ActiveSessionID != "" {
		t.Error("expected no session mutation on 401")
	}
}

func TestLoadHistoryAutoLoadsMostRecent(t *testing.T) {
	svc := &fakeService{
		sessions: []api.Session{
			{ID: "s2", Title: "Recent"},
			{ID: "s1", Title: "Older"},
		},
		messages: map[string][]api.Message{
			"s2": {{Role: "user", Content: "q"}, {Role: "bot", Content: "a", Model: "rag"}},
		},
	}
	c := newTestController(svc)

	msg := c.LoadHistory()()
	follow := c.HandleMsg(msg)
	if follow == nil {
		t.Fatal("expected auto-load of the most recent session")
	}
	run(t, c, follow)

	state := c.State()
	if state.ActiveSessionID != "s2" {
		t.Errorf("expected active session 's2', got %q", state.ActiveSessionID)
	}
	// The selector follows the model of the last bot message
	if state.CurrentModel != ModelRAG {
		t.Errorf("expected model 'rag' after load, got %q", state.CurrentModel)
	}
}

func TestLoadHistoryKeepsActiveSession(t *testing.T) {
	svc := &fakeService{sessions: []api.Session{{ID: "s1"}}}
	c := newTestController(svc)
	c.state.ActiveSessionID = "s1"

	msg := c.LoadHistory()()
	if follow := c.HandleMsg(msg); follow != nil {
		t.Error("expected no auto-load when a session is already active")
	}
}

func TestLoadHistoryGuest(t *testing.T) {
	svc := &fakeService{sessionsErr: api.ErrUnauthorized}
	c := newTestController(svc)

	msg := c.LoadHistory()()
	c.HandleMsg(msg)

	if !c.State().Guest {
		t.Error("expected guest mode after 401 on history")
	}
	if c.State().Sessions != nil {
		t.Error("expected empty session list in guest mode")
	}
}

func TestLoadSessionEmptyShowsWelcome(t *testing.T) {
	svc := &fakeService{messages: map[string][]api.Message{"empty": {}}}
	c := newTestController(svc)

	run(t, c, c.LoadSession("empty"))

	entries := c.Transcript()
	if len(entries) != 1 || entries[0].Kind != EntryBot {
		t.Fatalf("expected a single welcome entry, got %d", len(entries))
	}
}

func TestLoadSessionRendersStoredContext(t *testing.T) {
	svc := &fakeService{messages: map[string][]api.Message{
		"s1": {
			{Role: "user", Content: "q"},
			{Role: "bot", Content: "a", Model: "rag", ContextInfo: `[{"original_question":"x","similarity_score":0.7}]`},
			{Role: "bot", Content: "b", ContextInfo: `{bad json`},
		},
	}}
	c := newTestController(svc)

	run(t, c, c.LoadSession("s1"))

	if countKind(c.Transcript(), EntryContext) != 1 {
		t.Error("expected one context entry; malformed context is swallowed")
	}
	// Last bot message has no model, so the selector defaults to gemini
	if c.State().CurrentModel != ModelGemini {
		t.Errorf("expected model 'gemini', got %q", c.State().CurrentModel)
	}
}

func TestDeleteActiveSessionClearsLog(t *testing.T) {
	svc := &fakeService{messages: map[string][]api.Message{
		"s1": {{Role: "user", Content: "q"}, {Role: "bot", Content: "a"}},
	}}
	c := newTestController(svc)
	run(t, c, c.LoadSession("s1"))

	msg := c.DeleteSession("s1")()
	c.HandleMsg(msg)

	if c.State().ActiveSessionID != "" {
		t.Errorf("expected active session cleared, got %q", c.State().ActiveSessionID)
	}
	entries := c.Transcript()
	if len(entries) != 1 || !strings.Contains(entries[0].Body, "Medical Assistant") {
		t.Error("expected transcript reset to a fresh welcome message")
	}
}

func TestDeleteInactiveSessionLeavesLog(t *testing.T) {
	svc := &fakeService{messages: map[string][]api.Message{
		"s1": {{Role: "user", Content: "q"}, {Role: "bot", Content: "a"}},
	}}
	c := newTestController(svc)
	run(t, c, c.LoadSession("s1"))
	before := len(c.Transcript())

	msg := c.DeleteSession("other")()
	c.HandleMsg(msg)

	if c.State().ActiveSessionID != "s1" {
		t.Error("expected active session unchanged")
	}
	if len(c.Transcript()) != before {
		t.Error("expected transcript untouched when deleting a non-active session")
	}
}

func TestRenameFailureLeavesStateUnchanged(t *testing.T) {
	svc := &fakeService{renameErr: errors.New("boom")}
	c := newTestController(svc)

	msg := c.RenameSession("s1", "New title")()
	if follow := c.HandleMsg(msg); follow != nil {
		t.Error("expected no history refresh after failed rename")
	}
}

func TestFilterSessions(t *testing.T) {
	svc := &fakeService{}
	c := newTestController(svc)
	c.state.Sessions = []api.Session{
		{ID: "1", Title: "Foo consultation"},
		{ID: "2", Title: "Blood test results"},
		{ID: "3", Title: "FOOD allergies"},
	}

	visible := c.FilterSessions("foo")
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible sessions, got %d", len(visible))
	}
	if visible[0].ID != "1" || visible[1].ID != "3" {
		t.Errorf("unexpected filter result: %+v", visible)
	}

	// Empty term shows everything; the underlying list is never altered
	if len(c.FilterSessions("")) != 3 {
		t.Error("expected all sessions for empty term")
	}
	if len(c.State().Sessions) != 3 {
		t.Error("expected underlying session list untouched")
	}
}

func TestSystemStatusFallback(t *testing.T) {
	svc := &fakeService{status: &api.SystemStatus{RAGSystem: false, GeminiAPI: true}}
	c := New(svc, plainRenderer{}, nil, ModelRAG)

	run(t, c, c.CheckSystemStatus())

	state := c.State()
	if state.RAGAvailable {
		t.Error("expected rag marked unavailable")
	}
	if state.CurrentModel != ModelGemini {
		t.Errorf("expected fallback to gemini, got %q", state.CurrentModel)
	}
}

func TestSystemStatusBothDown(t *testing.T) {
	svc := &fakeService{status: &api.SystemStatus{}}
	c := newTestController(svc)

	run(t, c, c.CheckSystemStatus())

	found := false
	for _, e := range c.Transcript() {
		if e.Kind == EntryBot && strings.Contains(e.Body, "No AI models are currently available") {
			found = true
		}
	}
	if !found {
		t.Error("expected an error message when both providers are down")
	}
}

func TestUploadFlow(t *testing.T) {
	svc := &fakeService{
		uploadResp: &api.UploadResponse{Content: "EXTRACTED TEXT"},
		chatResp:   &api.ChatResponse{Response: "summary of the document"},
	}
	c := newTestController(svc)

	// Simulate the completion of an already-dispatched upload
	c.appendEntry(Entry{Kind: EntryUser, Body: "Uploading file: report.pdf..."})
	follow := c.HandleMsg(UploadResultMsg{Filename: "report.pdf", Resp: svc.uploadResp})
	if follow == nil {
		t.Fatal("expected a summarization command after upload success")
	}

	// Acknowledgment message present, then summarization goes through chat
	ack := false
	for _, e := range c.Transcript() {
		if e.Kind == EntryBot && strings.Contains(e.Body, "I've received your report.pdf") {
			ack = true
		}
	}
	if !ack {
		t.Error("expected an acknowledgment message")
	}

	run(t, c, follow)
	if len(svc.chatCalls) != 1 {
		t.Fatalf("expected one chat call, got %d", len(svc.chatCalls))
	}
	if !strings.Contains(svc.chatCalls[0].Message, "Summarize this medical document") {
		t.Errorf("unexpected summarization prompt: %q", svc.chatCalls[0].Message)
	}
	if !strings.Contains(svc.chatCalls[0].Message, "EXTRACTED TEXT") {
		t.Error("expected extracted text embedded in the prompt")
	}
}

func TestUploadFailureStops(t *testing.T) {
	svc := &fakeService{uploadErr: &api.APIError{StatusCode: 400, Message: "File type not allowed"}}
	c := newTestController(svc)

	follow := c.HandleMsg(UploadResultMsg{Filename: "evil.exe", Err: svc.uploadErr})
	if follow != nil {
		t.Error("expected no summarization after upload failure")
	}

	found := false
	for _, e := range c.Transcript() {
		if e.Kind == EntryBot && strings.Contains(e.Body, "File type not allowed") {
			found = true
		}
	}
	if !found {
		t.Error("expected the parsed server error in the failure message")
	}
	if len(svc.chatCalls) != 0 {
		t.Error("expected no chat call after failed upload")
	}
}

func TestUploadEmptyPathIsNoOp(t *testing.T) {
	c := newTestController(&fakeService{})
	if cmd := c.UploadFile(""); cmd != nil {
		t.Error("expected nil command for empty path")
	}
	if len(c.Transcript()) != 0 {
		t.Error("expected no transcript change")
	}
}

func TestModelSwitchUpdatesWelcome(t *testing.T) {
	c := newTestController(&fakeService{})
	c.showWelcome()

	c.SetModel(ModelRAG)

	entries := c.Transcript()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if !strings.Contains(entries[0].Body, "RAG model") {
		t.Errorf("expected rag welcome message, got %q", entries[0].Body)
	}
}
