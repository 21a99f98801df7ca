package api

import "encoding/json"

// Session is a server-side conversation thread. The server owns session
// identity; the client never invents ids.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// Message is a stored chat message as returned by the session endpoint.
type Message struct {
	Role        string `json:"role"`    // "user" or "bot"
	Content     string `json:"content"`
	Model       string `json:"model,omitempty"`
	ContextInfo string `json:"context_info,omitempty"` // JSON-encoded []ContextItem
}

// ContextItem is one piece of RAG evidence attached to a bot answer.
type ContextItem struct {
	OriginalQuestion string  `json:"original_question"`
	SimilarityScore  float64 `json:"similarity_score"`
}

// ParseContextInfo decodes the JSON-encoded context list stored on a
// message. Returns nil on empty input or malformed JSON; stored context is
// best-effort display data and a bad record must not break session loading.
func ParseContextInfo(raw string) []ContextItem {
	if raw == "" {
		return nil
	}
	var items []ContextItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

// SystemStatus reports availability of the two backend model providers.
type SystemStatus struct {
	RAGSystem bool `json:"rag_system"`
	GeminiAPI bool `json:"gemini_api"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// ChatResponse is the reply to a chat request. On the live path ContextInfo
// arrives as a structured list, unlike the stored form on Message.
type ChatResponse struct {
	Response    string        `json:"response"`
	ContextInfo []ContextItem `json:"context_info,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// NewSessionResponse is the reply to POST /api/chat/new.
type NewSessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionListResponse is the reply to GET /api/chat/sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// SessionMessagesResponse is the reply to GET /api/chat/session/{id}.
type SessionMessagesResponse struct {
	Messages []Message `json:"messages"`
}

// UploadResponse is the reply to POST /api/upload. Content holds the text
// extracted from the document server-side.
type UploadResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Error    string `json:"error,omitempty"`
}
