package chat

import (
	"medgpt/api"

	"go.uber.org/zap"
)

// EntryKind classifies a transcript entry.
type EntryKind int

const (
	EntryUser EntryKind = iota
	EntryBot
	EntryContext
	EntryLoading
)

// Entry is one rendered block of the chat transcript. Bot entries carry
// the model badge of the model that produced them; context entries carry
// the RAG evidence shown under a bot answer.
type Entry struct {
	ID      int
	Kind    EntryKind
	Model   string
	Body    string
	Context []api.ContextItem
}

// Welcome messages shown when a chat is empty, per model.
const (
	welcomeGemini = "Hello! I'm your Medical Assistant powered by Gemini. How can I help you today?"
	welcomeRAG    = "Hello! I'm your Medical Assistant using the RAG model specialized in medical knowledge. How can I help you today?"

	noModelsMessage = "No AI models are currently available. Please check your server configuration."
)

func welcomeFor(model string) string {
	if model == ModelRAG {
		return welcomeRAG
	}
	return welcomeGemini
}

// appendEntry adds an entry and returns its id.
func (c *Controller) appendEntry(e Entry) int {
	c.nextID++
	e.ID = c.nextID
	c.transcript = append(c.transcript, e)
	return e.ID
}

// removeEntry deletes the entry with the given id. A no-op when the entry
// is gone, which happens when the transcript was cleared while a request
// was in flight.
func (c *Controller) removeEntry(id int) {
	for i, e := range c.transcript {
		if e.ID == id {
			c.transcript = append(c.transcript[:i], c.transcript[i+1:]...)
			return
		}
	}
}

// clearTranscript empties the transcript and invalidates every in-flight
// completion that targets the old content.
func (c *Controller) clearTranscript() {
	c.transcript = nil
	c.gen++
}

// renderBody renders markdown, degrading to the raw text if the renderer
// fails. Rendering errors never reach the user.
func (c *Controller) renderBody(text string) string {
	out, err := c.renderer.Render(text)
	if err != nil {
		c.log.Warn("markdown rendering failed", zap.Error(err))
		return text
	}
	return out
}
