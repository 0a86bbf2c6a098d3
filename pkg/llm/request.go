package llm

// ChatRequest is the body clients POST to /api/chat.
// The full conversation is supplied on every call; the relay keeps no history.
type ChatRequest struct {
	Messages []Message `json:"messages"` // Conversation, oldest turn first
}
