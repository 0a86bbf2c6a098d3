package llm

// Conversation roles understood by the upstream completion API.
// Roles are not validated by the relay; any string is forwarded as-is.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The turn's text
}
