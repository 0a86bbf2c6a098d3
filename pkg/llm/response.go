package llm

// ChatResponse is returned to clients when a relay call succeeds.
type ChatResponse struct {
	Success bool   `json:"success"` // Always true
	Message string `json:"message"` // The generated reply text
}
