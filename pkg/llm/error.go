package llm

// ErrorResponse is returned to clients when a relay call fails.
type ErrorResponse struct {
	Success bool   `json:"success"` // Always false
	Error   string `json:"error"`   // Human-readable failure description
}
