package models

import "time"

// ChatRequest is the inbound body of POST /api/chat.
type ChatRequest struct {
	Question string `json:"question"`
	Persona  string `json:"persona,omitempty"`
}

// ChatResponse is returned for every admitted question, including fallbacks.
type ChatResponse struct {
	Response  string    `json:"response"`
	Persona   string    `json:"persona"`
	Cached    bool      `json:"cached"`
	Fallback  bool      `json:"fallback"`
	InScope   bool      `json:"in_scope"`
	Category  string    `json:"category,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PersonaInfo is the presentation metadata exposed by GET /api/personas.
type PersonaInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}
