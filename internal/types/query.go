package types

import "github.com/google/uuid"

// Query is the caller-owned request payload. It is passed by value and never
// retained by the engine.
type Query struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content"`
}

// NewQuery returns a Query with a fresh random ID.
func NewQuery(content, sessionID string) Query {
	return Query{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Content:   content,
	}
}

// Answer is the annotated result of one dispatch.
type Answer struct {
	Content string `json:"content"`
	Mode    string `json:"mode"`
	Model   string `json:"model,omitempty"`
	// Passes is the number of agent calls the mode strategy made.
	Passes int `json:"passes"`
}
