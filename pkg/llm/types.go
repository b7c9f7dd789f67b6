package llm

import (
	"encoding/json"
	"fmt"
)

// Well-known values used by the assistants API.
const (
	RoleUser            = "user"
	PurposeAssistants   = "assistants"
	ToolCodeInterpreter = "code_interpreter"
)

// Thread is a remote conversation context.
type Thread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// File is a handle to a file accepted by the remote service. It is immutable
// once created and may be attached to any number of messages.
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Purpose  string `json:"purpose"`
}

// ToolSpec names a tool an attachment is made available to.
type ToolSpec struct {
	Type string `json:"type"`
}

// Attachment binds an uploaded file to the tools that may read it.
type Attachment struct {
	FileID string     `json:"file_id"`
	Tools  []ToolSpec `json:"tools"`
}

// MessageParams is the body of a create-message request.
type MessageParams struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Message is the accepted message as echoed back by the service.
type Message struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Role     string `json:"role"`
}

// StreamEvent is one raw server-sent event from a streaming run.
// Name is the SSE event name (e.g. "thread.message.delta") and Data the
// undecoded JSON payload.
type StreamEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// APIError is returned when the service answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}
