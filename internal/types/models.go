// internal/types/models.go
package types

import "time"

// ThreadRecord remembers which remote thread a named session is pinned to.
type ThreadRecord struct {
	SessionKey  SessionKey  `json:"session_key"`
	ThreadID    ThreadID    `json:"thread_id"`
	AssistantID AssistantID `json:"assistant_id"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
