// internal/types/ids.go
package types

import "github.com/google/uuid"

type SessionKey string
type ThreadID string
type AssistantID string
type StagingID string

// DefaultSessionKey names the session used when none is given.
const DefaultSessionKey SessionKey = "default"

func NewStagingID() StagingID {
	return StagingID(uuid.New().String())
}
