// internal/types/interfaces.go
package types

import "context"

// ThreadStore remembers the thread each named session is pinned to.
type ThreadStore interface {
	Lookup(ctx context.Context, key SessionKey) (*ThreadRecord, bool, error)
	Pin(ctx context.Context, key SessionKey, thread ThreadID, assistant AssistantID) error
	List(ctx context.Context) ([]*ThreadRecord, error)
	Forget(ctx context.Context, key SessionKey) error
}
