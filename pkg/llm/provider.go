package llm

import (
	"context"
	"io"
)

// Service defines the capabilities consumed from a remote assistant backend.
// Implementations handle protocol-specific details such as request formatting,
// authentication, and response parsing.
type Service interface {
	// CreateThread creates a new, empty conversation thread.
	CreateThread(ctx context.Context) (*Thread, error)

	// GetThread retrieves an existing thread. It fails if the thread is unknown.
	GetThread(ctx context.Context, id string) (*Thread, error)

	// UploadFile uploads content for the given purpose and returns its handle.
	UploadFile(ctx context.Context, filename string, content io.Reader, purpose string) (*File, error)

	// CreateMessage appends a message to a thread.
	CreateMessage(ctx context.Context, threadID string, params MessageParams) (*Message, error)

	// StreamRun starts a run of the assistant on the thread and returns its
	// live event stream. The caller must Close the stream.
	StreamRun(ctx context.Context, threadID, assistantID string) (EventStream, error)

	// FileContent returns the binary content of a remote file. The caller
	// must close the returned reader.
	FileContent(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// EventStream is a pull-based iterator over the events of one run.
// Next returns io.EOF once the stream has ended normally. Close releases the
// underlying connection and may be called at any time, more than once.
type EventStream interface {
	Next() (StreamEvent, error)
	Close() error
}

// Config holds common configuration for assistant service clients.
type Config struct {
	BaseURL string
	APIKey  string
}
