// internal/types/errors.go
package types

import "errors"

var (
	// ErrSession marks a failure to create or retrieve the conversation thread.
	ErrSession = errors.New("session error")
	// ErrSubmission marks a message the remote service rejected.
	ErrSubmission = errors.New("submission error")
	// ErrStream marks a run stream that could not be started or ended abnormally.
	ErrStream = errors.New("stream error")
	// ErrArtifact marks a failure to turn a generated file into a download link.
	ErrArtifact = errors.New("artifact error")

	// ErrNoThread is returned when a message is submitted before a thread exists.
	ErrNoThread = errors.New("no thread: ensure the thread before submitting")
	// ErrTurnInProgress is returned when a second turn starts on a busy session.
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
)
