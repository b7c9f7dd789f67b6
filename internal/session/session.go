// Package session holds the per-conversation state for one assistant thread:
// the pinned thread id, the pending file attachment and the tool output flag.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/gopherthread/internal/types"
	"github.com/user/gopherthread/pkg/llm"
)

// Remote is the subset of llm.Service a session talks to.
type Remote interface {
	CreateThread(ctx context.Context) (*llm.Thread, error)
	GetThread(ctx context.Context, id string) (*llm.Thread, error)
	UploadFile(ctx context.Context, filename string, content io.Reader, purpose string) (*llm.File, error)
	CreateMessage(ctx context.Context, threadID string, params llm.MessageParams) (*llm.Message, error)
}

// Options configures a new Session.
type Options struct {
	AssistantID types.AssistantID
	// ThreadID pins an existing thread; empty means create one on first use.
	ThreadID          types.ThreadID
	SurfaceToolOutput bool
}

// Session is the conversation context for one thread. Turns on a session are
// strictly sequential; see BeginTurn.
type Session struct {
	remote      Remote
	assistantID types.AssistantID
	surface     bool
	turn        *semaphore.Weighted

	mu       sync.RWMutex
	threadID types.ThreadID
	attached *llm.File
}

// New creates a Session. The thread is not touched until EnsureThread.
func New(remote Remote, opts Options) *Session {
	return &Session{
		remote:      remote,
		assistantID: opts.AssistantID,
		threadID:    opts.ThreadID,
		surface:     opts.SurfaceToolOutput,
		turn:        semaphore.NewWeighted(1),
	}
}

// AssistantID returns the immutable assistant id.
func (s *Session) AssistantID() types.AssistantID {
	return s.assistantID
}

// ThreadID returns the pinned thread id, or "" before the first EnsureThread.
func (s *Session) ThreadID() types.ThreadID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threadID
}

// SurfaceToolOutput reports whether tool input is echoed to the caller.
func (s *Session) SurfaceToolOutput() bool {
	return s.surface
}

// Attached returns the file sent with the next message, if any.
func (s *Session) Attached() *llm.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached
}

// BeginTurn claims the session for one chat turn. The returned func releases
// it. A second concurrent turn fails with types.ErrTurnInProgress.
func (s *Session) BeginTurn() (release func(), err error) {
	if !s.turn.TryAcquire(1) {
		return nil, types.ErrTurnInProgress
	}
	var once sync.Once
	return func() { once.Do(func() { s.turn.Release(1) }) }, nil
}

// EnsureThread validates the pinned thread, or creates and pins a new one.
// Once pinned, the thread id never changes.
func (s *Session) EnsureThread(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.threadID != "" {
		slog.Info("retrieving thread", "thread_id", s.threadID)
		if _, err := s.remote.GetThread(ctx, string(s.threadID)); err != nil {
			return fmt.Errorf("%w: retrieve thread %s: %w", types.ErrSession, s.threadID, err)
		}
		return nil
	}

	slog.Info("creating new thread")
	thread, err := s.remote.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("%w: create thread: %w", types.ErrSession, err)
	}
	if thread.ID == "" {
		return fmt.Errorf("%w: create thread: empty thread id", types.ErrSession)
	}
	s.threadID = types.ThreadID(thread.ID)
	slog.Info("new thread created", "thread_id", s.threadID)
	return nil
}

// AttachFile uploads the file at localPath and makes it the attachment for
// subsequent messages, replacing any previous one.
func (s *Session) AttachFile(ctx context.Context, localPath string) (*llm.File, error) {
	slog.Info("uploading file", "path", localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	file, err := s.remote.UploadFile(ctx, filepath.Base(localPath), f, llm.PurposeAssistants)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", localPath, err)
	}

	s.mu.Lock()
	prev := s.attached
	s.attached = file
	s.mu.Unlock()

	if prev != nil {
		slog.Info("attachment replaced", "previous_file_id", prev.ID, "file_id", file.ID)
	}
	slog.Info("file uploaded", "file_id", file.ID)
	return file, nil
}

// Submit appends a user message to the thread, attaching the pending file
// bound to the code interpreter. EnsureThread must have succeeded first.
func (s *Session) Submit(ctx context.Context, text string) error {
	s.mu.RLock()
	threadID := s.threadID
	attached := s.attached
	s.mu.RUnlock()

	if threadID == "" {
		return fmt.Errorf("%w: %w", types.ErrSubmission, types.ErrNoThread)
	}

	slog.Info("adding user message to thread", "thread_id", threadID, "text", text)
	if _, err := s.remote.CreateMessage(ctx, string(threadID), buildMessage(text, attached)); err != nil {
		return fmt.Errorf("%w: create message: %w", types.ErrSubmission, err)
	}
	return nil
}

func buildMessage(text string, attached *llm.File) llm.MessageParams {
	params := llm.MessageParams{
		Role:    llm.RoleUser,
		Content: text,
	}
	if attached != nil {
		params.Attachments = []llm.Attachment{{
			FileID: attached.ID,
			Tools:  []llm.ToolSpec{{Type: llm.ToolCodeInterpreter}},
		}}
	}
	return params
}
