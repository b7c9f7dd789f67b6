// Package llmtest provides an in-memory llm.Service for tests.
package llmtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/user/gopherthread/pkg/llm"
)

// ErrStreamClosed is returned by Stream.Next after Close.
var ErrStreamClosed = errors.New("stream closed")

// RecordedMessage is a CreateMessage call as seen by the fake.
type RecordedMessage struct {
	ThreadID string
	Params   llm.MessageParams
}

// Service is a scripted llm.Service. Every call is recorded in Calls as
// "Method" or "Method:arg". Runs are consumed in the order they were queued.
type Service struct {
	mu       sync.Mutex
	threads  map[string]*llm.Thread
	files    map[string][]byte
	runs     []*Stream
	nextID   int
	Calls    []string
	Messages []RecordedMessage
	Uploads  map[string][]byte
	Streams  []*Stream

	CreateThreadErr  error
	GetThreadErr     error
	UploadErr        error
	CreateMessageErr error
	StreamRunErr     error
	FileContentErr   error
}

// New creates an empty fake service.
func New() *Service {
	return &Service{
		threads: make(map[string]*llm.Thread),
		files:   make(map[string][]byte),
		Uploads: make(map[string][]byte),
	}
}

var _ llm.Service = (*Service)(nil)

// AddThread registers an existing remote thread.
func (s *Service) AddThread(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[id] = &llm.Thread{ID: id}
}

// AddFile registers remote file content served by FileContent.
func (s *Service) AddFile(id string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = content
}

// QueueRun scripts the events of the next StreamRun call. If dropErr is
// non-nil it is returned once the events are exhausted instead of io.EOF.
func (s *Service) QueueRun(dropErr error, events ...llm.StreamEvent) *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &Stream{events: events, err: dropErr}
	s.runs = append(s.runs, st)
	return st
}

// CallCount returns how many recorded calls start with prefix.
func (s *Service) CallCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (s *Service) record(call string) {
	s.Calls = append(s.Calls, call)
}

func (s *Service) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s_%d", prefix, s.nextID)
}

func (s *Service) CreateThread(_ context.Context) (*llm.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateThread")
	if s.CreateThreadErr != nil {
		return nil, s.CreateThreadErr
	}
	t := &llm.Thread{ID: s.newID("thread")}
	s.threads[t.ID] = t
	return t, nil
}

func (s *Service) GetThread(_ context.Context, id string) (*llm.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("GetThread:" + id)
	if s.GetThreadErr != nil {
		return nil, s.GetThreadErr
	}
	t, ok := s.threads[id]
	if !ok {
		return nil, &llm.APIError{StatusCode: 404, Message: "No thread found with id '" + id + "'."}
	}
	return t, nil
}

func (s *Service) UploadFile(_ context.Context, filename string, content io.Reader, purpose string) (*llm.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UploadFile:" + filename)
	if s.UploadErr != nil {
		return nil, s.UploadErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f := &llm.File{ID: s.newID("file"), Filename: filename, Bytes: int64(len(data)), Purpose: purpose}
	s.Uploads[f.ID] = data
	return f, nil
}

func (s *Service) CreateMessage(_ context.Context, threadID string, params llm.MessageParams) (*llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CreateMessage:" + threadID)
	if s.CreateMessageErr != nil {
		return nil, s.CreateMessageErr
	}
	s.Messages = append(s.Messages, RecordedMessage{ThreadID: threadID, Params: params})
	return &llm.Message{ID: s.newID("msg"), ThreadID: threadID, Role: params.Role}, nil
}

func (s *Service) StreamRun(_ context.Context, threadID, assistantID string) (llm.EventStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("StreamRun:" + threadID + ":" + assistantID)
	if s.StreamRunErr != nil {
		return nil, s.StreamRunErr
	}
	st := &Stream{}
	if len(s.runs) > 0 {
		st = s.runs[0]
		s.runs = s.runs[1:]
	}
	s.Streams = append(s.Streams, st)
	return st, nil
}

func (s *Service) FileContent(_ context.Context, fileID string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FileContent:" + fileID)
	if s.FileContentErr != nil {
		return nil, s.FileContentErr
	}
	data, ok := s.files[fileID]
	if !ok {
		return nil, &llm.APIError{StatusCode: 404, Message: "No such File object: " + fileID}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Stream is a scripted llm.EventStream.
type Stream struct {
	mu     sync.Mutex
	events []llm.StreamEvent
	err    error
	pos    int
	closed bool
}

func (st *Stream) Next() (llm.StreamEvent, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return llm.StreamEvent{}, ErrStreamClosed
	}
	if st.pos < len(st.events) {
		ev := st.events[st.pos]
		st.pos++
		return ev, nil
	}
	if st.err != nil {
		return llm.StreamEvent{}, st.err
	}
	return llm.StreamEvent{}, io.EOF
}

func (st *Stream) Close() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (st *Stream) Closed() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.closed
}

// Consumed reports how many scripted events have been handed out.
func (st *Stream) Consumed() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pos
}
