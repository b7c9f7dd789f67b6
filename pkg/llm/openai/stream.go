package openai

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/user/gopherthread/pkg/llm"
)

const doneSentinel = "[DONE]"

// sseStream reads server-sent events from a run response body.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader

	mu     sync.Mutex
	done   bool
	closed bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	return &sseStream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next returns the next complete event. Comment lines and events without
// data are skipped. The "[DONE]" sentinel and a clean end of body both end
// the stream with io.EOF; an end of body inside an event is reported as
// io.ErrUnexpectedEOF.
func (s *sseStream) Next() (llm.StreamEvent, error) {
	if s.done {
		return llm.StreamEvent{}, io.EOF
	}

	var name string
	var data strings.Builder
	pending := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				if pending {
					return llm.StreamEvent{}, io.ErrUnexpectedEOF
				}
				s.done = true
				return llm.StreamEvent{}, io.EOF
			}
			return llm.StreamEvent{}, err
		}

		line = strings.TrimRight(line, "\r\n")

		// Empty line = event complete
		if line == "" {
			if data.Len() == 0 {
				name = ""
				pending = false
				continue
			}
			payload := data.String()
			if payload == doneSentinel {
				s.done = true
				return llm.StreamEvent{}, io.EOF
			}
			return llm.StreamEvent{Name: name, Data: json.RawMessage(payload)}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		pending = true

		switch field {
		case "event":
			name = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
}

// Close releases the connection. It is safe to call more than once.
func (s *sseStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
