package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/gopherthread/pkg/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&llm.Config{BaseURL: server.URL + "/v1", APIKey: "test-key"})
}

func TestCreateThread(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/threads" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or invalid auth header")
		}
		if r.Header.Get("OpenAI-Beta") != "assistants=v2" {
			t.Errorf("expected OpenAI-Beta header, got %q", r.Header.Get("OpenAI-Beta"))
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "thread_abc", "object": "thread", "created_at": 1700000000})
	})

	thread, err := client.CreateThread(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if thread.ID != "thread_abc" {
		t.Errorf("expected thread_abc, got %s", thread.ID)
	}
}

func TestGetThreadNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_gone" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"No thread found with id 'thread_gone'.","type":"invalid_request_error"}}`))
	})

	_, err := client.GetThread(context.Background(), "thread_gone")
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "No thread found with id 'thread_gone'." {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestCreateMessageWithAttachment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type 'application/json', got %q", r.Header.Get("Content-Type"))
		}

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		json.Unmarshal(body, &req)

		if req["role"] != "user" || req["content"] != "plot this" {
			t.Errorf("unexpected body %s", body)
		}
		attachments, ok := req["attachments"].([]any)
		if !ok || len(attachments) != 1 {
			t.Fatalf("expected 1 attachment, got %v", req["attachments"])
		}
		att := attachments[0].(map[string]any)
		if att["file_id"] != "file-1" {
			t.Errorf("expected file-1, got %v", att["file_id"])
		}
		tools := att["tools"].([]any)
		if tools[0].(map[string]any)["type"] != "code_interpreter" {
			t.Errorf("expected code_interpreter tool, got %v", tools[0])
		}

		json.NewEncoder(w).Encode(map[string]any{"id": "msg_1", "thread_id": "thread_1", "role": "user"})
	})

	msg, err := client.CreateMessage(context.Background(), "thread_1", llm.MessageParams{
		Role:    llm.RoleUser,
		Content: "plot this",
		Attachments: []llm.Attachment{{
			FileID: "file-1",
			Tools:  []llm.ToolSpec{{Type: llm.ToolCodeInterpreter}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "msg_1" {
		t.Errorf("expected msg_1, got %s", msg.ID)
	}
}

func TestCreateMessageOmitsEmptyAttachments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), "attachments") {
			t.Errorf("expected no attachments key, got %s", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "msg_2"})
	})

	if _, err := client.CreateMessage(context.Background(), "thread_1", llm.MessageParams{Role: "user", Content: "hi"}); err != nil {
		t.Fatal(err)
	}
}

func TestUploadFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("purpose") != "assistants" {
			t.Errorf("expected purpose assistants, got %q", r.FormValue("purpose"))
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "data.csv" || string(data) != "a,b\n1,2\n" {
			t.Errorf("unexpected upload %s %q", hdr.Filename, data)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "file-xyz", "filename": hdr.Filename, "bytes": len(data), "purpose": "assistants"})
	})

	file, err := client.UploadFile(context.Background(), "data.csv", strings.NewReader("a,b\n1,2\n"), llm.PurposeAssistants)
	if err != nil {
		t.Fatal(err)
	}
	if file.ID != "file-xyz" || file.Filename != "data.csv" || file.Bytes != 8 {
		t.Errorf("unexpected file %+v", file)
	}
}

func TestFileContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files/file-img/content" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})

	rc, err := client.FileContent(context.Background(), "file-img")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "\x89PNG" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestFileContentOutlivesRequestTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("first half,"))
		w.(http.Flusher).Flush()
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("second half"))
	})
	client.httpClient.Timeout = 50 * time.Millisecond

	rc, err := client.FileContent(context.Background(), "file-big")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("download cut short: %v", err)
	}
	if string(data) != "first half,second half" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestFileContentCanceledByContext(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	rc, err := client.FileContent(ctx, "file-big")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	cancel()
	if _, err := io.ReadAll(rc); err == nil {
		t.Error("expected read to fail after cancel")
	}
}

func TestStreamRun(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/runs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		json.Unmarshal(body, &req)
		if req["assistant_id"] != "asst_1" || req["stream"] != true {
			t.Errorf("unexpected run request %s", body)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: thread.run.created\ndata: {\"id\":\"run_1\"}\n\n")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "event: thread.message.delta\ndata: {\"delta\":{\"content\":[{\"type\":\"text\",\"text\":{\"value\":\"Hi\"}}]}}\n\n")
		fmt.Fprint(w, "event: done\ndata: [DONE]\n\n")
	})

	stream, err := client.StreamRun(context.Background(), "thread_1", "asst_1")
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	var names []string
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, ev.Name)
	}

	if strings.Join(names, ",") != "thread.run.created,thread.message.delta" {
		t.Errorf("unexpected events %v", names)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after done, got %v", err)
	}
}

func TestStreamRunAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Thread thread_1 already has an active run"}}`))
	})

	_, err := client.StreamRun(context.Background(), "thread_1", "asst_1")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "already has an active run") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestSSEStreamTruncated(t *testing.T) {
	body := io.NopCloser(strings.NewReader("event: thread.message.delta\ndata: {\"delta\":{}}\n\nevent: thread.message.delta\ndata: {\"del"))
	stream := newSSEStream(body)

	if _, err := stream.Next(); err != nil {
		t.Fatalf("first event: %v", err)
	}
	if _, err := stream.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestSSEStreamMultilineData(t *testing.T) {
	body := io.NopCloser(strings.NewReader("event: x\ndata: {\"a\":\ndata: 1}\n\n"))
	stream := newSSEStream(body)

	ev, err := stream.Next()
	if err != nil {
		t.Fatal(err)
	}
	if string(ev.Data) != "{\"a\":\n1}" {
		t.Errorf("unexpected data %q", ev.Data)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestClientServiceInterface(t *testing.T) {
	// Verify Client satisfies the llm.Service interface at compile time.
	var _ llm.Service = (*Client)(nil)
}
