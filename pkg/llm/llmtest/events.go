package llmtest

import (
	"encoding/json"

	"github.com/user/gopherthread/pkg/llm"
)

// Event builds a raw stream event from any JSON-marshalable payload.
func Event(name string, payload any) llm.StreamEvent {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return llm.StreamEvent{Name: name, Data: data}
}

// TextDelta builds a thread.message.delta event with one text item per fragment.
func TextDelta(fragments ...string) llm.StreamEvent {
	content := make([]map[string]any, 0, len(fragments))
	for i, f := range fragments {
		content = append(content, map[string]any{
			"index": i,
			"type":  "text",
			"text":  map[string]any{"value": f},
		})
	}
	return Event("thread.message.delta", map[string]any{
		"id":     "msg_delta",
		"object": "thread.message.delta",
		"delta":  map[string]any{"content": content},
	})
}

// Output is a code interpreter output item.
type Output map[string]any

// Logs builds a "logs" output item.
func Logs(text string) Output {
	return Output{"type": "logs", "logs": text}
}

// Image builds an "image" output item.
func Image(fileID string) Output {
	return Output{"type": "image", "image": map[string]any{"file_id": fileID}}
}

// CodeStep builds a thread.run.step.delta event for one code interpreter call.
// An empty input is omitted from the payload.
func CodeStep(input string, outputs ...Output) llm.StreamEvent {
	ci := map[string]any{}
	if input != "" {
		ci["input"] = input
	}
	if len(outputs) > 0 {
		ci["outputs"] = outputs
	}
	return Event("thread.run.step.delta", map[string]any{
		"id":     "step_delta",
		"object": "thread.run.step.delta",
		"delta": map[string]any{
			"step_details": map[string]any{
				"type": "tool_calls",
				"tool_calls": []map[string]any{{
					"index":            0,
					"type":             llm.ToolCodeInterpreter,
					"code_interpreter": ci,
				}},
			},
		},
	})
}

// Annotation is a text annotation inside a completed message.
type Annotation map[string]any

// FilePath builds an inline "file_path" annotation.
func FilePath(text, fileID string) Annotation {
	return Annotation{"type": "file_path", "text": text, "file_path": map[string]any{"file_id": fileID}}
}

// File builds a message-attached "file" annotation.
func File(text, fileID string) Annotation {
	return Annotation{"type": "file", "text": text, "file_id": fileID}
}

// MessageCompleted builds a thread.message.completed event with a single
// text content block carrying the annotations.
func MessageCompleted(text string, annotations ...Annotation) llm.StreamEvent {
	if annotations == nil {
		annotations = []Annotation{}
	}
	return Event("thread.message.completed", map[string]any{
		"id":     "msg_1",
		"object": "thread.message",
		"role":   "assistant",
		"status": "completed",
		"content": []map[string]any{{
			"type": "text",
			"text": map[string]any{"value": text, "annotations": annotations},
		}},
	})
}
