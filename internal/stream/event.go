// Package stream classifies raw run events into a closed set of kinds.
//
// Every raw event maps to exactly one of TextDelta, ToolStepDelta,
// MessageCompleted, Failure or Unknown. Events this package does not
// understand become Unknown so callers can log and skip them instead of
// guessing at their shape.
package stream

import (
	"path"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/user/gopherthread/pkg/llm"
)

// Event names emitted by the assistants run stream.
const (
	EventMessageDelta     = "thread.message.delta"
	EventRunStepDelta     = "thread.run.step.delta"
	EventMessageCompleted = "thread.message.completed"
	EventRunFailed        = "thread.run.failed"
	EventError            = "error"
)

// Event is one classified stream event.
type Event interface {
	event()
}

// TextDelta carries the text fragments of a message delta, in order.
type TextDelta struct {
	Fragments []string
}

// ToolStepDelta carries the tool calls of a run step delta.
type ToolStepDelta struct {
	Calls []ToolCall
}

// ToolCall is the incremental state of one tool invocation.
type ToolCall struct {
	Kind     string
	Input    string
	HasInput bool
	Outputs  []ToolOutput
}

// OutputLogs is the kind of a console log output item.
const OutputLogs = "logs"

// ToolOutput is one output item of a code interpreter call. Kind is empty
// when the item carried no type.
type ToolOutput struct {
	Kind string
	Logs string
	Raw  string
}

// MessageCompleted carries the file annotations of a finished message, in
// the order they appear across its content blocks.
type MessageCompleted struct {
	MessageID   string
	Annotations []Annotation
	// Skipped counts annotations that do not reference a file.
	Skipped int
}

// AnnotationKind distinguishes how a file was referenced.
type AnnotationKind string

const (
	// AnnotationFilePath is a file path written inline in the message text.
	AnnotationFilePath AnnotationKind = "file_path"
	// AnnotationFile is a file attached to or cited by the message.
	AnnotationFile AnnotationKind = "file"
)

// Annotation references a generated file.
type Annotation struct {
	Kind   AnnotationKind
	FileID string
	// Text is the original reference string, e.g. "sandbox:/mnt/data/plot.png".
	Text string
}

// DisplayName is the last path segment of the reference text. It falls back
// to the file id when the text has no usable segment.
func (a Annotation) DisplayName() string {
	text := strings.TrimSpace(a.Text)
	if i := strings.LastIndex(text, ":"); i >= 0 && !strings.Contains(text[i:], "/") {
		text = text[i+1:]
	}
	name := path.Base(text)
	if name == "." || name == ".." || name == "/" || name == "" {
		return a.FileID
	}
	return name
}

// Failure reports an error event or a failed run.
type Failure struct {
	Name    string
	Message string
}

// Unknown is any event this package does not interpret.
type Unknown struct {
	Name string
}

func (TextDelta) event()        {}
func (ToolStepDelta) event()    {}
func (MessageCompleted) event() {}
func (Failure) event()          {}
func (Unknown) event()          {}

// Classify maps a raw event to its kind. It never fails: malformed payloads
// produce an empty event of the matching kind or Unknown.
func Classify(ev llm.StreamEvent) Event {
	data := gjson.ParseBytes(ev.Data)

	switch ev.Name {
	case EventMessageDelta:
		return classifyText(data)
	case EventRunStepDelta:
		return classifyStep(data)
	case EventMessageCompleted:
		return classifyCompleted(data)
	case EventRunFailed:
		msg := data.Get("last_error.message").String()
		if msg == "" {
			msg = "run failed"
		}
		return Failure{Name: ev.Name, Message: msg}
	case EventError:
		msg := data.Get("message").String()
		if msg == "" {
			msg = data.Get("error.message").String()
		}
		if msg == "" {
			msg = string(ev.Data)
		}
		return Failure{Name: ev.Name, Message: msg}
	default:
		return Unknown{Name: ev.Name}
	}
}

func classifyText(data gjson.Result) TextDelta {
	var out TextDelta
	data.Get("delta.content").ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() == "text" {
			out.Fragments = append(out.Fragments, item.Get("text.value").String())
		}
		return true
	})
	return out
}

func classifyStep(data gjson.Result) ToolStepDelta {
	var out ToolStepDelta
	details := data.Get("delta.step_details")
	if details.Get("type").String() != "tool_calls" {
		return out
	}
	details.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		call := ToolCall{Kind: tc.Get("type").String()}
		if call.Kind == llm.ToolCodeInterpreter {
			input := tc.Get("code_interpreter.input")
			call.HasInput = input.Exists() && input.Type != gjson.Null
			call.Input = input.String()
			tc.Get("code_interpreter.outputs").ForEach(func(_, o gjson.Result) bool {
				call.Outputs = append(call.Outputs, ToolOutput{
					Kind: o.Get("type").String(),
					Logs: o.Get("logs").String(),
					Raw:  o.Raw,
				})
				return true
			})
		}
		out.Calls = append(out.Calls, call)
		return true
	})
	return out
}

func classifyCompleted(data gjson.Result) MessageCompleted {
	out := MessageCompleted{MessageID: data.Get("id").String()}
	data.Get("content").ForEach(func(_, block gjson.Result) bool {
		block.Get("text.annotations").ForEach(func(_, a gjson.Result) bool {
			if ann, ok := classifyAnnotation(a); ok {
				out.Annotations = append(out.Annotations, ann)
			} else {
				out.Skipped++
			}
			return true
		})
		return true
	})
	return out
}

func classifyAnnotation(a gjson.Result) (Annotation, bool) {
	text := a.Get("text").String()
	var ann Annotation
	switch a.Get("type").String() {
	case "file_path":
		ann = Annotation{Kind: AnnotationFilePath, FileID: a.Get("file_path.file_id").String(), Text: text}
	case "file_citation":
		ann = Annotation{Kind: AnnotationFile, FileID: a.Get("file_citation.file_id").String(), Text: text}
	case "file":
		id := a.Get("file_id").String()
		if id == "" {
			id = a.Get("file.file_id").String()
		}
		ann = Annotation{Kind: AnnotationFile, FileID: id, Text: text}
	default:
		return Annotation{}, false
	}
	// A file reference without an id is still kept so it resolves to an
	// inline error rather than vanishing.
	return ann, true
}
