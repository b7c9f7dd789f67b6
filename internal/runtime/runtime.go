// Package runtime turns a user utterance into a flattened stream of output
// fragments by driving one assistant run per turn.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/user/gopherthread/internal/stream"
	"github.com/user/gopherthread/internal/types"
	"github.com/user/gopherthread/pkg/llm"
)

// Runner starts a streaming run on a thread.
type Runner interface {
	StreamRun(ctx context.Context, threadID, assistantID string) (llm.EventStream, error)
}

// Resolver turns a file annotation into a display line. It never fails.
type Resolver interface {
	Resolve(ctx context.Context, ann stream.Annotation) string
}

// Conversation is the per-thread state a chat turn runs against.
type Conversation interface {
	BeginTurn() (release func(), err error)
	EnsureThread(ctx context.Context) error
	Submit(ctx context.Context, text string) error
	ThreadID() types.ThreadID
	AssistantID() types.AssistantID
	SurfaceToolOutput() bool
}

// Runtime drives chat turns and flattens run events into output fragments.
type Runtime struct {
	runner   Runner
	resolver Resolver
	console  io.Writer
}

// New creates a Runtime. Code interpreter logs are written to console; a nil
// console discards them.
func New(runner Runner, resolver Resolver, console io.Writer) *Runtime {
	if console == nil {
		console = io.Discard
	}
	return &Runtime{
		runner:   runner,
		resolver: resolver,
		console:  console,
	}
}

// Chat runs one turn: ensure the thread, submit text, then stream the reply.
// Nothing happens until the sequence is iterated. Session and submission
// failures are yielded as the only element.
func (rt *Runtime) Chat(ctx context.Context, conv Conversation, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		release, err := conv.BeginTurn()
		if err != nil {
			yield("", err)
			return
		}
		defer release()

		if err := conv.EnsureThread(ctx); err != nil {
			yield("", err)
			return
		}
		if err := conv.Submit(ctx, text); err != nil {
			yield("", err)
			return
		}

		for frag, err := range rt.Interpret(ctx, conv.ThreadID(), conv.AssistantID(), conv.SurfaceToolOutput()) {
			if !yield(frag, err) {
				return
			}
		}
	}
}

// Interpret starts a run and yields output fragments as events arrive. Each
// call opens a new stream, which is closed when the sequence ends or the
// caller stops iterating. A stream failure is yielded last, after any
// fragments already produced.
func (rt *Runtime) Interpret(ctx context.Context, threadID types.ThreadID, assistantID types.AssistantID, surface bool) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		slog.Info("starting run", "thread_id", threadID, "assistant_id", assistantID)
		events, err := rt.runner.StreamRun(ctx, string(threadID), string(assistantID))
		if err != nil {
			yield("", fmt.Errorf("%w: start run: %w", types.ErrStream, err))
			return
		}
		defer func() {
			if err := events.Close(); err != nil {
				slog.Warn("failed to close run stream", "thread_id", threadID, "error", err)
			}
		}()

		for {
			raw, err := events.Next()
			if errors.Is(err, io.EOF) {
				slog.Debug("run stream finished", "thread_id", threadID)
				return
			}
			if err != nil {
				yield("", fmt.Errorf("%w: %w", types.ErrStream, err))
				return
			}
			if !rt.dispatch(ctx, stream.Classify(raw), surface, yield) {
				return
			}
		}
	}
}

// dispatch handles one event and reports whether iteration should continue.
func (rt *Runtime) dispatch(ctx context.Context, ev stream.Event, surface bool, yield func(string, error) bool) bool {
	switch ev := ev.(type) {
	case stream.TextDelta:
		for _, frag := range ev.Fragments {
			if !yield(frag, nil) {
				return false
			}
		}

	case stream.ToolStepDelta:
		for _, call := range ev.Calls {
			if call.Kind != llm.ToolCodeInterpreter {
				slog.Debug("ignoring tool call", "kind", call.Kind)
				continue
			}
			if surface && call.HasInput && call.Input != "" {
				if !yield(call.Input, nil) {
					return false
				}
			}
			rt.forwardOutputs(call.Outputs)
		}

	case stream.MessageCompleted:
		if ev.Skipped > 0 {
			slog.Debug("skipped non-file annotations", "message_id", ev.MessageID, "count", ev.Skipped)
		}
		for _, ann := range ev.Annotations {
			if !yield(rt.resolver.Resolve(ctx, ann), nil) {
				return false
			}
		}

	case stream.Failure:
		slog.Error("run stream reported failure", "event", ev.Name, "message", ev.Message)
		yield("", fmt.Errorf("%w: %s: %s", types.ErrStream, ev.Name, ev.Message))
		return false

	case stream.Unknown:
		slog.Debug("ignoring stream event", "event", ev.Name)
	}
	return true
}

func (rt *Runtime) forwardOutputs(outputs []stream.ToolOutput) {
	for _, out := range outputs {
		switch out.Kind {
		case stream.OutputLogs:
			if _, err := io.WriteString(rt.console, out.Logs); err != nil {
				slog.Warn("failed to write tool logs to console", "error", err)
			}
		case "":
			slog.Warn("skipping unclassifiable tool output", "raw", out.Raw)
		default:
			slog.Info("tool output", "type", out.Kind, "raw", out.Raw)
		}
	}
}
