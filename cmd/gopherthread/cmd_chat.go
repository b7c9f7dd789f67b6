package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/user/gopherthread/internal/runtime"
	"github.com/user/gopherthread/internal/session"
	"github.com/user/gopherthread/internal/state"
	"github.com/user/gopherthread/internal/types"
)

var (
	chatMessage string
	chatAttach  string
	chatThread  string
	chatSession string
)

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "first message to send before prompting")
	chatCmd.Flags().StringVar(&chatAttach, "attach", "", "file to upload and attach to the next message")
	chatCmd.Flags().StringVar(&chatThread, "thread", "", "existing thread id to resume")
	chatCmd.Flags().StringVar(&chatSession, "session", string(types.DefaultSessionKey), "name under which the thread id is remembered")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat with the assistant",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

const chatHelp = `Commands:
  /attach <path>  upload a file and attach it to the next message
  /thread         show the current thread id
  /help           show this help
  /quit, quit     end the session (also Ctrl-D)
`

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          color.GreenString("you> "),
		HistoryFile:     filepath.Join(cfg.DataDir, "history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init prompt: %w", err)
	}
	defer rl.Close()
	out := rl.Stdout()

	store := state.NewThreadStore(cfg.DataDir)
	key := types.SessionKey(chatSession)
	threadID, source, err := resolveThread(ctx, chatThread, cfg.Assistant.ThreadID, store, key)
	if err != nil {
		return err
	}
	if threadID != "" {
		slog.Info("resuming thread", "thread_id", threadID, "source", source)
	}

	a := newApp(cfg, newService(cfg), tintWriter{w: out, c: color.New(color.FgHiBlack)})
	sess := session.New(a.service, session.Options{
		AssistantID:       types.AssistantID(cfg.Assistant.ID),
		ThreadID:          threadID,
		SurfaceToolOutput: cfg.Assistant.StreamToolOutputs,
	})

	loop := &chatLoop{rt: a.runtime, sess: sess, in: rl, out: out}
	defer loop.finish(ctx, store, key)

	if chatAttach != "" {
		loop.attach(ctx, chatAttach)
	}
	if chatMessage != "" {
		loop.turn(ctx, chatMessage)
	}
	fmt.Fprint(out, color.HiBlackString("Type /help for commands.\n"))
	return loop.run(ctx)
}

// resolveThread picks the thread to resume: flag, then config or
// environment, then the thread index. Empty means start a new thread.
func resolveThread(ctx context.Context, flagThread, configThread string, store types.ThreadStore, key types.SessionKey) (types.ThreadID, string, error) {
	if flagThread != "" {
		return types.ThreadID(flagThread), "flag", nil
	}
	if configThread != "" {
		return types.ThreadID(configThread), "config", nil
	}
	rec, ok, err := store.Lookup(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("read thread index: %w", err)
	}
	if ok {
		return rec.ThreadID, "index", nil
	}
	return "", "", nil
}

type lineReader interface {
	Readline() (string, error)
}

// chatLoop is the interactive prompt loop for one session.
type chatLoop struct {
	rt   *runtime.Runtime
	sess *session.Session
	in   lineReader
	out  io.Writer
}

func isReadTermination(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt)
}

func (c *chatLoop) run(ctx context.Context) error {
	for {
		line, err := c.in.Readline()
		if isReadTermination(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "quit"):
			return nil
		case strings.HasPrefix(line, "/"):
			if c.command(ctx, line) {
				return nil
			}
		default:
			c.turn(ctx, line)
		}
	}
}

// command handles a slash command and reports whether the loop should end.
func (c *chatLoop) command(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit":
		return true
	case "/attach":
		if len(fields) < 2 {
			c.errorf("usage: /attach <path>")
			return false
		}
		c.attach(ctx, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
	case "/thread":
		if id := c.sess.ThreadID(); id != "" {
			fmt.Fprintf(c.out, "Thread ID: %s\n", id)
		} else {
			fmt.Fprintln(c.out, "No thread yet; one is created with the first message.")
		}
	case "/help":
		fmt.Fprint(c.out, chatHelp)
	default:
		c.errorf("unknown command: %s", fields[0])
	}
	return false
}

func (c *chatLoop) attach(ctx context.Context, path string) {
	file, err := c.sess.AttachFile(ctx, path)
	if err != nil {
		c.errorf("attach failed: %v", err)
		return
	}
	fmt.Fprintf(c.out, "Attached %s (%s)\n", file.Filename, file.ID)
}

// turn streams one reply to the console. Ctrl-C cancels the turn, not the
// session.
func (c *chatLoop) turn(ctx context.Context, text string) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprint(c.out, color.CyanString("assistant> "))
	for frag, err := range c.rt.Chat(ctx, c.sess, text) {
		if err != nil {
			fmt.Fprintln(c.out)
			c.errorf("%v", err)
			return
		}
		fmt.Fprint(c.out, frag)
	}
	fmt.Fprintln(c.out)
}

func (c *chatLoop) errorf(format string, args ...any) {
	color.New(color.FgRed).Fprintf(c.out, format+"\n", args...)
}

// finish prints the thread id and remembers it for the next run.
func (c *chatLoop) finish(ctx context.Context, store types.ThreadStore, key types.SessionKey) {
	id := c.sess.ThreadID()
	if id == "" {
		return
	}
	fmt.Fprintf(c.out, "Thread ID: %s\n", id)
	if err := store.Pin(ctx, key, id, c.sess.AssistantID()); err != nil {
		slog.Warn("failed to remember thread", "session", key, "thread_id", id, "error", err)
	}
}

// tintWriter colors everything written through it.
type tintWriter struct {
	w io.Writer
	c *color.Color
}

func (t tintWriter) Write(p []byte) (int, error) {
	if _, err := t.c.Fprint(t.w, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}
