package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"
	"github.com/s33g/lumin/internal/chat"
	"github.com/s33g/lumin/internal/conversation"
)

// lineReader is the part of *liner.State the loop uses
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// REPL is an interactive terminal chat over one session.
//
// Commands:
//
//	/reset    clear the conversation
//	/history  show the conversation so far
//	/help     list commands
//	/quit     exit
//
// Ctrl+C while a reply is streaming cancels it; at the prompt it exits.
type REPL struct {
	svc    *chat.Service
	sess   *conversation.Session
	out    io.Writer
	logger zerolog.Logger

	input       lineReader
	state       *liner.State
	historyFile string
}

// Option configures a REPL
type Option func(*REPL)

// WithHistoryFile loads and saves input history at path
func WithHistoryFile(path string) Option {
	return func(r *REPL) { r.historyFile = path }
}

// WithOutput sets where replies are written
func WithOutput(w io.Writer) Option {
	return func(r *REPL) { r.out = w }
}

// New creates a REPL reading from the controlling terminal
func New(svc *chat.Service, sess *conversation.Session, logger zerolog.Logger, opts ...Option) *REPL {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	r := newREPL(svc, sess, state, logger, opts...)
	r.state = state
	r.loadHistory()
	return r
}

func newREPL(svc *chat.Service, sess *conversation.Session, input lineReader, logger zerolog.Logger, opts ...Option) *REPL {
	r := &REPL{
		svc:    svc,
		sess:   sess,
		out:    os.Stdout,
		logger: logger.With().Str("component", "terminal").Logger(),
		input:  input,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close saves input history and restores the terminal
func (r *REPL) Close() error {
	if r.state == nil {
		return nil
	}
	r.saveHistory()
	return r.state.Close()
}

func (r *REPL) loadHistory() {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.state.ReadHistory(f)
		f.Close()
	}
}

func (r *REPL) saveHistory() {
	if r.historyFile == "" {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Failed to save input history")
		return
	}
	defer f.Close()
	r.state.WriteHistory(f)
}

// Run reads prompts until /quit, end of input or ctx is done
func (r *REPL) Run(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-sigs:
				r.sess.Cancel()
			case <-stop:
				return
			}
		}
	}()

	r.printWelcome()

	for {
		if ctx.Err() != nil {
			return nil
		}

		input, err := r.input.Prompt(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.input.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := r.command(ctx, input); quit {
				return nil
			}
			continue
		}

		r.ask(ctx, input)
	}
}

func (r *REPL) ask(ctx context.Context, input string) {
	renderer := NewRenderer(r.out)
	start := time.Now()

	fmt.Fprintln(r.out)
	turn, err := r.svc.Ask(ctx, r.sess, input, renderer.Render)
	renderer.Finish()

	if err != nil && !renderer.Failed() {
		fmt.Fprintf(r.out, "%s %v\n", errorStyle.Render("[Error]"), err)
		if errors.Is(err, chat.ErrNoCredential) {
			return
		}
	}

	fmt.Fprintln(r.out, infoStyle.Render(fmt.Sprintf("%d tokens · %s", turn.Tokens, time.Since(start).Round(100*time.Millisecond))))
	fmt.Fprintln(r.out)
}

// command runs a slash command and reports whether to quit
func (r *REPL) command(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/q", "/exit":
		return true
	case "/reset", "/clear":
		if err := r.sess.Reset(ctx); err != nil {
			fmt.Fprintf(r.out, "%s %v\n", errorStyle.Render("[Error]"), err)
			return false
		}
		fmt.Fprintln(r.out, infoStyle.Render("Conversation cleared."))
	case "/history":
		r.printHistory()
	case "/help", "/h":
		r.printHelp()
	default:
		fmt.Fprintln(r.out, warningStyle.Render(fmt.Sprintf("Unknown command %s, try /help", fields[0])))
	}
	return false
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, welcomeStyle.Render("Lumin"))
	fmt.Fprintln(r.out, infoStyle.Render(fmt.Sprintf("Model %s. Type /help for commands.", r.svc.Settings().Model)))
	fmt.Fprintln(r.out)
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "  /reset    clear the conversation")
	fmt.Fprintln(r.out, "  /history  show the conversation so far")
	fmt.Fprintln(r.out, "  /quit     exit")
	fmt.Fprintln(r.out, infoStyle.Render("Ctrl+C cancels a reply, Ctrl+D exits"))
}

func (r *REPL) printHistory() {
	shown := 0
	for _, t := range r.sess.History() {
		var label string
		switch t.Role {
		case conversation.RoleUser:
			label = userStyle.Render("You")
		case conversation.RoleAssistant:
			label = assistantStyle.Render("Lumin")
		default:
			continue
		}
		fmt.Fprintf(r.out, "%s: %s\n", label, t.Content)
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(r.out, infoStyle.Render("No messages yet."))
	}
}
