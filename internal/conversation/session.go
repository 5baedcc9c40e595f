package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/s33g/lumin/internal/llm"
)

// Session is one conversation: an ordered, append-only list of turns with
// at most one assistant reply streaming at a time.
type Session struct {
	id      string
	store   Store
	counter *TokenCounter
	model   string

	// slot holds a token while a reply is in progress
	slot chan struct{}

	mu     sync.Mutex
	turns  []Turn
	cancel context.CancelFunc
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithStore writes every appended turn through to store
func WithStore(store Store) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithTokenCounter stamps turns with token counts for model
func WithTokenCounter(counter *TokenCounter, model string) SessionOption {
	return func(s *Session) {
		s.counter = counter
		s.model = model
	}
}

// NewSession creates a session, seeded with a system turn when systemPrompt
// is not empty
func NewSession(id, systemPrompt string, opts ...SessionOption) *Session {
	s := &Session{
		id:   id,
		slot: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if systemPrompt != "" {
		s.turns = append(s.turns, s.stamp(Turn{Role: RoleSystem, Content: systemPrompt}))
	}
	return s
}

// Resume rebuilds a session from the turns saved in store. The system
// prompt is not stored; the current one is seeded in front.
func Resume(ctx context.Context, store Store, id, systemPrompt string, opts ...SessionOption) (*Session, error) {
	turns, err := store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session %s: %w", id, err)
	}

	s := NewSession(id, systemPrompt, append(opts, WithStore(store))...)
	for _, t := range turns {
		if t.Role == RoleSystem {
			continue
		}
		s.turns = append(s.turns, t)
	}
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the turns so far
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Messages returns the history in wire form, reasoning stripped
func (s *Session) Messages() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messagesLocked()
}

func (s *Session) messagesLocked() []llm.Message {
	msgs := make([]llm.Message, len(s.turns))
	for i, t := range s.turns {
		msgs[i] = t.Message()
	}
	return msgs
}

// Begin appends a user turn and starts the assistant reply. It waits for
// any reply already in progress to be finalized, or for ctx.
func (s *Session) Begin(ctx context.Context, text string) (*Pending, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Cancel applies from the moment the slot is held.
	streamCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	turn := s.stamp(Turn{Role: RoleUser, Content: text})
	if s.store != nil {
		if err := s.store.Append(ctx, s.id, turn); err != nil {
			s.mu.Lock()
			s.cancel = nil
			s.mu.Unlock()
			cancel()
			<-s.slot
			return nil, fmt.Errorf("failed to save user turn: %w", err)
		}
	}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	msgs := s.messagesLocked()
	s.mu.Unlock()

	return &Pending{
		session:  s,
		ctx:      streamCtx,
		cancel:   cancel,
		messages: msgs,
		started:  time.Now(),
	}, nil
}

// Cancel aborts the reply in progress, if any
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Reset cancels any reply in progress and drops every turn except the
// system prompt
func (s *Session) Reset(ctx context.Context) error {
	s.Cancel()

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.slot }()

	if s.store != nil {
		if err := s.store.Clear(ctx, s.id); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.turns[:0]
	for _, t := range s.turns {
		if t.Role == RoleSystem {
			kept = append(kept, t)
		}
	}
	s.turns = kept
	return nil
}

func (s *Session) stamp(t Turn) Turn {
	t.CreatedAt = time.Now()
	if s.counter != nil {
		t.Tokens = s.counter.Count(t.Content, s.model)
	}
	return t
}

// finish appends the frozen assistant turn and frees the slot
func (s *Session) finish(ctx context.Context, turn Turn) error {
	defer func() { <-s.slot }()

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.cancel = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Append(ctx, s.id, turn); err != nil {
			return fmt.Errorf("failed to save assistant turn: %w", err)
		}
	}
	return nil
}

// Pending is the assistant turn being streamed. It is not safe for
// concurrent use; one consumer applies events in order.
type Pending struct {
	session  *Session
	ctx      context.Context
	cancel   context.CancelFunc
	messages []llm.Message
	started  time.Time

	reasoning strings.Builder
	content   strings.Builder
	err       error

	finalized bool
	turn      Turn
}

// Context is cancelled when the session cancels this reply
func (p *Pending) Context() context.Context {
	return p.ctx
}

// Messages is the request context: every turn up to and including the
// user turn that started this reply
func (p *Pending) Messages() []llm.Message {
	return p.messages
}

// Apply accumulates one stream event
func (p *Pending) Apply(ev llm.Event) {
	if p.finalized {
		return
	}
	switch ev.Type {
	case llm.EventReasoningDelta:
		p.reasoning.WriteString(ev.Text)
	case llm.EventContentDelta:
		p.content.WriteString(ev.Text)
	case llm.EventError:
		if p.err == nil {
			p.err = ev.Err
			if p.err == nil {
				p.err = fmt.Errorf("%s", ev.Text)
			}
		}
	}
}

// Content returns the answer accumulated so far
func (p *Pending) Content() string {
	return p.content.String()
}

// Reasoning returns the reasoning accumulated so far
func (p *Pending) Reasoning() string {
	return p.reasoning.String()
}

// Err returns the stream error, if one was applied
func (p *Pending) Err() error {
	return p.err
}

// Elapsed returns the time since the reply began
func (p *Pending) Elapsed() time.Duration {
	return time.Since(p.started)
}

// Finalize freezes the reply and appends it to the session, keeping
// whatever was received before an error. Later calls return the same turn.
func (p *Pending) Finalize(ctx context.Context) (Turn, error) {
	if p.finalized {
		return p.turn, nil
	}
	p.finalized = true
	p.cancel()

	p.turn = p.session.stamp(Turn{
		Role:      RoleAssistant,
		Content:   p.content.String(),
		Reasoning: p.reasoning.String(),
	})
	return p.turn, p.session.finish(ctx, p.turn)
}
