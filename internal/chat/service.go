package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/s33g/lumin/internal/conversation"
	"github.com/s33g/lumin/internal/llm"
	"github.com/s33g/lumin/internal/metrics"
)

// ErrNoCredential is returned when no API key is configured
var ErrNoCredential = errors.New("no API key configured")

// Outcomes recorded for finished streams
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeTruncated = "truncated"
	OutcomeAuth      = "auth_error"
	OutcomeError     = "error"
)

// Service runs one question/answer exchange at a time per session
type Service struct {
	client  *llm.Client
	metrics *metrics.StreamMetrics
	logger  zerolog.Logger

	mu         sync.RWMutex
	settings   llm.Settings
	credential string
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records stream metrics
func WithMetrics(m *metrics.StreamMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a chat service
func NewService(client *llm.Client, settings llm.Settings, credential string, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		client:     client,
		settings:   settings,
		credential: credential,
		logger:     logger.With().Str("component", "chat").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update replaces the request settings and credential. Exchanges already
// running keep the values they started with.
func (s *Service) Update(settings llm.Settings, credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.credential = credential
}

// Settings returns the current request settings
func (s *Service) Settings() llm.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Service) snapshot() (llm.Settings, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, s.credential
}

// Ask appends prompt to the session, streams the reply and appends the
// assistant turn. onEvent, if set, sees every event in order as it arrives.
//
// When the stream ends with an error event the partial turn is still
// appended and returned together with that error.
func (s *Service) Ask(ctx context.Context, sess *conversation.Session, prompt string, onEvent func(llm.Event)) (conversation.Turn, error) {
	settings, credential := s.snapshot()
	if credential == "" {
		return conversation.Turn{}, ErrNoCredential
	}

	pending, err := sess.Begin(ctx, prompt)
	if err != nil {
		return conversation.Turn{}, err
	}

	logger := s.logger.With().
		Str("request_id", uuid.NewString()).
		Str("session", sess.ID()).
		Str("model", settings.Model).
		Logger()
	logger.Debug().Int("messages", len(pending.Messages())).Msg("Opening stream")

	stream := s.client.Stream(pending.Context(), pending.Messages(), settings, credential)
	counts := make(map[llm.EventType]int)
	firstToken := false

	for ev := range stream.All() {
		if !firstToken && ev.Type != llm.EventError {
			firstToken = true
			s.metrics.ObserveFirstToken(pending.Elapsed())
		}
		counts[ev.Type]++
		s.metrics.ObserveEvent(string(ev.Type))

		pending.Apply(ev)
		if onEvent != nil {
			onEvent(ev)
		}
	}

	// The turn is kept even when the caller's context is already done.
	turn, saveErr := pending.Finalize(context.WithoutCancel(ctx))

	stats := stream.Stats()
	streamErr := pending.Err()
	outcome := Outcome(streamErr)

	s.metrics.ObserveStream(outcome, pending.Elapsed(), stats.SkippedFrames)
	s.metrics.ObserveTokens(string(conversation.RoleAssistant), turn.Tokens)

	event := logger.Info()
	if streamErr != nil && outcome != OutcomeCancelled {
		event = logger.Warn().Err(streamErr)
	}
	event.
		Str("outcome", outcome).
		Int("content_deltas", counts[llm.EventContentDelta]).
		Int("reasoning_deltas", counts[llm.EventReasoningDelta]).
		Int("frames", stats.Frames).
		Int("skipped_frames", stats.SkippedFrames).
		Bool("saw_done", stats.SawDone).
		Int("tokens", turn.Tokens).
		Dur("elapsed", pending.Elapsed()).
		Msg("Stream finished")

	if saveErr != nil {
		logger.Error().Err(saveErr).Msg("Failed to save assistant turn")
	}

	if streamErr != nil {
		return turn, fmt.Errorf("stream failed: %w", streamErr)
	}
	return turn, saveErr
}

// Outcome classifies how a stream ended
func Outcome(err error) string {
	var te *llm.TransportError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, llm.ErrTruncated):
		return OutcomeTruncated
	case errors.As(err, &te) && te.IsAuth():
		return OutcomeAuth
	default:
		return OutcomeError
	}
}
