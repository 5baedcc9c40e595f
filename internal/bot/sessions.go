package bot

import (
	"context"
	"sync"

	"github.com/s33g/lumin/internal/conversation"
)

// sessionRegistry holds one conversation per channel, resumed from the
// store on first use
type sessionRegistry struct {
	store   conversation.Store
	counter *conversation.TokenCounter

	mu        sync.Mutex
	byChannel map[string]*conversation.Session
}

func newSessionRegistry(store conversation.Store, counter *conversation.TokenCounter) *sessionRegistry {
	return &sessionRegistry{
		store:     store,
		counter:   counter,
		byChannel: make(map[string]*conversation.Session),
	}
}

// Get returns the channel's session, loading its history if needed
func (r *sessionRegistry) Get(ctx context.Context, channelID, systemPrompt, model string) (*conversation.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.byChannel[channelID]; ok {
		return sess, nil
	}

	sess, err := conversation.Resume(ctx, r.store, channelID, systemPrompt,
		conversation.WithTokenCounter(r.counter, model))
	if err != nil {
		return nil, err
	}
	r.byChannel[channelID] = sess
	return sess, nil
}

// Lookup returns the channel's session if it is loaded
func (r *sessionRegistry) Lookup(channelID string) (*conversation.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byChannel[channelID]
	return sess, ok
}

// CancelAll stops every reply in progress
func (r *sessionRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.byChannel {
		sess.Cancel()
	}
}
