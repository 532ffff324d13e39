// Package provenance tells the local client's own prompts apart from user
// messages that reach the shared session from elsewhere (another client,
// the server's own UI, a script).
package provenance

import (
	"strings"
	"sync"
	"time"
)

const DefaultTokenTTL = 10 * time.Minute

// Tagger tracks which user messages this client submitted. It combines a
// one-shot flag, armed before each submission, with per-submission
// correlation tokens that the server echoes back as the message id.
type Tagger struct {
	mu        sync.Mutex
	expecting bool
	pending   map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
}

type Option func(*Tagger)

func WithTTL(ttl time.Duration) Option {
	return func(t *Tagger) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tagger) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTagger(opts ...Option) *Tagger {
	t := &Tagger{
		pending: map[string]time.Time{},
		ttl:     DefaultTokenTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Expect arms the tagger for a submission about to be sent. It must run
// before the network call so that the echo cannot outrun it.
func (t *Tagger) Expect(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expecting = true
	if token = strings.TrimSpace(token); token != "" {
		t.pruneLocked()
		t.pending[token] = t.now()
	}
}

// Classify consumes the provenance state for a newly created user message
// and reports whether it came from outside this client.
func (t *Tagger) Classify(messageID string) (external bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	if messageID = strings.TrimSpace(messageID); messageID != "" {
		if _, ok := t.pending[messageID]; ok {
			delete(t.pending, messageID)
			t.expecting = false
			return false
		}
	}
	if t.expecting {
		t.expecting = false
		return false
	}
	return true
}

// Forget drops a token whose submission failed and disarms the flag.
func (t *Tagger) Forget(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expecting = false
	delete(t.pending, strings.TrimSpace(token))
}

func (t *Tagger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expecting = false
	t.pending = map[string]time.Time{}
}

func (t *Tagger) Expecting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expecting
}

// Pending returns the number of unconsumed correlation tokens.
func (t *Tagger) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	return len(t.pending)
}

func (t *Tagger) pruneLocked() {
	if len(t.pending) == 0 {
		return
	}
	cutoff := t.now().Add(-t.ttl)
	for token, at := range t.pending {
		if at.Before(cutoff) {
			delete(t.pending, token)
		}
	}
}
