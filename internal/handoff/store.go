// Package handoff implements a short-lived, single-read store used to
// pass a freshly generated secret (a staff-created patron password, an
// API key) from the creation call to a one-time retrieval call.
package handoff

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

const DefaultTTL = 5 * time.Minute

// Entry is one stored secret with its expiry window.
type Entry struct {
	Secret    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Backing is the storage behind the store. Take must remove the entry
// atomically with respect to concurrent Take calls on the same token; a
// clustered deployment can substitute a shared KV with conditional
// delete-on-read without touching Store.
type Backing interface {
	Put(token string, e Entry)
	Take(token string) (Entry, bool)
	Delete(token string)
}

type memoryBacking struct {
	mu sync.Mutex
	m  map[string]Entry
}

func newMemoryBacking() *memoryBacking {
	return &memoryBacking{m: make(map[string]Entry)}
}

func (b *memoryBacking) Put(token string, e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[token] = e
}

func (b *memoryBacking) Take(token string) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[token]
	if ok {
		delete(b.m, token)
	}
	return e, ok
}

func (b *memoryBacking) Delete(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, token)
}

// Store hands out unguessable tokens for secrets readable at most once.
// Expiry timers are best effort: they never block shutdown, and an
// expired entry that outlives its timer is still rejected on Consume.
type Store struct {
	backing Backing
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Store)

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithBacking(b Backing) Option {
	return func(s *Store) { s.backing = b }
}

func New(opts ...Option) *Store {
	s := &Store{
		backing: newMemoryBacking(),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put stores the secret under a fresh random token and returns it.
func (s *Store) Put(secret string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate handoff token: %w", err)
	}
	token := base64.URLEncoding.EncodeToString(raw)

	now := s.now().UTC()
	s.backing.Put(token, Entry{
		Secret:    secret,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
	time.AfterFunc(s.ttl, func() { s.backing.Delete(token) })
	return token, nil
}

// Consume removes and returns the secret. Never-issued, already
// consumed and expired tokens are indistinguishable: all report false.
func (s *Store) Consume(token string) (string, bool) {
	e, ok := s.backing.Take(token)
	if !ok {
		return "", false
	}
	if s.now().UTC().After(e.ExpiresAt) {
		return "", false
	}
	return e.Secret, true
}
