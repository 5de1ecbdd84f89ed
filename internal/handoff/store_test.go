package handoff

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPutConsumeRoundTrip(t *testing.T) {
	s := New()

	token, err := s.Put("s3cr3t")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, ok := s.Consume(token)
	require.True(t, ok)
	require.Equal(t, "s3cr3t", got)
}

func TestConsumeIsSingleRead(t *testing.T) {
	s := New()

	token, err := s.Put("once")
	require.NoError(t, err)

	_, ok := s.Consume(token)
	require.True(t, ok)

	_, ok = s.Consume(token)
	require.False(t, ok)
}

func TestUnknownTokenReadsAsNotFound(t *testing.T) {
	s := New()
	_, ok := s.Consume("never-issued")
	require.False(t, ok)
}

func TestTokensAreUnique(t *testing.T) {
	s := New()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := s.Put("x")
		require.NoError(t, err)
		require.False(t, seen[token])
		seen[token] = true
	}
}

func TestConcurrentConsumeExactlyOneWinner(t *testing.T) {
	s := New()

	for i := 0; i < 50; i++ {
		token, err := s.Put("contended")
		require.NoError(t, err)

		var wins int64
		var wg sync.WaitGroup
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := s.Consume(token); ok {
					atomic.AddInt64(&wins, 1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int64(1), wins)
	}
}

func TestExpiredTokenReadsAsNotFound(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	s := New(WithTTL(time.Minute), WithClock(clock))

	token, err := s.Put("fleeting")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	// Expired entries read exactly like tokens that never existed, even
	// if the cleanup timer has not fired yet.
	_, ok := s.Consume(token)
	require.False(t, ok)

	_, ok = s.Consume(token)
	require.False(t, ok)
}

func TestCustomBacking(t *testing.T) {
	b := newMemoryBacking()
	s := New(WithBacking(b), WithTTL(time.Hour))

	token, err := s.Put("kept")
	require.NoError(t, err)

	e, ok := b.Take(token)
	require.True(t, ok)
	require.Equal(t, "kept", e.Secret)
	require.Equal(t, e.CreatedAt.Add(time.Hour), e.ExpiresAt)
}
