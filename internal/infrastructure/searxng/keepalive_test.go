package searxng

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPinger struct {
	mu    sync.Mutex
	words []string
	err   error
}

func (m *mockPinger) Ping(ctx context.Context, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words = append(m.words, word)
	return m.err
}

func (m *mockPinger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.words)
}

func TestNewKeepAlive_Defaults(t *testing.T) {
	k := NewKeepAlive(&mockPinger{}, 0, 0, zerolog.Nop())

	assert.Equal(t, 600*time.Second, k.interval)
	assert.Equal(t, 10*time.Second, k.pingTimeout)
}

func TestKeepAlive_PingsUntilCancelled(t *testing.T) {
	pinger := &mockPinger{}
	k := NewKeepAlive(pinger, 10*time.Millisecond, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()

	assert.Eventually(t, func() bool { return pinger.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("keep-alive did not stop")
	}

	for _, w := range pinger.words {
		assert.Contains(t, pingWords, w)
	}
}

func TestKeepAlive_FailuresDoNotStopLoop(t *testing.T) {
	pinger := &mockPinger{err: errors.New("connection refused")}
	k := NewKeepAlive(pinger, 5*time.Millisecond, time.Second, zerolog.Nop())

	var mu sync.Mutex
	var outcomes []bool
	k.OnPing(func(ok bool) {
		mu.Lock()
		outcomes = append(outcomes, ok)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, k.Run(ctx))
	}()

	assert.Eventually(t, func() bool { return pinger.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, outcomes)
	assert.False(t, outcomes[0])
}
