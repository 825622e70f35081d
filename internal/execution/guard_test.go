package execution

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardAcquireRelease(t *testing.T) {
	guard := NewGuard(zerolog.Nop())

	token, ok := guard.TryAcquire("a1")
	require.True(t, ok)
	require.NotEmpty(t, token)
	assert.True(t, guard.Held("a1"))
	assert.Equal(t, 1, guard.InFlight())

	// Second acquire for the same agent fails without blocking
	_, ok = guard.TryAcquire("a1")
	assert.False(t, ok)

	// A different agent is unaffected
	_, ok = guard.TryAcquire("a2")
	assert.True(t, ok)
	assert.Equal(t, 2, guard.InFlight())

	guard.Release("a1", token)
	assert.False(t, guard.Held("a1"))

	// Released guard can be re-acquired
	_, ok = guard.TryAcquire("a1")
	assert.True(t, ok)
}

func TestGuardStaleTokenRelease(t *testing.T) {
	guard := NewGuard(zerolog.Nop())

	stale, ok := guard.TryAcquire("a1")
	require.True(t, ok)

	// Reaper force-releases, another execution takes over
	require.True(t, guard.ForceRelease("a1"))
	fresh, ok := guard.TryAcquire("a1")
	require.True(t, ok)
	require.NotEqual(t, stale, fresh)

	// The late finalizer's release must not unlock the new holder
	guard.Release("a1", stale)
	assert.True(t, guard.Held("a1"))

	guard.Release("a1", fresh)
	assert.False(t, guard.Held("a1"))
}

func TestGuardForceReleaseIdle(t *testing.T) {
	guard := NewGuard(zerolog.Nop())

	assert.False(t, guard.ForceRelease("a1"))
}

func TestGuardConcurrentAcquire(t *testing.T) {
	guard := NewGuard(zerolog.Nop())

	const attempts = 50
	var wg sync.WaitGroup
	acquired := make(chan string, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token, ok := guard.TryAcquire("a1"); ok {
				acquired <- token
			}
		}()
	}
	wg.Wait()
	close(acquired)

	// Exactly one concurrent attempt can win the guard
	tokens := make([]string, 0, attempts)
	for token := range acquired {
		tokens = append(tokens, token)
	}
	require.Len(t, tokens, 1)
	assert.True(t, guard.Held("a1"))
}
