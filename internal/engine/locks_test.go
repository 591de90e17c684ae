package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAgentLocks_EvictsEntryOnRelease(t *testing.T) {
	locks := newAgentLocks(nil, zap.NewNop())

	release, err := locks.acquire(context.Background(), "alice")
	require.NoError(t, err)

	locks.mu.Lock()
	assert.Len(t, locks.local, 1, "запись живет, пока лок удерживается")
	locks.mu.Unlock()

	release()

	locks.mu.Lock()
	assert.Empty(t, locks.local, "после release мапа не растет")
	locks.mu.Unlock()
}

func TestAgentLocks_SerializesSameAgent(t *testing.T) {
	locks := newAgentLocks(nil, zap.NewNop())

	release1, err := locks.acquire(context.Background(), "alice")
	require.NoError(t, err)

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		release2, err := locks.acquire(context.Background(), "alice")
		require.NoError(t, err)
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("второй acquire прошел при удерживаемом локе")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	wg.Wait()

	locks.mu.Lock()
	assert.Empty(t, locks.local)
	locks.mu.Unlock()
}

func TestAgentLocks_IndependentAgentsDoNotBlock(t *testing.T) {
	locks := newAgentLocks(nil, zap.NewNop())

	releaseA, err := locks.acquire(context.Background(), "alice")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := locks.acquire(context.Background(), "bob")
		require.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("лок чужого агента не должен блокировать")
	}
}
