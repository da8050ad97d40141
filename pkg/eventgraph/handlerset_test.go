package eventgraph

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(context.Context, None, int) error { return nil }

// TestHandlerSet_Add_ReportsEmptyTransition verifies the empty -> non-empty
// transition signal used for liveness propagation.
func TestHandlerSet_Add_ReportsEmptyTransition(t *testing.T) {
	set := newHandlerSet[None, int](KindSync)

	_, first := set.add(noopHandler)
	assert.True(t, first)

	_, second := set.add(noopHandler)
	assert.False(t, second)
}

// TestHandlerSet_Remove_ReportsEmptyTransition verifies the non-empty ->
// empty transition signal.
func TestHandlerSet_Remove_ReportsEmptyTransition(t *testing.T) {
	set := newHandlerSet[None, int](KindSync)
	id1, _ := set.add(noopHandler)
	id2, _ := set.add(noopHandler)

	assert.False(t, set.remove(id1))
	assert.True(t, set.remove(id2))
	assert.False(t, set.remove(id2)) // already gone
}

// TestHandlerSet_Clear reports whether anything was removed.
func TestHandlerSet_Clear(t *testing.T) {
	set := newHandlerSet[None, int](KindSync)
	assert.False(t, set.clear())

	set.add(noopHandler)
	assert.True(t, set.clear())
	assert.True(t, set.empty())
}

// TestHandlerSet_InvokeSequential_RegistrationOrder verifies delivery order
// matches insertion order.
func TestHandlerSet_InvokeSequential_RegistrationOrder(t *testing.T) {
	set := newHandlerSet[None, int](KindSync)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		set.add(func(context.Context, None, int) error {
			order = append(order, name)
			return nil
		})
	}

	err := set.invokeSequential(context.Background(), None{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

// TestHandlerSet_InvokeSequential_CancelledContext verifies remaining
// handlers are skipped once the context ends.
func TestHandlerSet_InvokeSequential_CancelledContext(t *testing.T) {
	set := newHandlerSet[None, int](KindSync)
	ctx, cancel := context.WithCancel(context.Background())

	var ran []int
	set.add(func(context.Context, None, int) error {
		ran = append(ran, 1)
		cancel() // signal arrives while this member runs
		return nil
	})
	set.add(func(context.Context, None, int) error {
		ran = append(ran, 2)
		return nil
	})

	err := set.invokeSequential(ctx, None{}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1}, ran, "second handler must not start after cancellation")
}

// TestHandlerSet_SnapshotIsolation verifies a raise in flight is unaffected
// by concurrent add/remove.
func TestHandlerSet_SnapshotIsolation(t *testing.T) {
	set := newHandlerSet[None, int](KindSync)

	var calls int
	blocker := make(chan struct{})
	started := make(chan struct{})
	set.add(func(context.Context, None, int) error {
		calls++
		close(started)
		<-blocker
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- set.invokeSequential(context.Background(), None{}, 0)
	}()

	<-started
	// Mutate mid-raise: the in-flight snapshot must not see this handler.
	lateID, _ := set.add(func(context.Context, None, int) error {
		calls += 100
		return nil
	})
	close(blocker)

	require.NoError(t, <-done)
	assert.Equal(t, 1, calls)
	set.remove(lateID)
}

// TestHandlerSet_ConcurrentMutation hammers add/remove from many goroutines.
func TestHandlerSet_ConcurrentMutation(t *testing.T) {
	set := newHandlerSet[None, int](KindSync)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id, _ := set.add(noopHandler)
				_ = set.invokeSequential(context.Background(), None{}, 0)
				set.remove(id)
			}
		}()
	}
	wg.Wait()

	assert.True(t, set.empty())
}
