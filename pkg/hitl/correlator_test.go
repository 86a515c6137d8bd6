package hitl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitResolve(t *testing.T) {
	c := NewCorrelator(5 * time.Second)

	var wg sync.WaitGroup
	var decision *Decision
	wg.Add(1)
	go func() {
		defer wg.Done()
		decision = c.Await(context.Background(), "s1", "int-1")
	}()

	require.Eventually(t, func() bool { return c.HasPending("s1") },
		time.Second, 5*time.Millisecond)

	assert.True(t, c.Resolve("s1", "int-1", Approve()))
	wg.Wait()

	require.NotNil(t, decision)
	assert.True(t, decision.Approved)
}

func TestAwaitTimeout(t *testing.T) {
	c := NewCorrelator(20 * time.Millisecond)

	decision := c.Await(context.Background(), "s1", "int-1")
	require.NotNil(t, decision)
	assert.False(t, decision.Approved)
	assert.Equal(t, "Approval timeout", decision.Message)

	// The slot is gone; a late decision resolves nothing.
	assert.False(t, c.Resolve("s1", "int-1", Approve()))
}

func TestAwaitCancelled(t *testing.T) {
	c := NewCorrelator(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var decision *Decision
	wg.Add(1)
	go func() {
		defer wg.Done()
		decision = c.Await(ctx, "s1", "int-1")
	}()

	require.Eventually(t, func() bool { return c.HasPending("s1") },
		time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()

	require.NotNil(t, decision)
	assert.False(t, decision.Approved)
	assert.Equal(t, "Request cancelled", decision.Message)
}

func TestResolveUnknownSlot(t *testing.T) {
	c := NewCorrelator(time.Second)
	assert.False(t, c.Resolve("s1", "never-registered", Approve()))
}

func TestDoubleResolve(t *testing.T) {
	c := NewCorrelator(5 * time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Await(context.Background(), "s1", "int-1")
	}()
	require.Eventually(t, func() bool { return c.HasPending("s1") },
		time.Second, 5*time.Millisecond)

	assert.True(t, c.Resolve("s1", "int-1", Approve()))
	assert.False(t, c.Resolve("s1", "int-1", Reject("late")))
	wg.Wait()
}

func TestAwaitResolvedSlotIgnored(t *testing.T) {
	c := NewCorrelator(5 * time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Await(context.Background(), "s1", "int-1")
	}()
	require.Eventually(t, func() bool { return c.HasPending("s1") },
		time.Second, 5*time.Millisecond)
	c.Resolve("s1", "int-1", Approve())
	wg.Wait()

	// Re-registering the resolved slot returns immediately with nil.
	assert.Nil(t, c.Await(context.Background(), "s1", "int-1"))

	// After Forget the id can be reused.
	c.Forget("s1")
	done := make(chan *Decision, 1)
	go func() { done <- c.Await(context.Background(), "s1", "int-1") }()
	require.Eventually(t, func() bool { return c.HasPending("s1") },
		time.Second, 5*time.Millisecond)
	c.Resolve("s1", "int-1", Approve())
	assert.True(t, (<-done).Approved)
}

func TestCancelPending(t *testing.T) {
	c := NewCorrelator(5 * time.Second)

	results := make(chan *Decision, 3)
	for _, id := range []string{"a", "b"} {
		id := id
		go func() { results <- c.Await(context.Background(), "s1", id) }()
	}
	go func() { results <- c.Await(context.Background(), "s2", "c") }()

	require.Eventually(t, func() bool {
		return c.PendingCount("s1") == 2 && c.HasPending("s2")
	}, time.Second, 5*time.Millisecond)

	// Only s1's slots are cancelled.
	assert.Equal(t, 2, c.CancelPending("s1"))
	for i := 0; i < 2; i++ {
		d := <-results
		assert.False(t, d.Approved)
		assert.Equal(t, "Request cancelled", d.Message)
	}
	assert.False(t, c.HasPending("s1"))
	assert.True(t, c.HasPending("s2"))

	assert.Equal(t, 0, c.CancelPending("s1"))

	c.Resolve("s2", "c", Approve())
	assert.True(t, (<-results).Approved)
}
