package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, sub *Subscription[int], n int) []int {
	t.Helper()

	events := make([]int, 0, n)
	timeout := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case event, ok := <-sub.C():
			require.True(t, ok, "subscription closed before %d events", n)
			events = append(events, event)
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(events))
		}
	}
	return events
}

func assertNoEvent(t *testing.T, sub *Subscription[int]) {
	t.Helper()

	select {
	case event := <-sub.C():
		t.Fatalf("unexpected event %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DeliversInPublishOrder(t *testing.T) {
	h := New[int](nil)
	defer h.Close()

	sub, err := h.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 100; i++ {
		h.Publish(i)
	}

	events := collect(t, sub, 100)
	for i, event := range events {
		assert.Equal(t, i, event)
	}
}

func TestHub_SubscriberMissesEarlierEvents(t *testing.T) {
	h := New[int](nil)
	defer h.Close()

	early, err := h.Subscribe()
	require.NoError(t, err)
	defer early.Close()

	h.Publish(1)

	late, err := h.Subscribe()
	require.NoError(t, err)
	defer late.Close()

	h.Publish(2)

	assert.Equal(t, []int{1, 2}, collect(t, early, 2))
	assert.Equal(t, []int{2}, collect(t, late, 1))
	assertNoEvent(t, late)
}

func TestHub_FanOutIndependentOfConsumptionRate(t *testing.T) {
	h := New[int](nil)
	defer h.Close()

	fast, err := h.Subscribe()
	require.NoError(t, err)
	defer fast.Close()

	slow, err := h.Subscribe()
	require.NoError(t, err)
	defer slow.Close()

	const n = 500

	// The slow subscriber consumes nothing while all events are
	// published; publishes must not block on it.
	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < n; i++ {
			delivered := h.Publish(i)
			assert.Equal(t, 2, delivered)
		}
	}()

	fastEvents := collect(t, fast, n)

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked by slow subscriber")
	}

	slowEvents := collect(t, slow, n)

	assert.Equal(t, fastEvents, slowEvents)
	for i := 0; i < n; i++ {
		assert.Equal(t, i, fastEvents[i])
	}
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := New[int](nil)
	defer h.Close()

	sub, err := h.Subscribe()
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	// Publish after unsubscribe is silently dropped
	assert.Equal(t, 0, h.Publish(42))

	// Delivery channel is closed
	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestHub_CloseShutsDownSubscribers(t *testing.T) {
	h := New[int](nil)

	sub, err := h.Subscribe()
	require.NoError(t, err)

	h.Close()

	select {
	case _, ok := <-sub.C():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after hub close")
	}

	_, err = h.Subscribe()
	require.Error(t, err)
}

func TestHub_SubscriberCount(t *testing.T) {
	h := New[int](nil)
	defer h.Close()

	assert.Equal(t, 0, h.SubscriberCount())

	a, err := h.Subscribe()
	require.NoError(t, err)
	b, err := h.Subscribe()
	require.NoError(t, err)

	assert.Equal(t, 2, h.SubscriberCount())

	a.Close()
	assert.Equal(t, 1, h.SubscriberCount())

	b.Close()
	assert.Equal(t, 0, h.SubscriberCount())
}
