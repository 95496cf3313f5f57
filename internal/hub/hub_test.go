package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cafe-system/internal/domain"
)

func recvOne(t *testing.T, c <-chan *domain.Order) *domain.Order {
	t.Helper()
	select {
	case o := <-c:
		return o
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := New(4, zap.NewNop())
	a := h.Subscribe()
	b := h.Subscribe()

	h.Publish(&domain.Order{ID: "1"})

	assert.Equal(t, "1", recvOne(t, a.C).ID)
	assert.Equal(t, "1", recvOne(t, b.C).ID)
}

func TestSubscribersObserveCommitOrder(t *testing.T) {
	h := New(8, zap.NewNop())
	a := h.Subscribe()
	b := h.Subscribe()

	for _, id := range []string{"1", "2", "3"} {
		h.Publish(&domain.Order{ID: id})
	}
	for _, sub := range []*Subscription{a, b} {
		for _, want := range []string{"1", "2", "3"} {
			assert.Equal(t, want, recvOne(t, sub.C).ID)
		}
	}
}

func TestSlowSubscriberDroppedNotBlocking(t *testing.T) {
	h := New(1, zap.NewNop())
	slow := h.Subscribe() // never drained
	fast := h.Subscribe()

	publish := func(id string) {
		done := make(chan struct{})
		go func() {
			h.Publish(&domain.Order{ID: id})
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a slow subscriber")
		}
	}

	// buffer of 1: the second publish overflows the undrained slow
	// subscriber while the drained fast one keeps up
	publish("1")
	assert.Equal(t, "1", recvOne(t, fast.C).ID)
	publish("2")
	assert.Equal(t, "2", recvOne(t, fast.C).ID)

	// the slow subscriber's channel ends after the drop
	assert.Equal(t, "1", recvOne(t, slow.C).ID)
	_, open := <-slow.C
	assert.False(t, open)
	assert.Equal(t, 1, h.Len())
}

func TestUnsubscribeIdempotent(t *testing.T) {
	h := New(4, zap.NewNop())
	a := h.Subscribe()
	b := h.Subscribe()

	a.Close()
	a.Close()
	require.Equal(t, 1, h.Len())

	// remaining subscriber still receives updates
	h.Publish(&domain.Order{ID: "1"})
	assert.Equal(t, "1", recvOne(t, b.C).ID)

	_, open := <-a.C
	assert.False(t, open)
}
