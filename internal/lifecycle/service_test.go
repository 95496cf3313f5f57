package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cafe-system/internal/domain"
	"cafe-system/internal/hub"
	"cafe-system/internal/store"
)

type stubResolver struct {
	lines map[string]ResolvedLine
}

func (r *stubResolver) ResolveLine(productID, size string, addons []string) (ResolvedLine, error) {
	res, ok := r.lines[productID]
	if !ok {
		return ResolvedLine{}, fmt.Errorf("unknown product %s", productID)
	}
	return res, nil
}

func newTestService(t *testing.T) (*Service, *hub.Hub) {
	t.Helper()
	snap, err := store.NewFileSnapshotter(t.TempDir())
	require.NoError(t, err)
	h := hub.New(32, zap.NewNop())
	resolver := &stubResolver{lines: map[string]ResolvedLine{
		"p1": {
			Name: "Latte",
			Unit: 50,
			Size: &domain.LineOption{Name: "Large", Price: 10},
			Addons: []domain.LineOption{
				{Name: "Extra Shot", Price: 5},
			},
		},
	}}
	return New(store.New(snap, zap.NewNop()), h, resolver, zap.NewNop()), h
}

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

func assertNoEvent(t *testing.T, c <-chan *domain.Order) {
	t.Helper()
	select {
	case o := <-c:
		t.Fatalf("unexpected event for order %s (%s)", o.ID, o.Status)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlaceComputesTotalAndStartsPending(t *testing.T) {
	svc, _ := newTestService(t)

	o, err := svc.Place(context.Background(), PlaceRequest{
		TableID: 4,
		Items:   []PlaceLine{{Name: "Latte", Qty: 2, Price: 50}},
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, o.Total)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, 4, o.TableID)
	assert.NotEmpty(t, o.ID)
	assert.False(t, o.CreatedAt.IsZero())
}

func TestPlaceWithSurcharges(t *testing.T) {
	svc, _ := newTestService(t)

	o, err := svc.Place(context.Background(), PlaceRequest{
		TableID: 2,
		Items: []PlaceLine{
			{
				Name:   "Latte",
				Qty:    2,
				Price:  50,
				Size:   &domain.LineOption{Name: "Large", Price: 10},
				Addons: []domain.LineOption{{Name: "Extra Shot", Price: 5}},
			},
			{Name: "Croissant", Qty: 1, Price: 30},
		},
	})
	require.NoError(t, err)
	// (50+10+5)*2 + 30
	assert.Equal(t, 160.0, o.Total)
}

func TestPlaceResolvesCatalogPrices(t *testing.T) {
	svc, _ := newTestService(t)

	o, err := svc.Place(context.Background(), PlaceRequest{
		TableID: 1,
		Items: []PlaceLine{{
			ProductID: "p1",
			Qty:       1,
			Size:      &domain.LineOption{Name: "Large"},
			Addons:    []domain.LineOption{{Name: "Extra Shot"}},
		}},
	})
	require.NoError(t, err)

	require.Len(t, o.Items, 1)
	line := o.Items[0]
	assert.Equal(t, "Latte", line.Name)
	assert.Equal(t, 50.0, line.Price)
	require.NotNil(t, line.Size)
	assert.Equal(t, 10.0, line.Size.Price)
	assert.Equal(t, 65.0, o.Total)
}

func TestPlaceValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  PlaceRequest
	}{
		{"empty items", PlaceRequest{TableID: 1}},
		{"zero quantity", PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 0, Price: 50}}}},
		{"negative quantity", PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: -1, Price: 50}}}},
		{"no price", PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 1}}}},
		{"unknown product", PlaceRequest{TableID: 1, Items: []PlaceLine{{ProductID: "nope", Qty: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Place(ctx, tt.req)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, svc.Orders(), "rejected placement must not create an order")
		})
	}
}

func TestAdvanceFullLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Place(ctx, PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 1, Price: 50}}})
	require.NoError(t, err)

	for _, target := range []domain.Status{
		domain.StatusPreparing,
		domain.StatusReady,
		domain.StatusServed,
		domain.StatusCompleted,
	} {
		o, err = svc.Advance(ctx, o.ID, target)
		require.NoError(t, err)
		assert.Equal(t, target, o.Status)
	}
}

func TestAdvanceFastTrack(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Place(ctx, PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 1, Price: 50}}})
	require.NoError(t, err)

	// kitchen may skip PREPARING entirely
	o, err = svc.Advance(ctx, o.ID, domain.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, o.Status)
}

func TestAdvanceRejectsUnreachableStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Place(ctx, PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 1, Price: 50}}})
	require.NoError(t, err)

	_, err = svc.Advance(ctx, o.ID, domain.StatusServed)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := svc.Advance(ctx, o.ID, domain.StatusPending) // no regress either
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Nil(t, got)

	all := svc.Orders()
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusPending, all[0].Status, "failed transition must leave the order unchanged")
}

func TestAdvanceUnknownOrder(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Advance(context.Background(), "missing", domain.StatusReady)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdvanceIdempotent(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()

	o, err := svc.Place(ctx, PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 1, Price: 50}}})
	require.NoError(t, err)

	sub := h.Subscribe()
	defer sub.Close()

	first, err := svc.Advance(ctx, o.ID, domain.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, recvOne(t, sub.C).Status)

	// re-applying the satisfied command: no error, no change, no rebroadcast
	second, err := svc.Advance(ctx, o.ID, domain.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Total, second.Total)
	assertNoEvent(t, sub.C)
}

func TestConcurrentDuplicateAdvance(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()

	o, err := svc.Place(ctx, PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 1, Price: 50}}})
	require.NoError(t, err)

	sub := h.Subscribe()
	defer sub.Close()

	// two connections send mark_ready for the same order at once
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Advance(ctx, o.ID, domain.StatusReady)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// exactly one real transition is broadcast
	assert.Equal(t, domain.StatusReady, recvOne(t, sub.C).Status)
	assertNoEvent(t, sub.C)
}

func TestBroadcastMatchesCommittedOrder(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()

	sub := h.Subscribe()
	defer sub.Close()

	placed, err := svc.Place(ctx, PlaceRequest{
		TableID: 4,
		Items:   []PlaceLine{{Name: "Latte", Qty: 2, Price: 50, Details: "no sugar"}},
	})
	require.NoError(t, err)

	got := recvOne(t, sub.C)
	assert.Equal(t, placed, got, "subscribers receive the committed order field-for-field")
}

func TestDisconnectedSubscriberDoesNotAffectOthers(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()

	gone := h.Subscribe()
	stays := h.Subscribe()
	gone.Close()

	o, err := svc.Place(ctx, PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 1, Price: 50}}})
	require.NoError(t, err)
	_, err = svc.Advance(ctx, o.ID, domain.StatusPreparing)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, recvOne(t, stays.C).Status)
	assert.Equal(t, domain.StatusPreparing, recvOne(t, stays.C).Status)
}

func TestTotalImmutableAcrossTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.Place(ctx, PlaceRequest{TableID: 1, Items: []PlaceLine{{Name: "Latte", Qty: 3, Price: 40}}})
	require.NoError(t, err)
	require.Equal(t, 120.0, o.Total)

	o, err = svc.Advance(ctx, o.ID, domain.StatusReady)
	require.NoError(t, err)
	assert.Equal(t, 120.0, o.Total)
}
