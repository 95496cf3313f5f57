// Package lifecycle implements the order lifecycle: placement and
// status transitions. Every mutation flows through one Service method,
// which commits to the store and then publishes to the hub under a
// single mutex so all subscribers observe mutations in commit order.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"cafe-system/internal/domain"
	"cafe-system/internal/hub"
	"cafe-system/internal/store"
)

// ResolvedLine is the catalog's answer for one order line: the current
// price components, snapshotted into the order at placement time.
type ResolvedLine struct {
	Name   string
	Unit   float64
	Size   *domain.LineOption
	Addons []domain.LineOption
}

// PriceResolver resolves current catalog prices. Used only at placement
// time; the core never caches catalog state.
type PriceResolver interface {
	ResolveLine(productID, size string, addons []string) (ResolvedLine, error)
}

type PlaceLine struct {
	ProductID string              `json:"productId,omitempty"`
	Name      string              `json:"name"`
	Qty       int                 `json:"qty"`
	Price     float64             `json:"price,omitempty"`
	Size      *domain.LineOption  `json:"size,omitempty"`
	Addons    []domain.LineOption `json:"addons,omitempty"`
	Details   string              `json:"details,omitempty"`
}

type PlaceRequest struct {
	TableID int         `json:"tableId"`
	Items   []PlaceLine `json:"items"`
}

type Service struct {
	mu     sync.Mutex // serializes commit+publish, one mutation at a time
	store  *store.Store
	hub    *hub.Hub
	prices PriceResolver
	log    *zap.Logger
}

func New(st *store.Store, h *hub.Hub, prices PriceResolver, log *zap.Logger) *Service {
	return &Service{store: st, hub: h, prices: prices, log: log}
}

// Place validates the payload, snapshots prices, computes the total and
// creates the order in PENDING. The only operation that creates orders.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", domain.ErrValidation)
	}

	items := make([]domain.OrderLine, 0, len(req.Items))
	total := 0.0
	for i, in := range req.Items {
		if in.Qty < 1 {
			return nil, fmt.Errorf("%w: item %d has quantity %d", domain.ErrValidation, i, in.Qty)
		}
		line, err := s.resolveLine(in)
		if err != nil {
			return nil, err
		}
		items = append(items, line)
		total += line.UnitPrice() * float64(line.Qty)
	}

	order := &domain.Order{
		TableID:   req.TableID,
		Items:     items,
		Total:     total,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, warn := s.store.Append(ctx, order)
	if warn != nil {
		s.log.Warn("order committed without durable snapshot", zap.String("order", stored.ID), zap.Error(warn))
	}
	s.hub.Publish(stored)
	s.log.Info("order placed",
		zap.String("order", stored.ID),
		zap.Int("table", stored.TableID),
		zap.Int("items", len(stored.Items)),
		zap.Float64("total", stored.Total))
	return stored, nil
}

// resolveLine turns one request line into an immutable snapshot.
// A line with a product reference takes its prices from the catalog;
// otherwise the caller-supplied price is the snapshot and must be
// positive.
func (s *Service) resolveLine(in PlaceLine) (domain.OrderLine, error) {
	line := domain.OrderLine{
		Name:    in.Name,
		Qty:     in.Qty,
		Price:   in.Price,
		Details: in.Details,
	}
	if in.Size != nil {
		sz := *in.Size
		line.Size = &sz
	}
	if in.Addons != nil {
		line.Addons = append([]domain.LineOption(nil), in.Addons...)
	}

	if in.ProductID != "" && s.prices != nil {
		sizeName := ""
		if in.Size != nil {
			sizeName = in.Size.Name
		}
		addonNames := make([]string, len(in.Addons))
		for i, a := range in.Addons {
			addonNames[i] = a.Name
		}
		res, err := s.prices.ResolveLine(in.ProductID, sizeName, addonNames)
		if err != nil {
			return domain.OrderLine{}, fmt.Errorf("%w: item %q: %v", domain.ErrValidation, in.Name, err)
		}
		if res.Name != "" {
			line.Name = res.Name
		}
		line.Price = res.Unit
		line.Size = res.Size
		line.Addons = res.Addons
	}

	if line.Price <= 0 {
		return domain.OrderLine{}, fmt.Errorf("%w: item %q has no resolvable price", domain.ErrValidation, line.Name)
	}
	return line, nil
}

// Advance moves an order to target if the transition graph allows it.
// Requesting the status the order already has is an idempotent no-op:
// the unchanged order is returned and nothing is rebroadcast, which
// tolerates at-least-once command delivery after reconnects.
func (s *Service) Advance(ctx context.Context, id string, target domain.Status) (*domain.Order, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	updated, changed, err := s.store.Update(ctx, id, func(o *domain.Order) (bool, error) {
		if o.Status == target {
			return false, nil
		}
		if !o.Status.CanAdvanceTo(target) {
			return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, target)
		}
		o.Status = target
		return true, nil
	})
	if err != nil && updated == nil {
		return nil, err
	}
	if err != nil {
		// snapshot warning: the mutation is committed and must still fan out
		s.log.Warn("order updated without durable snapshot", zap.String("order", id), zap.Error(err))
	}
	if changed {
		s.hub.Publish(updated)
		s.log.Info("order advanced", zap.String("order", updated.ID), zap.String("status", string(updated.Status)))
	}
	return updated, nil
}

// Orders returns the current collection in insertion order, the initial
// state a view fetches before it starts consuming live events.
func (s *Service) Orders() []*domain.Order {
	return s.store.List(nil)
}
