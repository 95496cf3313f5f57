package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"cafe-system/internal/domain"
)

// Snapshotter persists the full order collection. Writes are best-effort:
// the store keeps its in-memory state regardless of the outcome.
type Snapshotter interface {
	Write(ctx context.Context, orders []*domain.Order) error
	Load(ctx context.Context) ([]*domain.Order, error)
}

// Store owns every live order. All mutations pass through its methods
// under one mutex; iteration order is insertion order, oldest first.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Order
	seq    []string // insertion order of ids
	lastID int64

	snap Snapshotter
	log  *zap.Logger
}

func New(snap Snapshotter, log *zap.Logger) *Store {
	return &Store{
		byID: make(map[string]*domain.Order),
		snap: snap,
		log:  log,
	}
}

// Load restores the collection from the last snapshot. Called once at
// boot, before the store is shared.
func (s *Store) Load(ctx context.Context) error {
	orders, err := s.snap.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range orders {
		if o == nil || o.ID == "" {
			continue
		}
		if _, dup := s.byID[o.ID]; dup {
			continue
		}
		s.byID[o.ID] = o.Clone()
		s.seq = append(s.seq, o.ID)
		if n, err := strconv.ParseInt(o.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
	s.log.Info("orders loaded from snapshot", zap.Int("count", len(s.seq)))
	return nil
}

// nextID returns a millisecond-timestamp id, bumped past the last one
// handed out so ids stay unique and monotonic within the process.
// Caller must hold s.mu.
func (s *Store) nextID() string {
	now := time.Now().UnixMilli()
	if now <= s.lastID {
		now = s.lastID + 1
	}
	s.lastID = now
	return strconv.FormatInt(now, 10)
}

// Append inserts a new order, assigns its id and returns the stored
// copy. A failed snapshot write is reported as an ErrPersistence
// warning next to the (still committed) order.
func (s *Store) Append(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := o.Clone()
	stored.ID = s.nextID()
	s.byID[stored.ID] = stored
	s.seq = append(s.seq, stored.ID)

	warn := s.persistLocked(ctx)
	return stored.Clone(), warn
}

// Get returns a copy of the order or domain.ErrNotFound.
func (s *Store) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return o.Clone(), nil
}

// Update applies fn to the order under the store mutex. fn reports
// whether it changed anything; the snapshot is only rewritten when it
// did. A failed write surfaces as an ErrPersistence warning next to the
// updated order, mirroring Append.
func (s *Store) Update(ctx context.Context, id string, fn func(*domain.Order) (bool, error)) (*domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byID[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	changed, err := fn(o)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return o.Clone(), false, nil
	}
	warn := s.persistLocked(ctx)
	return o.Clone(), true, warn
}

// List returns copies of the orders in insertion order, optionally
// filtered. A nil predicate selects everything.
func (s *Store) List(pred func(*domain.Order) bool) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Order, 0, len(s.seq))
	for _, id := range s.seq {
		o := s.byID[id]
		if pred == nil || pred(o) {
			out = append(out, o.Clone())
		}
	}
	return out
}

// persistLocked writes the full collection synchronously. Durability is
// best-effort: a failure is logged and returned as a warning, the next
// successful write recovers it. Caller must hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	all := make([]*domain.Order, 0, len(s.seq))
	for _, id := range s.seq {
		all = append(all, s.byID[id])
	}
	if err := s.snap.Write(ctx, all); err != nil {
		s.log.Error("snapshot write failed", zap.Error(err), zap.Int("orders", len(all)))
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}
