package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cafe-system/internal/domain"
)

// PGSnapshotter stores the order snapshot in Postgres instead of a
// flat file. The contract is identical: a synchronous full-collection
// write after every committed mutation, best-effort, no extra
// durability semantics layered on top.
type PGSnapshotter struct {
	pool *pgxpool.Pool
}

func NewPGSnapshotter(ctx context.Context, host string, port int, user, pass, name string) (*PGSnapshotter, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", user, pass, host, port, name)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &PGSnapshotter{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGSnapshotter) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS order_snapshot (
			position  integer NOT NULL,
			id        text    PRIMARY KEY,
			doc       jsonb   NOT NULL
		)`)
	return err
}

func (s *PGSnapshotter) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Write replaces the snapshot table inside one transaction so readers
// never observe a half-written snapshot.
func (s *PGSnapshotter) Write(ctx context.Context, orders []*domain.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `TRUNCATE order_snapshot`); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, o := range orders {
		doc, err := json.Marshal(o)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO order_snapshot(position, id, doc) VALUES ($1, $2, $3)`, i, o.ID, doc)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGSnapshotter) Load(ctx context.Context) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM order_snapshot ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var o domain.Order
		if err := json.Unmarshal(doc, &o); err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}
