package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cafe-system/internal/domain"
	"cafe-system/internal/jsonfile"
)

// FileSnapshotter writes the order collection as one JSON document
// under the data directory.
type FileSnapshotter struct {
	path string
}

func NewFileSnapshotter(dir string) (*FileSnapshotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileSnapshotter{path: filepath.Join(dir, "orders.json")}, nil
}

func (f *FileSnapshotter) Write(ctx context.Context, orders []*domain.Order) error {
	return jsonfile.Write(f.path, orders)
}

// Load reads the last snapshot. A missing file is an empty collection,
// not an error.
func (f *FileSnapshotter) Load(ctx context.Context) ([]*domain.Order, error) {
	var orders []*domain.Order
	if _, err := jsonfile.Read(f.path, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
