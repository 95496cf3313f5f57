// Package cafeinfo holds the single cafe-info document (name, address,
// receipt footer and the like) that role views render.
package cafeinfo

import (
	"path/filepath"
	"sync"

	"cafe-system/internal/jsonfile"
)

type Store struct {
	mu   sync.RWMutex
	info map[string]any
	path string
}

func Open(dir string) (*Store, error) {
	s := &Store{
		info: map[string]any{},
		path: filepath.Join(dir, "cafeInfo.json"),
	}
	if _, err := jsonfile.Read(s.path, &s.info); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Get() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.info))
	for k, v := range s.info {
		out[k] = v
	}
	return out
}

// Merge applies the provided fields over the existing document.
func (s *Store) Merge(patch map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range patch {
		s.info[k] = v
	}
	if err := jsonfile.Write(s.path, s.info); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(s.info))
	for k, v := range s.info {
		out[k] = v
	}
	return out, nil
}
