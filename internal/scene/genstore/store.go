// Package genstore records successfully generated 3D assets so a repeat
// request for the same concept can reuse the finished model instead of
// re-running the whole pipeline.
package genstore

import (
	"context"
	"sync"
	"time"
)

// Record is one generated asset.
type Record struct {
	// Concept is the normalized concept the asset was generated for.
	Concept string

	// AssetURL is the resolved model download URL.
	AssetURL string

	// Format is the model format that was selected (e.g. "glb").
	Format string

	// JobID is the provider-side conversion job identifier.
	JobID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists generated-asset records keyed by concept.
type Store interface {
	// Get returns the record for a concept, or (nil, nil) when absent.
	Get(ctx context.Context, concept string) (*Record, error)

	// Put creates or replaces the record for a concept.
	Put(ctx context.Context, rec *Record) error
}

// MemStore is an in-memory [Store] for tests and registry-less deployments.
type MemStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{recs: make(map[string]Record)}
}

// Get implements [Store].
func (s *MemStore) Get(_ context.Context, concept string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[concept]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put implements [Store].
func (s *MemStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	stored := *rec
	if prev, ok := s.recs[rec.Concept]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.recs[rec.Concept] = stored
	return nil
}
