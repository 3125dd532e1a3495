package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index using brute-force cosine similarity.
// It is used for tests and single-process deployments without a vector database.
type MemoryIndex struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string][]Entry
}

// NewMemoryIndex creates an empty MemoryIndex. A dimension of 0 accepts any vector size.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{dimension: dimension, namespaces: make(map[string][]Entry)}
}

// Replace swaps the namespace's entries for a copy of entries.
func (m *MemoryIndex) Replace(ctx context.Context, namespace string, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]Entry, len(entries))
	for i, e := range entries {
		if m.dimension > 0 && len(e.Vector) != m.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", m.dimension, len(e.Vector))
		}
		e.DocumentID = namespace
		e.Vector = append([]float32(nil), e.Vector...)
		stored[i] = e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(stored) == 0 {
		delete(m.namespaces, namespace)
		return nil
	}
	m.namespaces[namespace] = stored
	return nil
}

// Search returns up to k entries ordered by descending similarity.
func (m *MemoryIndex) Search(ctx context.Context, namespace string, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	entries := m.namespaces[namespace]
	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, Match{Entry: e, Score: float32(CosineSimilarity(query, e.Vector))})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return onlyNamespace(namespace, matches), nil
}

// SearchDiverse runs maximal marginal relevance over the FetchK nearest entries.
func (m *MemoryIndex) SearchDiverse(ctx context.Context, namespace string, query []float32, opts DiverseOptions) ([]Match, error) {
	candidates, err := m.Search(ctx, namespace, query, max(opts.FetchK, opts.K))
	if err != nil {
		return nil, err
	}
	return SelectDiverse(query, candidates, opts.K, opts.Lambda), nil
}

// DeleteNamespace removes every entry of the namespace.
func (m *MemoryIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	return nil
}

// Count returns the number of entries in the namespace.
func (m *MemoryIndex) Count(ctx context.Context, namespace string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace]), nil
}
