package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an exact-search, in-memory Index. It is not durable and
// exists for tests and single-process development runs.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	// projectID -> assetID -> entries
	projects map[string]map[string][]Entry
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		projects:  make(map[string]map[string][]Entry),
	}
}

func (m *MemoryIndex) Durable() bool { return false }

func (m *MemoryIndex) Upsert(ctx context.Context, projectID string, entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != m.dimension {
			return fmt.Errorf("%w: got %d, index configured for %d", ErrDimensionMismatch, len(e.Vector), m.dimension)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	assets, ok := m.projects[projectID]
	if !ok {
		assets = make(map[string][]Entry)
		m.projects[projectID] = assets
	}

	// Group the batch by asset and swap each asset's entries in one step
	byAsset := make(map[string][]Entry)
	for _, e := range entries {
		e.ProjectID = projectID
		byAsset[e.AssetID] = append(byAsset[e.AssetID], e)
	}
	for assetID, group := range byAsset {
		assets[assetID] = group
	}
	return nil
}

func (m *MemoryIndex) DeleteAsset(ctx context.Context, projectID, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if assets, ok := m.projects[projectID]; ok {
		delete(assets, assetID)
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, projectID string, vector []float32, k int) ([]Hit, error) {
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d, index configured for %d", ErrDimensionMismatch, len(vector), m.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	assets, ok := m.projects[projectID]
	if !ok {
		return nil, nil
	}

	var hits []Hit
	for _, entries := range assets {
		for _, e := range entries {
			hits = append(hits, Hit{Entry: e, Score: Certainty(vector, e.Vector)})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].ChunkIndex != hits[j].ChunkIndex {
			return hits[i].ChunkIndex < hits[j].ChunkIndex
		}
		return hits[i].AssetID < hits[j].AssetID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Certainty maps cosine similarity into [0,1], matching the score scale
// Weaviate reports for nearVector queries.
func Certainty(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32((1 + cos) / 2)
}
