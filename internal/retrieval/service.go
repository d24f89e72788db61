package retrieval

import (
	"context"
	"sort"
	"strings"
	"time"

	"copyforge/backend/internal/vector"
)

const (
	// MaxTopK bounds how many citations one query may request.
	MaxTopK     = 20
	DefaultTopK = 5

	// Re-rank blend: vector similarity dominates, lexical overlap nudges
	// exact keyword queries the embedding mis-ranked.
	vectorWeight  = 0.85
	lexicalWeight = 0.15

	// Over-fetch factor so the re-rank has candidates to reorder.
	overFetch = 3
)

// Citation is one retrieval hit, regenerated on every query.
type Citation struct {
	RankIndex  int                    `json:"rank_index"`
	SourceText string                 `json:"source_text"`
	AssetID    string                 `json:"asset_id"`
	ChunkIndex int                    `json:"chunk_index"`
	Score      float32                `json:"similarity_score"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	embedder Embedder
	index    vector.Index
	logger   *QueryLogger
}

func NewService(e Embedder, idx vector.Index, l *QueryLogger) *Service {
	return &Service{embedder: e, index: idx, logger: l}
}

// Retrieve embeds the question, runs a project-scoped k-NN search,
// re-ranks by blending vector similarity with lexical overlap, and
// returns at most topK citations in a deterministic order. A project
// with nothing indexed yields an empty list, not an error.
func (s *Service) Retrieve(ctx context.Context, projectID, question string, topK int) ([]Citation, error) {
	start := time.Now()

	if strings.TrimSpace(question) == "" {
		return nil, nil
	}
	if topK < 1 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	queryVector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, projectID, queryVector, topK*overFetch)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	type scored struct {
		hit   vector.Hit
		score float32
	}
	rescored := make([]scored, len(hits))
	for i, h := range hits {
		blended := vectorWeight*h.Score + lexicalWeight*lexicalOverlap(question, h.Text)
		rescored[i] = scored{hit: h, score: blended}
	}

	// Deterministic ordering: score desc, then chunk index, then asset id
	sort.Slice(rescored, func(i, j int) bool {
		if rescored[i].score != rescored[j].score {
			return rescored[i].score > rescored[j].score
		}
		if rescored[i].hit.ChunkIndex != rescored[j].hit.ChunkIndex {
			return rescored[i].hit.ChunkIndex < rescored[j].hit.ChunkIndex
		}
		return rescored[i].hit.AssetID < rescored[j].hit.AssetID
	})

	if len(rescored) > topK {
		rescored = rescored[:topK]
	}

	citations := make([]Citation, len(rescored))
	for i, r := range rescored {
		citations[i] = Citation{
			RankIndex:  i + 1,
			SourceText: r.hit.Text,
			AssetID:    r.hit.AssetID,
			ChunkIndex: r.hit.ChunkIndex,
			Score:      r.score,
			Metadata:   r.hit.Metadata,
		}
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			ProjectID:  projectID,
			Query:      question,
			NumResults: len(citations),
			Duration:   time.Since(start),
		})
	}

	return citations, nil
}

// lexicalOverlap is the fraction of distinct query words that appear in
// the chunk text, case-insensitive.
func lexicalOverlap(query, text string) float32 {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return 0
	}

	haystack := strings.ToLower(text)
	seen := make(map[string]bool, len(words))
	matched, distinct := 0, 0
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		distinct++
		if strings.Contains(haystack, w) {
			matched++
		}
	}
	return float32(matched) / float32(distinct)
}
