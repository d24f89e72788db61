package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"copyforge/backend/features/asset"
	"copyforge/backend/internal/llm"
	"copyforge/backend/internal/middleware"
	"copyforge/backend/internal/storage"
	"copyforge/backend/internal/text"
	"copyforge/backend/internal/vector"
)

// AssetStore is the slice of the asset repository the ingest pipeline
// needs.
type AssetStore interface {
	Get(ctx context.Context, id string) (*asset.Asset, error)
	MarkIngested(ctx context.Context, id string, chunkCount, totalTokens int) error
	MarkIngestFailed(ctx context.Context, id, errMsg string) error
}

// IngestConsumer runs the full pipeline for one asset: read blob,
// extract text, chunk, embed, replace the asset's index entries, then
// record the outcome on the asset row. Pipeline failures are recorded in
// the database, never retried by requeue. The one requeue path is a
// transient asset lookup failure before any work starts: the state guard
// makes redelivery safe there, and dropping would strand the asset at
// ingesting with no terminal transition.
type IngestConsumer struct {
	assets       AssetStore
	blobs        storage.BlobStore
	embedder     llm.Embedder
	index        vector.Index
	chunkSize    int
	chunkOverlap int
}

func NewIngestConsumer(assets AssetStore, blobs storage.BlobStore, embedder llm.Embedder, index vector.Index, chunkSize, chunkOverlap int) *IngestConsumer {
	return &IngestConsumer{
		assets:       assets,
		blobs:        blobs,
		embedder:     embedder,
		index:        index,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

func (c *IngestConsumer) HandleMessage(msg *nsq.Message) error {
	var payload IngestTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		// Poison pill: drop it, requeueing can never fix a bad body
		slog.Error("dropping malformed ingest task", "error", err)
		return nil
	}
	if payload.AssetID == "" || payload.ProjectID == "" {
		slog.Error("dropping ingest task with missing ids", "payload", payload)
		return nil
	}

	ctx := middleware.WithCorrelationID(context.Background(), payload.CorrelationID)

	a, err := c.assets.Get(ctx, payload.AssetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.ErrorContext(ctx, "dropping ingest task for unknown asset", "asset_id", payload.AssetID)
			return nil
		}
		// Transient store error: requeue so the asset does not stay
		// claimed forever
		slog.ErrorContext(ctx, "asset lookup failed, requeueing", "error", err, "asset_id", payload.AssetID)
		return err
	}
	if a.IngestState != asset.StateIngesting {
		// Stale redelivery; the claim has already been resolved
		slog.WarnContext(ctx, "dropping ingest task for unclaimed asset", "asset_id", a.ID, "state", a.IngestState)
		return nil
	}

	if err := c.ingest(ctx, a); err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "error", err, "asset_id", a.ID)
		if failErr := c.assets.MarkIngestFailed(ctx, a.ID, err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to record ingestion failure", "error", failErr, "asset_id", a.ID)
		}
	}
	return nil
}

func (c *IngestConsumer) ingest(ctx context.Context, a *asset.Asset) error {
	content, err := c.blobs.Read(a.ID)
	if err != nil {
		return err
	}

	raw, err := text.Extract(content, a.Filename, a.ContentType)
	if err != nil {
		return err
	}

	chunks := text.ChunkText(text.Normalize(raw), c.chunkSize, c.chunkOverlap)
	if len(chunks) == 0 {
		// A readable but empty document ingests cleanly with no entries
		if err := c.index.DeleteAsset(ctx, a.ProjectID, a.ID); err != nil {
			return err
		}
		slog.InfoContext(ctx, "asset ingested empty", "asset_id", a.ID)
		return c.assets.MarkIngested(ctx, a.ID, 0, 0)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	entries := make([]vector.Entry, len(chunks))
	totalTokens := 0
	for i, ch := range chunks {
		totalTokens += ch.TokenCount
		entries[i] = vector.Entry{
			ProjectID:  a.ProjectID,
			AssetID:    a.ID,
			ChunkIndex: ch.Index,
			Vector:     vectors[i],
			Text:       ch.Text,
			Metadata: map[string]interface{}{
				"filename":     a.Filename,
				"content_type": a.ContentType,
				"token_count":  ch.TokenCount,
			},
		}
	}

	if err := c.index.Upsert(ctx, a.ProjectID, entries); err != nil {
		return err
	}

	slog.InfoContext(ctx, "asset ingested",
		"asset_id", a.ID,
		"project_id", a.ProjectID,
		"chunks", len(chunks),
		"tokens", totalTokens,
	)
	return c.assets.MarkIngested(ctx, a.ID, len(chunks), totalTokens)
}
