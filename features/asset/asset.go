package asset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"copyforge/backend/internal/config"
	"copyforge/backend/internal/middleware"
	"copyforge/backend/internal/storage"
	"copyforge/backend/internal/vector"
)

// Ingestion states. A row moves not_started -> ingesting -> ingested or
// failed; terminal states only change on an explicit re-ingest.
const (
	StateNotStarted = "not_started"
	StateIngesting  = "ingesting"
	StateIngested   = "ingested"
	StateFailed     = "failed"
)

// ErrIngestConflict is the fast-fail rejection for a second ingest
// request while one is in flight. The in-flight job is untouched.
var ErrIngestConflict = errors.New("ingestion already in progress")

type Asset struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	IngestState string    `json:"ingest_state"`
	IngestError string    `json:"ingest_error,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	TotalTokens int       `json:"total_tokens"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, a *Asset) error
	Get(ctx context.Context, id string) (*Asset, error)
	ListByProject(ctx context.Context, projectID string) ([]Asset, error)
	SoftDelete(ctx context.Context, id string) error

	// TryMarkIngesting claims the ingesting state with a conditional
	// update; false means another ingestion currently holds it.
	TryMarkIngesting(ctx context.Context, id string) (bool, error)
	MarkIngested(ctx context.Context, id string, chunkCount, totalTokens int) error
	MarkIngestFailed(ctx context.Context, id, errMsg string) error
	CountIngested(ctx context.Context, projectID string) (int, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo  Repository
	blobs storage.BlobStore
	pub   EventPublisher
	index vector.Index
}

func NewService(repo Repository, blobs storage.BlobStore, pub EventPublisher, index vector.Index) *Service {
	return &Service{repo: repo, blobs: blobs, pub: pub, index: index}
}

func (s *Service) Upload(ctx context.Context, projectID, filename, contentType string, content []byte) (*Asset, error) {
	a := &Asset{
		ProjectID:   projectID,
		Filename:    filename,
		ContentType: contentType,
		IngestState: StateNotStarted,
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}

	if err := s.blobs.Write(a.ID, content); err != nil {
		// Roll the row back so a blobless asset can't be ingested later
		if delErr := s.repo.SoftDelete(ctx, a.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to roll back asset row", "error", delErr, "asset_id", a.ID)
		}
		return nil, fmt.Errorf("write blob: %w", err)
	}
	return a, nil
}

// Ingest claims the asset's ingestion slot and schedules the pipeline off
// the request path. The caller polls the asset's ingest_state for the
// outcome.
func (s *Service) Ingest(ctx context.Context, id string) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	claimed, err := s.repo.TryMarkIngesting(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrIngestConflict
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"asset_id":       a.ID,
		"project_id":     a.ProjectID,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicIngestTask, payload); err != nil {
		// The claim would otherwise wedge the asset in ingesting forever
		if failErr := s.repo.MarkIngestFailed(ctx, id, "failed to schedule ingestion: "+err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to release ingestion claim", "error", failErr, "asset_id", id)
		}
		return fmt.Errorf("publish ingest task: %w", err)
	}

	slog.InfoContext(ctx, "ingestion scheduled", "asset_id", a.ID, "project_id", a.ProjectID)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Asset, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, projectID string) ([]Asset, error) {
	return s.repo.ListByProject(ctx, projectID)
}

// Delete removes the asset's index entries and blob, then soft-deletes
// the row. Chunks are owned by the asset and go with it.
func (s *Service) Delete(ctx context.Context, id string) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.index.DeleteAsset(ctx, a.ProjectID, a.ID); err != nil {
		return fmt.Errorf("delete index entries: %w", err)
	}
	if err := s.blobs.Delete(a.ID); err != nil {
		slog.WarnContext(ctx, "failed to delete blob", "error", err, "asset_id", id)
	}
	return s.repo.SoftDelete(ctx, id)
}

// HasIngested reports whether the project has any grounding material.
func (s *Service) HasIngested(ctx context.Context, projectID string) (bool, error) {
	n, err := s.repo.CountIngested(ctx, projectID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
