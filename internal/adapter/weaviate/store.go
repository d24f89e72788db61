package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"copyforge/backend/internal/vector"
)

// Store is the durable vector.Index backed by Weaviate.
type Store struct {
	client    *weaviate.Client
	dimension int
}

func NewStore(client *weaviate.Client, dimension int) *Store {
	return &Store{client: client, dimension: dimension}
}

func (s *Store) Durable() bool { return true }

// Upsert replaces each asset's prior entries and writes the new batch.
// The delete and insert run back to back per asset so readers never see
// a mix of old and new chunks for the same asset; a concurrent search in
// the gap between the two batches sees the asset absent, not half-written.
func (s *Store) Upsert(ctx context.Context, projectID string, entries []vector.Entry) error {
	for _, e := range entries {
		if len(e.Vector) != s.dimension {
			return fmt.Errorf("%w: got %d, index configured for %d", vector.ErrDimensionMismatch, len(e.Vector), s.dimension)
		}
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.AssetID] {
			seen[e.AssetID] = true
			if err := s.DeleteAsset(ctx, projectID, e.AssetID); err != nil {
				return err
			}
		}
	}

	objects := make([]*models.Object, 0, len(entries))
	for _, e := range entries {
		props := map[string]interface{}{
			"content":    e.Text,
			"projectId":  projectID,
			"assetId":    e.AssetID,
			"chunkIndex": e.ChunkIndex,
		}
		if filename, ok := e.Metadata["filename"].(string); ok {
			props["filename"] = filename
		}
		if contentType, ok := e.Metadata["content_type"].(string); ok {
			props["contentType"] = contentType
		}
		if tokenCount, ok := e.Metadata["token_count"].(int); ok {
			props["tokenCount"] = tokenCount
		}

		objects = append(objects, &models.Object{
			Class:      vector.ClassName,
			Properties: props,
			Vector:     models.C11yVector(e.Vector),
		})
	}

	if len(objects) == 0 {
		return nil
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", vector.ErrWriteFailure, err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("%w: %s", vector.ErrWriteFailure, obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) DeleteAsset(ctx context.Context, projectID, assetID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{
				filters.Where().
					WithPath([]string{"projectId"}).
					WithOperator(filters.Equal).
					WithValueString(projectID),
				filters.Where().
					WithPath([]string{"assetId"}).
					WithOperator(filters.Equal).
					WithValueString(assetID),
			})).
		Do(ctx)
	return err
}

func (s *Store) Search(ctx context.Context, projectID string, queryVector []float32, k int) ([]vector.Hit, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index configured for %d", vector.ErrDimensionMismatch, len(queryVector), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(queryVector)

	where := filters.Where().
		WithPath([]string{"projectId"}).
		WithOperator(filters.Equal).
		WithValueString(projectID)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "projectId"},
		{Name: "assetId"},
		{Name: "chunkIndex"},
		{Name: "filename"},
		{Name: "contentType"},
		{Name: "tokenCount"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var hits []vector.Hit
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return hits, nil
	}
	chunks, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return hits, nil
	}

	for _, c := range chunks {
		props, ok := c.(map[string]interface{})
		if !ok {
			continue
		}

		hit := vector.Hit{Entry: vector.Entry{
			ProjectID: projectID,
			Metadata:  make(map[string]interface{}),
		}}

		if content, ok := props["content"].(string); ok {
			hit.Text = content
		}
		if assetID, ok := props["assetId"].(string); ok {
			hit.AssetID = assetID
		}
		if chunkIndex, ok := props["chunkIndex"].(float64); ok {
			hit.ChunkIndex = int(chunkIndex)
		}
		if filename, ok := props["filename"].(string); ok && filename != "" {
			hit.Metadata["filename"] = filename
		}
		if contentType, ok := props["contentType"].(string); ok && contentType != "" {
			hit.Metadata["content_type"] = contentType
		}
		if tokenCount, ok := props["tokenCount"].(float64); ok {
			hit.Metadata["token_count"] = int(tokenCount)
		}

		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				hit.Score = float32(certainty)
			}
		}

		hits = append(hits, hit)
	}

	return hits, nil
}
