package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"copyforge/backend/features/asset"
	"copyforge/backend/features/generation"
	"copyforge/backend/internal/llm"
	"copyforge/backend/internal/retrieval"
	"copyforge/backend/internal/vector"
)

type MockAssetStore struct {
	mock.Mock
}

func (m *MockAssetStore) Get(ctx context.Context, id string) (*asset.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Asset), args.Error(1)
}

func (m *MockAssetStore) MarkIngested(ctx context.Context, id string, chunkCount, totalTokens int) error {
	args := m.Called(ctx, id, chunkCount, totalTokens)
	return args.Error(0)
}

func (m *MockAssetStore) MarkIngestFailed(ctx context.Context, id, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Write(assetID string, content []byte) error {
	args := m.Called(assetID, content)
	return args.Error(0)
}

func (m *MockBlobStore) Read(assetID string) ([]byte, error) {
	args := m.Called(assetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBlobStore) Delete(assetID string) error {
	args := m.Called(assetID)
	return args.Error(0)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Upsert(ctx context.Context, projectID string, entries []vector.Entry) error {
	args := m.Called(ctx, projectID, entries)
	return args.Error(0)
}

func (m *MockIndex) Search(ctx context.Context, projectID string, vec []float32, k int) ([]vector.Hit, error) {
	args := m.Called(ctx, projectID, vec, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vector.Hit), args.Error(1)
}

func (m *MockIndex) DeleteAsset(ctx context.Context, projectID, assetID string) error {
	args := m.Called(ctx, projectID, assetID)
	return args.Error(0)
}

func (m *MockIndex) Durable() bool { return false }

type MockGenerationStore struct {
	mock.Mock
}

func (m *MockGenerationStore) Get(ctx context.Context, id string) (*generation.Generation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.Generation), args.Error(1)
}

func (m *MockGenerationStore) TryMarkProcessing(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockGenerationStore) MarkCompleted(ctx context.Context, id, shortForm, longForm, cta, model string, tokensUsed int) error {
	args := m.Called(ctx, id, shortForm, longForm, cta, model, tokensUsed)
	return args.Error(0)
}

func (m *MockGenerationStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, projectID, question string, topK int) ([]retrieval.Citation, error) {
	args := m.Called(ctx, projectID, question, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Citation), args.Error(1)
}

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string, c llm.Constraints) (*llm.Completion, error) {
	args := m.Called(ctx, prompt, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Completion), args.Error(1)
}
