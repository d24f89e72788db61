package generation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"copyforge/backend/internal/config"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, g *Generation) error {
	args := m.Called(ctx, g)
	if args.Error(0) == nil && g.ID == "" {
		g.ID = "gen-1"
	}
	return args.Error(0)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*Generation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Generation), args.Error(1)
}

func (m *MockRepo) ListByProject(ctx context.Context, projectID string) ([]Generation, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Generation), args.Error(1)
}

func (m *MockRepo) TryMarkProcessing(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) MarkCompleted(ctx context.Context, id, shortForm, longForm, cta, model string, tokensUsed int) error {
	args := m.Called(ctx, id, shortForm, longForm, cta, model, tokensUsed)
	return args.Error(0)
}

func (m *MockRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockRepo) UpdateContent(ctx context.Context, id, shortForm, longForm, cta string) error {
	args := m.Called(ctx, id, shortForm, longForm, cta)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

func TestService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("Persists Pending And Publishes", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)
		svc := NewService(repo, pub)

		repo.On("Save", mock.Anything, mock.MatchedBy(func(g *Generation) bool {
			return g.Status == StatusPending
		})).Return(nil)
		pub.On("Publish", config.TopicGenerateTask, mock.MatchedBy(func(b []byte) bool {
			var p map[string]interface{}
			json.Unmarshal(b, &p)
			return p["generation_id"] == "gen-1" && p["project_id"] == "p1"
		})).Return(nil)

		g, err := svc.Generate(ctx, &Generation{ProjectID: "p1", Brief: "brief"})
		require.NoError(t, err)
		assert.Equal(t, "gen-1", g.ID)
		assert.Equal(t, StatusPending, g.Status)
		pub.AssertExpectations(t)
	})

	t.Run("Marks Failed When Publish Fails", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)
		svc := NewService(repo, pub)

		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		pub.On("Publish", config.TopicGenerateTask, mock.Anything).Return(errors.New("nsqd down"))
		repo.On("MarkFailed", mock.Anything, "gen-1", mock.Anything).Return(nil)

		_, err := svc.Generate(ctx, &Generation{ProjectID: "p1", Brief: "brief"})
		assert.Error(t, err)
		repo.AssertCalled(t, "MarkFailed", mock.Anything, "gen-1", mock.Anything)
	})
}

func TestService_UpdateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("Merges Partial Edits", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo, new(MockPublisher))

		repo.On("Get", mock.Anything, "gen-1").Return(&Generation{
			ID: "gen-1", Status: StatusCompleted,
			ShortForm: "old short", LongForm: "old long", CTA: "old cta",
		}, nil)
		repo.On("UpdateContent", mock.Anything, "gen-1", "new short", "old long", "old cta").Return(nil)

		newShort := "new short"
		g, err := svc.UpdateContent(ctx, "gen-1", ContentUpdate{ShortForm: &newShort})
		require.NoError(t, err)
		assert.Equal(t, "new short", g.ShortForm)
		assert.Equal(t, "old long", g.LongForm)
		repo.AssertExpectations(t)
	})

	t.Run("Rejects Edits Before Completion", func(t *testing.T) {
		repo := new(MockRepo)
		svc := NewService(repo, new(MockPublisher))

		repo.On("Get", mock.Anything, "gen-1").Return(&Generation{ID: "gen-1", Status: StatusProcessing}, nil)

		newShort := "nope"
		_, err := svc.UpdateContent(ctx, "gen-1", ContentUpdate{ShortForm: &newShort})
		assert.ErrorIs(t, err, ErrNotEditable)
		repo.AssertNotCalled(t, "UpdateContent")
	})
}
