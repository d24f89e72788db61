package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"copyforge/backend/internal/config"
	"copyforge/backend/internal/middleware"
)

// Job statuses. pending -> processing -> completed | failed; terminal
// statuses never revert, so a poller sees a monotone progression.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrNotEditable rejects content edits on jobs that have not completed.
var ErrNotEditable = errors.New("generation content is only editable once completed")

// Generation is one content-generation job. Content fields stay empty
// until the job completes; an empty field on a non-terminal job means
// "not yet", never "done with nothing".
type Generation struct {
	ID         string    `json:"generation_id"`
	ProjectID  string    `json:"project_id"`
	Brief      string    `json:"brief"`
	BrandTone  string    `json:"brand_tone,omitempty"`
	Audience   string    `json:"audience,omitempty"`
	Objective  string    `json:"objective,omitempty"`
	Channels   []string  `json:"channels,omitempty"`
	Status     string    `json:"status"`
	ShortForm  string    `json:"short_form"`
	LongForm   string    `json:"long_form"`
	CTA        string    `json:"cta"`
	Model      string    `json:"model,omitempty"`
	TokensUsed int       `json:"tokens_used"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, g *Generation) error
	Get(ctx context.Context, id string) (*Generation, error)
	ListByProject(ctx context.Context, projectID string) ([]Generation, error)

	// TryMarkProcessing claims a pending job; false means it was already
	// picked up (or finished), so the caller must not run it again.
	TryMarkProcessing(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id, shortForm, longForm, cta, model string, tokensUsed int) error
	MarkFailed(ctx context.Context, id, errMsg string) error

	// UpdateContent edits the three content fields of a completed job;
	// model and token provenance are frozen.
	UpdateContent(ctx context.Context, id, shortForm, longForm, cta string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  EventPublisher
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

// Generate persists a pending job and schedules it off the request path.
// The returned record carries the id the client polls.
func (s *Service) Generate(ctx context.Context, g *Generation) (*Generation, error) {
	g.Status = StatusPending
	if err := s.repo.Save(ctx, g); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"generation_id":  g.ID,
		"project_id":     g.ProjectID,
		"correlation_id": middleware.GetCorrelationID(ctx),
	})
	if err := s.pub.Publish(config.TopicGenerateTask, payload); err != nil {
		if failErr := s.repo.MarkFailed(ctx, g.ID, "failed to schedule generation: "+err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to mark generation failed", "error", failErr, "generation_id", g.ID)
		}
		return nil, fmt.Errorf("publish generate task: %w", err)
	}

	slog.InfoContext(ctx, "generation scheduled", "generation_id", g.ID, "project_id", g.ProjectID)
	return g, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Generation, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, projectID string) ([]Generation, error) {
	return s.repo.ListByProject(ctx, projectID)
}

// ContentUpdate carries the user's post-completion edits. Nil fields are
// left unchanged.
type ContentUpdate struct {
	ShortForm *string `json:"short_form"`
	LongForm  *string `json:"long_form"`
	CTA       *string `json:"cta"`
}

func (s *Service) UpdateContent(ctx context.Context, id string, update ContentUpdate) (*Generation, error) {
	g, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Status != StatusCompleted {
		return nil, ErrNotEditable
	}

	if update.ShortForm != nil {
		g.ShortForm = *update.ShortForm
	}
	if update.LongForm != nil {
		g.LongForm = *update.LongForm
	}
	if update.CTA != nil {
		g.CTA = *update.CTA
	}

	if err := s.repo.UpdateContent(ctx, id, g.ShortForm, g.LongForm, g.CTA); err != nil {
		return nil, err
	}
	return g, nil
}
