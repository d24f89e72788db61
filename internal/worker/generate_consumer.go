package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nsqio/go-nsq"

	"copyforge/backend/features/generation"
	"copyforge/backend/internal/llm"
	"copyforge/backend/internal/middleware"
	"copyforge/backend/internal/prompt"
	"copyforge/backend/internal/retrieval"
)

const (
	generateMaxTokens   = 2048
	generateTemperature = 0.7
	groundingTopK       = 5
)

// GenerationStore is the slice of the generation repository the worker
// needs.
type GenerationStore interface {
	Get(ctx context.Context, id string) (*generation.Generation, error)
	TryMarkProcessing(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id, shortForm, longForm, cta, model string, tokensUsed int) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

type Retriever interface {
	Retrieve(ctx context.Context, projectID, question string, topK int) ([]retrieval.Citation, error)
}

// GenerateConsumer turns one pending generation job into three content
// variants with a single model call. The pending->processing claim is
// what bounds the model call to at most once per job, no matter how many
// times the message is delivered.
type GenerateConsumer struct {
	generations GenerationStore
	retriever   Retriever
	completer   llm.Completer
}

func NewGenerateConsumer(generations GenerationStore, retriever Retriever, completer llm.Completer) *GenerateConsumer {
	return &GenerateConsumer{generations: generations, retriever: retriever, completer: completer}
}

func (c *GenerateConsumer) HandleMessage(msg *nsq.Message) error {
	var payload GenerateTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		slog.Error("dropping malformed generate task", "error", err)
		return nil
	}
	if payload.GenerationID == "" {
		slog.Error("dropping generate task with missing id")
		return nil
	}

	ctx := middleware.WithCorrelationID(context.Background(), payload.CorrelationID)

	claimed, err := c.generations.TryMarkProcessing(ctx, payload.GenerationID)
	if err != nil {
		// Claim not consumed: requeue and let the redelivery retry it
		slog.ErrorContext(ctx, "failed to claim generation, requeueing", "error", err, "generation_id", payload.GenerationID)
		return err
	}
	if !claimed {
		// Redelivery of a job someone already ran
		slog.WarnContext(ctx, "dropping generate task already claimed", "generation_id", payload.GenerationID)
		return nil
	}

	g, err := c.generations.Get(ctx, payload.GenerationID)
	if err != nil {
		// The claim is spent, so a redelivery would be dropped; fail the
		// job rather than strand it at processing
		slog.ErrorContext(ctx, "failed to load claimed generation", "error", err, "generation_id", payload.GenerationID)
		if failErr := c.generations.MarkFailed(ctx, payload.GenerationID, "failed to load generation: "+err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to record generation failure", "error", failErr, "generation_id", payload.GenerationID)
		}
		return nil
	}

	if err := c.generate(ctx, g); err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err, "generation_id", g.ID)
		if failErr := c.generations.MarkFailed(ctx, g.ID, err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to record generation failure", "error", failErr, "generation_id", g.ID)
		}
	}
	return nil
}

func (c *GenerateConsumer) generate(ctx context.Context, g *generation.Generation) error {
	// Retrieval failures degrade to ungrounded generation rather than
	// failing the whole job.
	var groundingContext string
	query := strings.TrimSpace(g.Brief + " " + g.Objective)
	citations, err := c.retriever.Retrieve(ctx, g.ProjectID, query, groundingTopK)
	if err != nil {
		slog.WarnContext(ctx, "retrieval failed, generating ungrounded", "error", err, "generation_id", g.ID)
	} else if len(citations) > 0 {
		groundingContext = prompt.BuildContext(citations)
	}

	p := prompt.BuildGenerationPrompt(prompt.GenerationInput{
		Brief:     g.Brief,
		BrandTone: g.BrandTone,
		Audience:  g.Audience,
		Objective: g.Objective,
		Channels:  g.Channels,
		Context:   groundingContext,
	})

	completion, err := c.completer.Complete(ctx, p, llm.Constraints{
		MaxTokens:   generateMaxTokens,
		Temperature: generateTemperature,
	})
	if err != nil {
		return err
	}

	variants, err := prompt.ParseVariants(completion.Text)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "generation completed",
		"generation_id", g.ID,
		"project_id", g.ProjectID,
		"model", completion.ModelName,
		"tokens", completion.TokensUsed,
		"grounded", groundingContext != "",
	)
	return c.generations.MarkCompleted(ctx, g.ID, variants.ShortForm, variants.LongForm, variants.CTA, completion.ModelName, completion.TokensUsed)
}
