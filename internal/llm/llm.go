// Package llm defines the language-model boundary. The orchestrators only
// see these types; the concrete provider lives in internal/adapter.
package llm

import (
	"context"
	"errors"
)

// ErrProvider marks any failure coming back from the hosted model:
// rate limits, timeouts, malformed responses. Callers treat every such
// failure as non-retryable within one job.
var ErrProvider = errors.New("llm provider error")

// Constraints bound a single completion request.
type Constraints struct {
	MaxTokens   int
	Temperature float32
}

// Completion is the provider's answer plus billing provenance.
type Completion struct {
	Text       string
	ModelName  string
	TokensUsed int
}

// Completer produces one completion for one prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, c Constraints) (*Completion, error)
}

// Embedder maps text to fixed-dimension vectors. EmbedBatch is
// order-preserving: result i corresponds to input i.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
