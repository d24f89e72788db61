package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"copyforge/backend/internal/llm"
)

type Completer struct {
	client *genai.Client
	model  string
}

func NewCompleter(ctx context.Context, apiKey, model string) (*Completer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Completer{client: client, model: model}, nil
}

func (c *Completer) Complete(ctx context.Context, prompt string, constraints llm.Constraints) (*llm.Completion, error) {
	model := c.client.GenerativeModel(c.model)
	if constraints.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(constraints.MaxTokens))
	}
	if constraints.Temperature > 0 {
		model.SetTemperature(constraints.Temperature)
	}

	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.ErrorContext(ctx, "completion failed", "error", err, "model", c.model)
		return nil, fmt.Errorf("%w: %v", llm.ErrProvider, err)
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no candidates returned", llm.ErrProvider)
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty response text", llm.ErrProvider)
	}

	tokens := 0
	if res.UsageMetadata != nil {
		tokens = int(res.UsageMetadata.TotalTokenCount)
	}

	return &llm.Completion{
		Text:       text,
		ModelName:  c.model,
		TokensUsed: tokens,
	}, nil
}

func (c *Completer) Close() error {
	return c.client.Close()
}
