// Package assistant answers project questions synchronously, grounded in
// whatever the project has ingested.
package assistant

import (
	"context"
	"log/slog"

	"copyforge/backend/internal/llm"
	"copyforge/backend/internal/prompt"
	"copyforge/backend/internal/retrieval"
)

const (
	answerMaxTokens   = 1024
	answerTemperature = 0.3
)

type Retriever interface {
	Retrieve(ctx context.Context, projectID, question string, topK int) ([]retrieval.Citation, error)
}

type Service struct {
	retriever Retriever
	completer llm.Completer
}

func NewService(retriever Retriever, completer llm.Completer) *Service {
	return &Service{retriever: retriever, completer: completer}
}

// Answer is the assistant's reply plus the citations it stands on.
type Answer struct {
	Answer    string                 `json:"answer"`
	Citations []retrieval.Citation   `json:"citations"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// Answer retrieves grounding chunks and asks the model. With no chunks
// retrieved the model is never called and the caller gets the canned
// no-context reply.
func (s *Service) Answer(ctx context.Context, projectID, question string, topK int, includeCitations bool) (*Answer, error) {
	if topK < 1 {
		topK = retrieval.DefaultTopK
	}

	citations, err := s.retriever.Retrieve(ctx, projectID, question, topK)
	if err != nil {
		return nil, err
	}

	if len(citations) == 0 {
		slog.InfoContext(ctx, "assistant query without context", "project_id", projectID)
		return &Answer{
			Answer:    prompt.NoContextAnswer,
			Citations: []retrieval.Citation{},
			Metadata: map[string]interface{}{
				"chunks_retrieved": 0,
				"has_context":      false,
			},
		}, nil
	}

	p := prompt.BuildAssistantPrompt(question, prompt.BuildContext(citations))
	completion, err := s.completer.Complete(ctx, p, llm.Constraints{
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
	})
	if err != nil {
		return nil, err
	}

	out := &Answer{
		Answer:    completion.Text,
		Citations: citations,
		Metadata: map[string]interface{}{
			"model":            completion.ModelName,
			"chunks_retrieved": len(citations),
			"has_context":      true,
		},
	}
	if !includeCitations {
		out.Citations = []retrieval.Citation{}
	}
	return out, nil
}
