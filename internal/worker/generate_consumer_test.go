package worker_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"copyforge/backend/features/generation"
	"copyforge/backend/internal/llm"
	"copyforge/backend/internal/retrieval"
	"copyforge/backend/internal/worker"
)

func generateMessage(t *testing.T, generationID string) *nsq.Message {
	t.Helper()
	body, err := json.Marshal(worker.GenerateTaskPayload{
		GenerationID:  generationID,
		ProjectID:     "p1",
		CorrelationID: "corr-1",
	})
	assert.NoError(t, err)
	return &nsq.Message{Body: body}
}

func pendingGeneration() *generation.Generation {
	return &generation.Generation{
		ID:        "gen-1",
		ProjectID: "p1",
		Brief:     "Announce the new analytics dashboard",
		Objective: "drive signups",
		Status:    generation.StatusProcessing,
	}
}

const wellFormedReply = `SHORT_FORM:
Real-time analytics are here. See your data live. Try it free!

LONG_FORM:
Our new analytics dashboard gives your team live insight into every metric
that matters. Connect your data and watch it update in real time.

CTA:
Start your free trial today and see your first live dashboard in minutes.`

func TestGenerateConsumer_HandleMessage(t *testing.T) {
	t.Run("Grounded Generation", func(t *testing.T) {
		gens := new(MockGenerationStore)
		retriever := new(MockRetriever)
		completer := new(MockCompleter)
		consumer := worker.NewGenerateConsumer(gens, retriever, completer)

		gens.On("TryMarkProcessing", mock.Anything, "gen-1").Return(true, nil)
		gens.On("Get", mock.Anything, "gen-1").Return(pendingGeneration(), nil)
		retriever.On("Retrieve", mock.Anything, "p1", mock.MatchedBy(func(q string) bool {
			return strings.Contains(q, "analytics dashboard") && strings.Contains(q, "drive signups")
		}), 5).Return([]retrieval.Citation{
			{RankIndex: 1, SourceText: "Dashboards update in real time.", Metadata: map[string]interface{}{"filename": "features.txt"}},
		}, nil)
		completer.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.Contains(p, "Dashboards update in real time.")
		}), mock.Anything).Return(&llm.Completion{
			Text:       wellFormedReply,
			ModelName:  "gemini-1.5-flash",
			TokensUsed: 640,
		}, nil)
		gens.On("MarkCompleted", mock.Anything, "gen-1",
			"Real-time analytics are here. See your data live. Try it free!",
			mock.Anything, mock.Anything, "gemini-1.5-flash", 640).Return(nil)

		err := consumer.HandleMessage(generateMessage(t, "gen-1"))
		assert.NoError(t, err)
		gens.AssertExpectations(t)
		completer.AssertNumberOfCalls(t, "Complete", 1)
	})

	t.Run("Ungrounded When Retrieval Fails", func(t *testing.T) {
		gens := new(MockGenerationStore)
		retriever := new(MockRetriever)
		completer := new(MockCompleter)
		consumer := worker.NewGenerateConsumer(gens, retriever, completer)

		gens.On("TryMarkProcessing", mock.Anything, "gen-1").Return(true, nil)
		gens.On("Get", mock.Anything, "gen-1").Return(pendingGeneration(), nil)
		retriever.On("Retrieve", mock.Anything, "p1", mock.Anything, 5).Return(nil, assert.AnError)
		completer.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
			return !strings.Contains(p, "Relevant content from project documents")
		}), mock.Anything).Return(&llm.Completion{Text: wellFormedReply, ModelName: "gemini-1.5-flash"}, nil)
		gens.On("MarkCompleted", mock.Anything, "gen-1", mock.Anything, mock.Anything, mock.Anything, "gemini-1.5-flash", 0).Return(nil)

		err := consumer.HandleMessage(generateMessage(t, "gen-1"))
		assert.NoError(t, err)
		gens.AssertExpectations(t)
	})

	t.Run("Drops Message When Claim Missed", func(t *testing.T) {
		gens := new(MockGenerationStore)
		completer := new(MockCompleter)
		consumer := worker.NewGenerateConsumer(gens, new(MockRetriever), completer)

		gens.On("TryMarkProcessing", mock.Anything, "gen-1").Return(false, nil)

		err := consumer.HandleMessage(generateMessage(t, "gen-1"))
		assert.NoError(t, err)
		completer.AssertNotCalled(t, "Complete")
		gens.AssertNotCalled(t, "Get")
	})

	t.Run("Requeues When Claim Errors", func(t *testing.T) {
		gens := new(MockGenerationStore)
		completer := new(MockCompleter)
		consumer := worker.NewGenerateConsumer(gens, new(MockRetriever), completer)

		gens.On("TryMarkProcessing", mock.Anything, "gen-1").Return(false, assert.AnError)

		// The claim was not consumed, so redelivery can retry it
		err := consumer.HandleMessage(generateMessage(t, "gen-1"))
		assert.Error(t, err)
		gens.AssertNotCalled(t, "Get")
		completer.AssertNotCalled(t, "Complete")
	})

	t.Run("Load Failure After Claim Marks Failed", func(t *testing.T) {
		gens := new(MockGenerationStore)
		completer := new(MockCompleter)
		consumer := worker.NewGenerateConsumer(gens, new(MockRetriever), completer)

		gens.On("TryMarkProcessing", mock.Anything, "gen-1").Return(true, nil)
		gens.On("Get", mock.Anything, "gen-1").Return(nil, assert.AnError)
		gens.On("MarkFailed", mock.Anything, "gen-1", mock.MatchedBy(func(msg string) bool {
			return strings.Contains(msg, "failed to load generation")
		})).Return(nil)

		// The claim is spent, so the job must reach a terminal state here
		err := consumer.HandleMessage(generateMessage(t, "gen-1"))
		assert.NoError(t, err)
		gens.AssertExpectations(t)
		completer.AssertNotCalled(t, "Complete")
	})

	t.Run("Provider Failure Marks Failed", func(t *testing.T) {
		gens := new(MockGenerationStore)
		retriever := new(MockRetriever)
		completer := new(MockCompleter)
		consumer := worker.NewGenerateConsumer(gens, retriever, completer)

		gens.On("TryMarkProcessing", mock.Anything, "gen-1").Return(true, nil)
		gens.On("Get", mock.Anything, "gen-1").Return(pendingGeneration(), nil)
		retriever.On("Retrieve", mock.Anything, "p1", mock.Anything, 5).Return([]retrieval.Citation{}, nil)
		completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(nil, llm.ErrProvider)
		gens.On("MarkFailed", mock.Anything, "gen-1", mock.Anything).Return(nil)

		err := consumer.HandleMessage(generateMessage(t, "gen-1"))
		assert.NoError(t, err)
		gens.AssertCalled(t, "MarkFailed", mock.Anything, "gen-1", mock.Anything)
		gens.AssertNotCalled(t, "MarkCompleted")
	})

	t.Run("Malformed Reply Marks Failed", func(t *testing.T) {
		gens := new(MockGenerationStore)
		retriever := new(MockRetriever)
		completer := new(MockCompleter)
		consumer := worker.NewGenerateConsumer(gens, retriever, completer)

		gens.On("TryMarkProcessing", mock.Anything, "gen-1").Return(true, nil)
		gens.On("Get", mock.Anything, "gen-1").Return(pendingGeneration(), nil)
		retriever.On("Retrieve", mock.Anything, "p1", mock.Anything, 5).Return([]retrieval.Citation{}, nil)
		completer.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(&llm.Completion{
			Text: "Here is some copy without any labels.",
		}, nil)
		gens.On("MarkFailed", mock.Anything, "gen-1", mock.MatchedBy(func(msg string) bool {
			return strings.Contains(msg, "malformed model output")
		})).Return(nil)

		err := consumer.HandleMessage(generateMessage(t, "gen-1"))
		assert.NoError(t, err)
		gens.AssertExpectations(t)
	})

	t.Run("Drops Malformed Payload", func(t *testing.T) {
		gens := new(MockGenerationStore)
		consumer := worker.NewGenerateConsumer(gens, new(MockRetriever), new(MockCompleter))

		err := consumer.HandleMessage(&nsq.Message{Body: []byte("{broken")})
		assert.NoError(t, err)
		gens.AssertNotCalled(t, "TryMarkProcessing")
	})
}
