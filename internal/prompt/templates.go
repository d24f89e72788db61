// Package prompt builds the prompts sent to the language model and
// parses its structured replies.
package prompt

import (
	"fmt"
	"strings"

	"copyforge/backend/internal/retrieval"
)

// NoContextAnswer is returned by the assistant when retrieval finds
// nothing to ground an answer in. The model is not consulted in that
// case.
const NoContextAnswer = "I don't have any project documents to ground an answer in yet. " +
	"Upload and ingest documents for this project, then ask again."

const generationSystem = `You are a marketing copy assistant. Create engaging,
effective marketing content that aligns with brand guidelines and resonates
with the target audience.

Guidelines:
- Write in a clear, professional, and engaging tone
- Focus on the audience's needs and interests
- Use active voice and strong verbs
- Be concise but informative`

const assistantSystem = `You are a project assistant. Answer the question using
ONLY the supplied context from the project's documents. If the context does
not contain the answer, say so explicitly rather than guessing.`

// GenerationInput carries the brief and the optional hints woven into a
// single generation prompt.
type GenerationInput struct {
	Brief     string
	BrandTone string
	Audience  string
	Objective string
	Channels  []string
	Context   string
}

// BuildGenerationPrompt produces one prompt asking for all three
// variants in labeled sections so the reply can be parsed
// deterministically.
func BuildGenerationPrompt(in GenerationInput) string {
	var sb strings.Builder
	sb.WriteString(generationSystem)
	sb.WriteString("\n\n")

	if in.BrandTone != "" {
		fmt.Fprintf(&sb, "Brand tone and style:\n%s\n\n", in.BrandTone)
	}
	if in.Audience != "" {
		fmt.Fprintf(&sb, "Target audience:\n%s\n\n", in.Audience)
	}
	if len(in.Channels) > 0 {
		fmt.Fprintf(&sb, "Distribution channels: %s\n\n", strings.Join(in.Channels, ", "))
	}
	if in.Context != "" {
		fmt.Fprintf(&sb, "Relevant content from project documents:\n%s\n\n", in.Context)
	}

	sb.WriteString("Campaign brief:\n")
	sb.WriteString(in.Brief)
	if in.Objective != "" {
		fmt.Fprintf(&sb, "\n\nObjective: %s", in.Objective)
	}

	sb.WriteString(`

Produce exactly three sections, each starting with its label on its own line:

SHORT_FORM:
A social media post of at most 280 characters with a clear call-to-action.

LONG_FORM:
A marketing post of 150-300 words, well structured, with key messaging points.

CTA:
A call-to-action focused message with a strong value proposition and specific next steps.`)

	return sb.String()
}

// BuildAssistantPrompt wraps the question with retrieved context and the
// grounding instructions.
func BuildAssistantPrompt(question, context string) string {
	var sb strings.Builder
	sb.WriteString(assistantSystem)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

// BuildContext renders citations as a numbered source block. The source
// filename is included when retrieval knows it.
func BuildContext(citations []retrieval.Citation) string {
	var sb strings.Builder
	for i, c := range citations {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		source := "unknown"
		if filename, ok := c.Metadata["filename"].(string); ok && filename != "" {
			source = filename
		}
		fmt.Fprintf(&sb, "[Source %d: %s]\n%s", c.RankIndex, source, c.SourceText)
	}
	return sb.String()
}
