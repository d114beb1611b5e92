// Package pipeline orchestrates retrieval and staged prompting: similarity
// search over the grant index, grant-type classification, and the
// eligibility, question, answer and proposal generation stages.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/grantlab/grantrag/internal/models"
	"github.com/grantlab/grantrag/internal/types"
	"github.com/grantlab/grantrag/pkg/prompts"
	"github.com/grantlab/grantrag/pkg/redact"
)

// GenerationFailureText is returned in place of model output whenever a
// generation call fails. The pipeline never aborts a request on generation
// failure; callers display this placeholder instead.
const GenerationFailureText = "Error generating response"

// Pipeline wires the embedder, index and generator built at startup. It is
// safe for concurrent use: the index is read-only after construction.
type Pipeline struct {
	embedder  types.Embedder
	index     types.VectorIndex
	generator types.Generator
	topK      int
}

func New(embedder types.Embedder, index types.VectorIndex, generator types.Generator, topK int) (*Pipeline, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	return &Pipeline{
		embedder:  embedder,
		index:     index,
		generator: generator,
		topK:      topK,
	}, nil
}

// Search embeds the query and returns the k nearest chunks, closest first.
func (p *Pipeline) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("search limit must be positive, got %d", k)
	}

	vectors, err := p.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return p.index.Search(ctx, vectors[0], k)
}

// Classify labels a grant's target applicant with a single generation call.
// Any failure or ambiguous reply defaults to the organization label, which
// selects the more detailed downstream templates.
func (p *Pipeline) Classify(ctx context.Context, content string) models.GrantType {
	reply, err := p.generator.Generate(ctx, prompts.ClassifyGrantType(content))
	if err != nil {
		log.Printf("grant type classification failed, defaulting to %s: %v",
			models.GrantTypeOrganization, err)
		return models.GrantTypeOrganization
	}
	return ParseGrantType(reply)
}

// ParseGrantType normalizes the model's free-text classification reply.
func ParseGrantType(reply string) models.GrantType {
	lower := strings.ToLower(reply)
	if strings.Contains(lower, "company") || strings.Contains(lower, "organization") {
		return models.GrantTypeOrganization
	}
	if strings.Contains(lower, "individual") {
		return models.GrantTypeIndividual
	}
	return models.GrantTypeOrganization
}

// ExtractEligibility classifies the grant and extracts bulleted eligibility
// criteria phrased for that applicant type.
func (p *Pipeline) ExtractEligibility(ctx context.Context, content string) (string, models.GrantType) {
	grantType := p.Classify(ctx, content)
	points := p.generate(ctx, prompts.Eligibility(grantType, content))
	return points, grantType
}

// GenerateQuestions classifies the grant and generates applicant-type
// specific eligibility questions.
func (p *Pipeline) GenerateQuestions(ctx context.Context, content string) (string, models.GrantType) {
	grantType := p.Classify(ctx, content)
	questions := p.generate(ctx, prompts.Questions(grantType, content))
	return questions, grantType
}

// AnswerQuestion retrieves the chunks closest to the question and answers
// from their concatenated text. The returned results identify the
// contributing grants.
func (p *Pipeline) AnswerQuestion(ctx context.Context, question string) (string, []models.SearchResult, error) {
	results, err := p.Search(ctx, question, p.topK)
	if err != nil {
		return "", nil, err
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	contextText := strings.Join(texts, "\n\n")

	answer := p.generate(ctx, prompts.Answer(contextText, question))
	return answer, results, nil
}

// GenerateProposal drafts a structured proposal from the grant content and
// the caller's field map. Sensitive fields are always redacted before the
// prompt is assembled; callers cannot bypass this.
func (p *Pipeline) GenerateProposal(ctx context.Context, content string, inputs map[string]string, grantType models.GrantType) string {
	formatted := formatInputs(redact.Redact(inputs))
	return p.generate(ctx, prompts.Proposal(grantType, content, formatted))
}

// generate maps any generation failure to the placeholder text.
func (p *Pipeline) generate(ctx context.Context, prompt string) string {
	reply, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		log.Printf("generation failed: %v", err)
		return GenerationFailureText
	}
	return reply
}

// formatInputs renders the redacted field map as "Key: value" lines in a
// deterministic order.
func formatInputs(inputs map[string]string) string {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(redact.HumanizeKey(k))
		b.WriteString(": ")
		b.WriteString(inputs[k])
		b.WriteString("\n")
	}
	return b.String()
}
