package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grantlab/grantrag/internal/models"
)

func TestTemplatesFillCleanly(t *testing.T) {
	rendered := []string{
		ClassifyGrantType("grant content"),
		Eligibility(models.GrantTypeOrganization, "grant content"),
		Eligibility(models.GrantTypeIndividual, "grant content"),
		Questions(models.GrantTypeOrganization, "grant content"),
		Questions(models.GrantTypeIndividual, "grant content"),
		Answer("retrieved context", "the question"),
		Proposal(models.GrantTypeOrganization, "grant content", "Budget: 100"),
		Proposal(models.GrantTypeIndividual, "grant content", "Budget: 100"),
	}

	for _, prompt := range rendered {
		assert.Contains(t, prompt, "grant content")
		// A stray verb in a template shows up as %!(...) in the output.
		assert.NotContains(t, prompt, "%!")
		assert.NotContains(t, prompt, "%s")
	}
}

func TestClassifyGrantType(t *testing.T) {
	prompt := ClassifyGrantType("Open to registered businesses")
	assert.Contains(t, prompt, "COMPANY")
	assert.Contains(t, prompt, "INDIVIDUAL")
	assert.Contains(t, prompt, "Open to registered businesses")
}

func TestEligibilitySelectsTemplate(t *testing.T) {
	org := Eligibility(models.GrantTypeOrganization, "content")
	ind := Eligibility(models.GrantTypeIndividual, "content")

	assert.NotEqual(t, org, ind)
	assert.Contains(t, org, "ORGANIZATION")
	assert.Contains(t, ind, "INDIVIDUAL")
}

func TestAnswerOrdersContextBeforeQuestion(t *testing.T) {
	prompt := Answer("CONTEXT_MARKER", "QUESTION_MARKER")

	ctxPos := strings.Index(prompt, "CONTEXT_MARKER")
	qPos := strings.Index(prompt, "QUESTION_MARKER")
	assert.GreaterOrEqual(t, ctxPos, 0)
	assert.Greater(t, qPos, ctxPos)
}

func TestProposalIncludesInputs(t *testing.T) {
	prompt := Proposal(models.GrantTypeOrganization, "grant", "First Name: [YOUR FIRST NAME HERE]")
	assert.Contains(t, prompt, "First Name: [YOUR FIRST NAME HERE]")
	assert.Contains(t, prompt, "Organization Background and Capability")
}
