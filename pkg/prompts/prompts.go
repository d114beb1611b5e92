// Package prompts holds the instruction templates sent to the generation
// model. Templates are embedded at build time and filled with fmt verbs.
package prompts

import (
	_ "embed"
	"fmt"

	"github.com/grantlab/grantrag/internal/models"
)

//go:embed classify_grant_type.md
var classifyGrantType string

//go:embed eligibility_organization.md
var eligibilityOrganization string

//go:embed eligibility_individual.md
var eligibilityIndividual string

//go:embed questions_organization.md
var questionsOrganization string

//go:embed questions_individual.md
var questionsIndividual string

//go:embed answer_question.md
var answerQuestion string

//go:embed proposal_organization.md
var proposalOrganization string

//go:embed proposal_individual.md
var proposalIndividual string

// ClassifyGrantType asks for a one-word COMPANY/INDIVIDUAL verdict.
func ClassifyGrantType(content string) string {
	return fmt.Sprintf(classifyGrantType, content)
}

// Eligibility selects the applicant-specific extraction template.
func Eligibility(grantType models.GrantType, content string) string {
	if grantType == models.GrantTypeIndividual {
		return fmt.Sprintf(eligibilityIndividual, content)
	}
	return fmt.Sprintf(eligibilityOrganization, content)
}

// Questions selects the applicant-specific question-generation template.
func Questions(grantType models.GrantType, content string) string {
	if grantType == models.GrantTypeIndividual {
		return fmt.Sprintf(questionsIndividual, content)
	}
	return fmt.Sprintf(questionsOrganization, content)
}

// Answer injects retrieved context and the caller's question.
func Answer(context, question string) string {
	return fmt.Sprintf(answerQuestion, context, question)
}

// Proposal selects the applicant-specific proposal template. Inputs must
// already be redacted and formatted.
func Proposal(grantType models.GrantType, content, formattedInputs string) string {
	if grantType == models.GrantTypeIndividual {
		return fmt.Sprintf(proposalIndividual, content, formattedInputs)
	}
	return fmt.Sprintf(proposalOrganization, content, formattedInputs)
}
