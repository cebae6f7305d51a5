package match

import (
	"context"
	"fmt"
	"strings"

	"jobmate/campaign-service/internal/model"
	"jobmate/campaign-service/internal/profile"
)

// JSONCompleter is the reasoning provider contract (implemented by
// ai.Client): one prompt in, one schema-shaped JSON object out.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, prompt string, out any) error
}

// LLMAnalyzer produces the full structured match analysis for a
// (profile, posting) pair.
type LLMAnalyzer struct {
	llm JSONCompleter
}

// NewLLMAnalyzer returns a configured LLMAnalyzer.
func NewLLMAnalyzer(llm JSONCompleter) *LLMAnalyzer {
	return &LLMAnalyzer{llm: llm}
}

const analyzePromptTemplate = `You are a recruiting assistant. Compare the candidate profile below
with the job posting and return a JSON object with exactly these fields:

{
  "matchScore": <integer 0-100, overall fit>,
  "matchBreakdown": {
    "skills": <integer 0-100>,
    "experience": <integer 0-100>,
    "education": <integer 0-100>,
    "location": <integer 0-100>,
    "salary": <integer 0-100, or null if the posting has no salary information>
  },
  "matchingRequirements": [<requirements of the posting the candidate meets>],
  "missingRequirements": [<requirements the candidate does not meet>],
  "redFlags": [<concerning aspects of the posting, empty if none>],
  "recommendation": <"apply" | "maybe" | "skip">,
  "reasoning": <2-3 sentences explaining the score>
}

CANDIDATE PROFILE:
%s

JOB POSTING:
Title: %s
Company: %s
Location: %s
Contract: %s
%s
Description:
%s`

// AnalyzeMatch runs the reasoning call and validates the result shape.
// A structurally invalid analysis is an error, never partially accepted.
func (a *LLMAnalyzer) AnalyzeMatch(ctx context.Context, p *model.Profile, offer model.JobOffer) (*model.MatchAnalysis, error) {
	prompt := fmt.Sprintf(analyzePromptTemplate,
		profile.Text(p),
		offer.Title, offer.Company, offer.Location, offer.ContractType,
		salaryLine(offer), offer.Description,
	)

	var analysis model.MatchAnalysis
	if err := a.llm.CompleteJSON(ctx, prompt, &analysis); err != nil {
		return nil, fmt.Errorf("analyze match: %w", err)
	}
	if err := validateAnalysis(&analysis); err != nil {
		return nil, fmt.Errorf("analyze match: %w", err)
	}
	return &analysis, nil
}

func validateAnalysis(a *model.MatchAnalysis) error {
	if a.MatchScore < 0 || a.MatchScore > 100 {
		return fmt.Errorf("matchScore %d out of range", a.MatchScore)
	}
	if a.Recommendation == "" {
		return fmt.Errorf("missing recommendation")
	}
	if strings.TrimSpace(a.Reasoning) == "" {
		return fmt.Errorf("missing reasoning")
	}
	return nil
}

func salaryLine(o model.JobOffer) string {
	switch {
	case o.SalaryMin != nil && o.SalaryMax != nil:
		return fmt.Sprintf("Salary: %.0f – %.0f", *o.SalaryMin, *o.SalaryMax)
	case o.SalaryMin != nil:
		return fmt.Sprintf("Salary: from %.0f", *o.SalaryMin)
	default:
		return "Salary: not specified"
	}
}
