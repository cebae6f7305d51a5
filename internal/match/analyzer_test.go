package match_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/campaign-service/internal/match"
	"jobmate/campaign-service/internal/model"
)

type fakeCompleter struct {
	fill func(out any)
	err  error
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, prompt string, out any) error {
	if f.err != nil {
		return f.err
	}
	f.fill(out)
	return nil
}

func fillAnalysis(a model.MatchAnalysis) func(any) {
	return func(out any) {
		*out.(*model.MatchAnalysis) = a
	}
}

func TestAnalyzeMatch_ValidResponse(t *testing.T) {
	a := match.NewLLMAnalyzer(&fakeCompleter{fill: fillAnalysis(model.MatchAnalysis{
		MatchScore:     81,
		Recommendation: "apply",
		Reasoning:      "strong overlap on required skills",
	})})

	got, err := a.AnalyzeMatch(context.Background(), &model.Profile{UserID: "u"}, model.JobOffer{Title: "Dev"})
	require.NoError(t, err)
	assert.Equal(t, 81, got.MatchScore)
}

func TestAnalyzeMatch_RejectsInvalidShape(t *testing.T) {
	cases := []struct {
		name     string
		analysis model.MatchAnalysis
	}{
		{"score above range", model.MatchAnalysis{MatchScore: 140, Recommendation: "apply", Reasoning: "x"}},
		{"score below range", model.MatchAnalysis{MatchScore: -5, Recommendation: "skip", Reasoning: "x"}},
		{"missing recommendation", model.MatchAnalysis{MatchScore: 50, Reasoning: "x"}},
		{"blank reasoning", model.MatchAnalysis{MatchScore: 50, Recommendation: "maybe", Reasoning: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := match.NewLLMAnalyzer(&fakeCompleter{fill: fillAnalysis(tc.analysis)})
			_, err := a.AnalyzeMatch(context.Background(), &model.Profile{}, model.JobOffer{})
			assert.Error(t, err)
		})
	}
}

func TestAnalyzeMatch_ProviderError(t *testing.T) {
	a := match.NewLLMAnalyzer(&fakeCompleter{err: errors.New("boom")})
	_, err := a.AnalyzeMatch(context.Background(), &model.Profile{}, model.JobOffer{})
	assert.Error(t, err)
}
