package pipeline

import (
	"context"

	"jobmate/campaign-service/internal/application"
	"jobmate/campaign-service/internal/dispatch"
	"jobmate/campaign-service/internal/docgen"
	"jobmate/campaign-service/internal/joboffer"
	"jobmate/campaign-service/internal/match"
)

// NewAnalysisStage scores discovered offers.
func NewAnalysisStage(workers int, repo *joboffer.Repo, scorer *match.Scorer) Stage {
	return Stage{
		Name:    "analysis",
		Workers: workers,
		Poll: func(ctx context.Context) (bool, error) {
			claimed, err := repo.ClaimForAnalysis(ctx)
			if err != nil || claimed == nil {
				return false, err
			}
			return true, scorer.Process(ctx, claimed)
		},
	}
}

// NewGenerationStage produces documents for pending applications.
func NewGenerationStage(workers int, apps *application.Service, gen *docgen.Generator) Stage {
	return Stage{
		Name:    "generation",
		Workers: workers,
		Poll: func(ctx context.Context) (bool, error) {
			claimed, err := apps.ClaimForGeneration(ctx)
			if err != nil || claimed == nil {
				return false, err
			}

			genErr := gen.Generate(ctx, claimed)
			if _, err := apps.FinishGeneration(ctx, claimed.App.ID, genErr == nil); err != nil {
				return true, err
			}
			return true, genErr
		},
	}
}

// NewDispatchStage submits reviewed applications.
func NewDispatchStage(workers int, apps *application.Service, disp *dispatch.Dispatcher) Stage {
	return Stage{
		Name:    "dispatch",
		Workers: workers,
		Poll: func(ctx context.Context) (bool, error) {
			claimed, err := apps.ClaimForDispatch(ctx)
			if err != nil || claimed == nil {
				return false, err
			}
			return true, disp.Process(ctx, claimed)
		},
	}
}
