package restructure

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/pipeline"
	"github.com/temirov/drive-optimizer/internal/report"
)

func (t *Task) applyPlan(ctx context.Context, verified Verified) (pipeline.ApplyReport, error) {
	if err := report.Render(t.deps.Output, report.Compare(verified.Original, verified.Proposed)); err != nil {
		return pipeline.ApplyReport{}, err
	}
	if err := report.RenderPlan(t.deps.Output, verified.Plan); err != nil {
		return pipeline.ApplyReport{}, err
	}
	if t.options.DryRun {
		return pipeline.ApplyReport{
			DryRun:     true,
			Summary:    fmt.Sprintf("%s: %d operations (dry-run)", taskName, verified.Plan.Len()),
			NumActions: verified.Plan.Len(),
		}, nil
	}

	results := t.deps.Executor.Execute(ctx, verified.Plan)
	t.Results = results
	if err := report.RenderResults(t.deps.Output, results); err != nil {
		t.deps.Logger.Warn("render results", zap.Error(err))
	}
	failed := len(results.Failed())
	applied := pipeline.ApplyReport{
		Summary:    fmt.Sprintf("%s: %d operations (%s), %d failed", taskName, len(results), ternary(failed == 0, "applied", "partially applied"), failed),
		NumActions: results.Succeeded(),
		Failed:     failed,
	}
	return applied, results.Err()
}

func ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
