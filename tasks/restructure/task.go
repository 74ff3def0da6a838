// Package restructure reorganizes a storage provider's hierarchy: it lists the
// current files, proposes a new structure, plans the difference and applies it.
package restructure

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/executor"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/fsops"
	"github.com/temirov/drive-optimizer/internal/optimize"
	"github.com/temirov/drive-optimizer/internal/pipeline"
	"github.com/temirov/drive-optimizer/internal/plan"
	"github.com/temirov/drive-optimizer/internal/storage"
)

const (
	SourceSnapshot = "snapshot"

	taskName                  = "restructure"
	missingExecutorMessage    = "executor is required unless running dry"
	unexpectedStageTypeFormat = "restructure: unexpected %s type %T"
	foreignSnapshotMessage    = "proposal snapshot shares no identifiers with the current inventory"
)

// Deps are the collaborators of a Task. Executor may be nil for dry runs.
type Deps struct {
	Provider storage.Provider
	Service  optimize.Service
	Executor *executor.Executor
	Store    fsops.Store
	Output   io.Writer
	Logger   *zap.Logger
}

type Options struct {
	Query string
	// Proposal, when set, replaces the optimizer's output on the first attempt.
	Proposal []drivefile.Record
	// ProposalPath receives the accepted proposal as a snapshot when set.
	ProposalPath string
	DryRun       bool
	Plan         plan.Options
}

type Task struct {
	deps    Deps
	options Options

	Original []drivefile.Normalized
	Proposal Proposal
	Plan     plan.Plan
	Results  executor.Results
}

// Proposal is the candidate structure together with where it came from.
type Proposal struct {
	Files    []drivefile.Record
	Metadata optimize.Metadata
	Source   string
}

// Verified is an accepted proposal with its plan.
type Verified struct {
	Original []drivefile.Normalized
	Proposed []drivefile.Normalized
	Plan     plan.Plan
}

func New(deps Deps, options Options) *Task {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Output == nil {
		deps.Output = io.Discard
	}
	return &Task{deps: deps, options: options}
}

func (t *Task) Name() string { return taskName }

func (t *Task) Gather(ctx context.Context) (pipeline.GatherOutput, error) {
	records, err := storage.ListAll(ctx, t.deps.Provider, t.options.Query)
	if err != nil {
		return nil, err
	}
	t.Original = drivefile.Flatten(records)
	t.deps.Logger.Info("inventory gathered", zap.Int("records", len(t.Original)))
	return t.Original, nil
}

// Propose uses the supplied snapshot first, then the optimizer. A refine
// request asking for a local proposal bypasses the remote workflow.
func (t *Task) Propose(ctx context.Context, gathered pipeline.GatherOutput, refine *pipeline.RefineRequest) (pipeline.Proposal, error) {
	original, ok := gathered.([]drivefile.Normalized)
	if !ok {
		return nil, fmt.Errorf(unexpectedStageTypeFormat, "gather output", gathered)
	}
	if t.options.Proposal != nil && refine == nil {
		return Proposal{Files: drivefile.CloneAll(t.options.Proposal), Source: SourceSnapshot}, nil
	}
	service := t.deps.Service
	if refine != nil && refine.Local {
		service.Workflow = nil
	}
	result, err := service.Optimize(ctx, drivefile.Records(original))
	if err != nil {
		return nil, err
	}
	return Proposal{Files: result.Files, Metadata: result.Metadata, Source: result.Metadata.AIModel}, nil
}

// Verify plans the proposal. A workflow proposal the planner rejects is
// retried with the local classifier; any other rejection is fatal.
func (t *Task) Verify(ctx context.Context, gathered pipeline.GatherOutput, proposed pipeline.Proposal) (bool, pipeline.VerifiedOutput, *pipeline.RefineRequest, error) {
	original, ok := gathered.([]drivefile.Normalized)
	if !ok {
		return false, nil, nil, fmt.Errorf(unexpectedStageTypeFormat, "gather output", gathered)
	}
	proposal, ok := proposed.(Proposal)
	if !ok {
		return false, nil, nil, fmt.Errorf(unexpectedStageTypeFormat, "proposal", proposed)
	}
	normalized := drivefile.Flatten(proposal.Files)
	if proposal.Source == SourceSnapshot && !sharesIdentifiers(original, normalized) {
		return false, nil, nil, faults.New(faults.KindInvalidInput, foreignSnapshotMessage)
	}
	planning := t.options.Plan
	if planning.Logger == nil {
		planning.Logger = t.deps.Logger
	}
	operations, err := plan.Diff(original, normalized, planning)
	if err != nil {
		if proposal.Source == optimize.ModelWorkflow {
			return false, nil, &pipeline.RefineRequest{Reason: err.Error(), Local: true}, nil
		}
		return false, nil, nil, err
	}
	t.Proposal = proposal
	t.Plan = operations
	if t.options.ProposalPath != "" {
		if writeErr := t.deps.Store.WriteRecords(t.options.ProposalPath, proposal.Files); writeErr != nil {
			return false, nil, nil, writeErr
		}
	}
	return true, Verified{Original: original, Proposed: normalized, Plan: operations}, nil, nil
}

func (t *Task) Apply(ctx context.Context, verified pipeline.VerifiedOutput) (pipeline.ApplyReport, error) {
	accepted, ok := verified.(Verified)
	if !ok {
		return pipeline.ApplyReport{}, fmt.Errorf(unexpectedStageTypeFormat, "verified output", verified)
	}
	if !t.options.DryRun && t.deps.Executor == nil {
		return pipeline.ApplyReport{}, faults.New(faults.KindConfiguration, missingExecutorMessage)
	}
	return t.applyPlan(ctx, accepted)
}

// sharesIdentifiers reports whether the proposal names at least one committed
// record of a non-empty inventory.
func sharesIdentifiers(original []drivefile.Normalized, proposed []drivefile.Normalized) bool {
	index := drivefile.NewIndex(original)
	if index.Len() == 0 {
		return true
	}
	for _, record := range proposed {
		if !record.Ref().IsPending() && record.ID != drivefile.RootID && index.Contains(record.ID) {
			return true
		}
	}
	return false
}
