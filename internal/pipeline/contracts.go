package pipeline

import "context"

// Pipeline is a gather → propose → verify → apply task. Verify may reject a
// proposal and ask for another attempt through a RefineRequest.
type Pipeline interface {
	Name() string
	Gather(ctx context.Context) (GatherOutput, error)
	Propose(ctx context.Context, gathered GatherOutput, refine *RefineRequest) (Proposal, error)
	Verify(ctx context.Context, gathered GatherOutput, proposal Proposal) (accepted bool, verified VerifiedOutput, refine *RefineRequest, err error)
	Apply(ctx context.Context, verified VerifiedOutput) (ApplyReport, error)
}

type GatherOutput any
type Proposal any
type VerifiedOutput any

type RefineRequest struct {
	Reason string
	// Local asks the next proposal to skip the remote workflow.
	Local bool
}

type ApplyReport struct {
	DryRun     bool
	Summary    string
	NumActions int
	Failed     int
}
