package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/faults"
)

const (
	reasonPreviewLimit = 600

	missingRefineMessage = "verify rejected proposal and no refine request provided"
	exhaustedFormat      = "exhausted %d attempts without acceptance\n%s"
)

type RunOptions struct {
	MaxAttempts int
	// Timeout bounds each proposal; zero or less disables it.
	Timeout time.Duration
}

type Runner struct {
	Options RunOptions
	Logger  *zap.Logger
}

func (r Runner) Run(ctx context.Context, p Pipeline) (ApplyReport, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("pipeline", p.Name()))

	gathered, gatherErr := p.Gather(ctx)
	if gatherErr != nil {
		return ApplyReport{}, fmt.Errorf("gather: %w", gatherErr)
	}

	var (
		attemptLogs []attemptRecord
		verified    VerifiedOutput
		accepted    bool
		refine      *RefineRequest
	)
	attempts := max(1, r.Options.MaxAttempts)
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := r.attemptContext(ctx)
		proposal, proposeErr := p.Propose(attemptCtx, gathered, refine)
		cancel()
		if proposeErr != nil {
			return ApplyReport{}, fmt.Errorf("propose: %w", proposeErr)
		}
		record := attemptRecord{Refine: refine}

		ok, out, nextRefine, verifyErr := p.Verify(ctx, gathered, proposal)
		if verifyErr != nil {
			return ApplyReport{}, fmt.Errorf("verify: %w", verifyErr)
		}
		if ok {
			record.Accepted = true
			attemptLogs = append(attemptLogs, record)
			accepted = true
			verified = out
			logger.Debug("proposal accepted", zap.Int("attempt", attempt))
			break
		}
		attemptLogs = append(attemptLogs, record)
		if nextRefine == nil {
			return ApplyReport{}, errors.New(missingRefineMessage)
		}
		logger.Warn("proposal rejected", zap.Int("attempt", attempt), zap.String("reason", nextRefine.Reason))
		refine = nextRefine
		attemptLogs[len(attemptLogs)-1].Rejection = nextRefine.Reason
	}

	if !accepted {
		return ApplyReport{}, fmt.Errorf(exhaustedFormat, attempts, renderAttemptDebug(attemptLogs))
	}
	report, applyErr := p.Apply(ctx, verified)
	if applyErr != nil {
		return report, fmt.Errorf("apply: %w", applyErr)
	}
	return report, nil
}

func (r Runner) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Options.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Options.Timeout)
}

type attemptRecord struct {
	Refine    *RefineRequest
	Rejection string
	Accepted  bool
}

func renderAttemptDebug(attempts []attemptRecord) string {
	var sb strings.Builder
	for idx, attempt := range attempts {
		sb.WriteString(fmt.Sprintf("Attempt %d:\n", idx+1))
		if attempt.Refine != nil {
			sb.WriteString(fmt.Sprintf("  Local: %t\n", attempt.Refine.Local))
		}
		if attempt.Rejection != "" {
			sb.WriteString("  Rejected:\n")
			sb.WriteString(indentBlock(faults.Truncate(attempt.Rejection, reasonPreviewLimit)))
			sb.WriteString("\n")
		}
		if attempt.Accepted {
			sb.WriteString("  Status: accepted\n")
		} else {
			sb.WriteString("  Status: rejected\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func indentBlock(block string) string {
	if block == "" {
		return "    <empty>"
	}
	lines := strings.Split(block, "\n")
	for idx, line := range lines {
		lines[idx] = "    " + line
	}
	return strings.Join(lines, "\n")
}
