// Package optimize produces a proposed hierarchy, preferring the remote
// workflow and falling back to the local classifier when it fails.
package optimize

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/temirov/drive-optimizer/internal/classify"
	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/metrics"
	"github.com/temirov/drive-optimizer/internal/workflow"
)

const (
	ModelWorkflow = "Workflow-API"
	ModelLocal    = "Local-Simulation"
	ModelFallback = "Local-Simulation-Fallback"

	NoWorkflowReason = "workflow API key is not configured"

	missingFilesMessage = "files array is required"
)

// Workflow is the remote collaborator; workflow.Client implements it.
type Workflow interface {
	Run(ctx context.Context, records []drivefile.Record) (string, error)
}

type Metadata struct {
	AIModel            string `json:"aiModel"`
	Timestamp          string `json:"timestamp"`
	ProcessingTime     int64  `json:"processingTime"`
	OriginalFileCount  int    `json:"originalFileCount"`
	OptimizedFileCount int    `json:"optimizedFileCount"`
	FallbackReason     string `json:"fallbackReason,omitempty"`
	OriginalError      string `json:"originalError,omitempty"`
	Attempts           int    `json:"attempts,omitempty"`
	Policy             string `json:"policy,omitempty"`
}

type Result struct {
	Files    []drivefile.Record `json:"optimizedFiles"`
	Metadata Metadata           `json:"metadata"`
}

// Service is safe for concurrent use once configured.
type Service struct {
	// Workflow may be nil, in which case every request runs locally.
	Workflow   Workflow
	Classifier classify.Options
	// Attempts bounds remote calls per request; values below 1 mean 1.
	Attempts        int
	Timeout         time.Duration
	FallbackEnabled bool
	Logger          *zap.Logger
	Now             func() time.Time
}

func (s Service) HasWorkflow() bool { return s.Workflow != nil }

// Optimize returns the proposed records for the given collection. The
// preferred languages select the wording of a fallback reason.
func (s Service) Optimize(ctx context.Context, records []drivefile.Record, preferred ...language.Tag) (Result, error) {
	if records == nil {
		return Result{}, faults.New(faults.KindInvalidInput, missingFilesMessage)
	}
	started := s.now()
	logger := s.logger()
	normalized := drivefile.Flatten(records)

	if s.Workflow == nil {
		logger.Warn("workflow not configured, using local classifier", zap.Int("files", len(records)))
		return s.local(normalized, started, ModelLocal, Metadata{FallbackReason: NoWorkflowReason})
	}

	proposed, attempts, remoteErr := s.remote(ctx, drivefile.Records(normalized))
	if remoteErr == nil {
		result := Result{Files: proposed, Metadata: s.metadata(ModelWorkflow, started, len(normalized), len(proposed))}
		result.Metadata.Attempts = attempts
		metrics.RecordOptimization(ModelWorkflow)
		logger.Info("workflow optimization completed", zap.Int("files", len(normalized)), zap.Int("proposed", len(proposed)), zap.Int("attempts", attempts))
		return result, nil
	}
	if !s.FallbackEnabled || !faults.IsFallbackEligible(remoteErr) {
		logger.Error("workflow optimization failed", zap.Error(remoteErr), zap.Int("attempts", attempts))
		return Result{}, remoteErr
	}
	logger.Warn("workflow optimization failed, falling back to local classifier", zap.Error(remoteErr), zap.Int("attempts", attempts))
	explanation := faults.Explain(remoteErr, preferred...)
	return s.local(normalized, started, ModelFallback, Metadata{
		FallbackReason: explanation.Message,
		OriginalError:  remoteErr.Error(),
		Attempts:       attempts,
	})
}

func (s Service) remote(ctx context.Context, records []drivefile.Record) ([]drivefile.Record, int, error) {
	var lastErr error
	attempt := 0
	for attempt < max(1, s.Attempts) {
		attempt++
		attemptCtx, cancel := s.attemptContext(ctx)
		raw, runErr := s.Workflow.Run(attemptCtx, records)
		cancel()
		if runErr == nil {
			proposed, parseErr := workflow.ParseResult(raw)
			if parseErr == nil {
				return proposed, attempt, nil
			}
			runErr = parseErr
		}
		lastErr = runErr
		s.logger().Warn("workflow attempt failed", zap.Int("attempt", attempt), zap.Error(runErr))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, attempt, lastErr
}

func (s Service) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func (s Service) local(normalized []drivefile.Normalized, started time.Time, model string, extra Metadata) (Result, error) {
	options := s.Classifier
	if options.Now == nil {
		options.Now = s.Now
	}
	proposed, err := classify.Propose(normalized, options)
	if err != nil {
		return Result{}, err
	}
	metadata := s.metadata(model, started, len(normalized), len(proposed))
	metadata.FallbackReason = extra.FallbackReason
	metadata.OriginalError = extra.OriginalError
	metadata.Attempts = extra.Attempts
	metadata.Policy = string(options.Policy)
	if metadata.Policy == "" {
		metadata.Policy = string(classify.PolicyCategory)
	}
	metrics.RecordOptimization(model)
	return Result{Files: proposed, Metadata: metadata}, nil
}

func (s Service) metadata(model string, started time.Time, originalCount int, optimizedCount int) Metadata {
	finished := s.now()
	return Metadata{
		AIModel:            model,
		Timestamp:          finished.UTC().Format(time.RFC3339),
		ProcessingTime:     finished.Sub(started).Milliseconds(),
		OriginalFileCount:  originalCount,
		OptimizedFileCount: optimizedCount,
	}
}

func (s Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
