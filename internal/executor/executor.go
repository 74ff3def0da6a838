// Package executor applies a plan against a storage provider: folder creates
// in order, moves with bounded concurrency, then deletes deepest first.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/metrics"
	"github.com/temirov/drive-optimizer/internal/plan"
)

type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationMove   OperationType = "move"
	OperationDelete OperationType = "delete"

	DefaultMoveConcurrency = 8

	parentNotCreatedFormat = "parent folder %s was not created"
	targetNotCreatedFormat = "target folder %s was not created"
	targetNotFolderFormat  = "target %s (%s) is not a folder"
	targetLookupFormat     = "target folder %s: %w"
	operationFailureFormat = "%s %s: %w"
	failedMessageFormat    = "failed to %s %s"
)

var completedMessageFormats = map[OperationType]string{
	OperationCreate: "created folder %s",
	OperationMove:   "moved %s",
	OperationDelete: "deleted folder %s",
}

var verifyFields = []string{"id", "name", "mimeType"}

// Provider is the subset of storage.Provider the executor calls.
type Provider interface {
	GetFile(ctx context.Context, id string, fields []string) (drivefile.Record, error)
	CreateFolder(ctx context.Context, name string, parentID string) (string, error)
	UpdateParents(ctx context.Context, id string, addParent string, removeParent string) (drivefile.Record, error)
	DeleteFile(ctx context.Context, id string) error
}

// Result is the outcome of one operation. ID is the created folder's real
// identifier for creates and the affected record otherwise.
type Result struct {
	Type        OperationType `json:"type"`
	Success     bool          `json:"success"`
	Name        string        `json:"name,omitempty"`
	ID          string        `json:"id,omitempty"`
	TempID      string        `json:"tempId,omitempty"`
	FileID      string        `json:"fileId,omitempty"`
	OldParentID string        `json:"oldParentId,omitempty"`
	NewParentID string        `json:"newParentId,omitempty"`
	Error       string        `json:"error,omitempty"`

	cause error
}

// Cause returns the error behind a failed result.
func (r Result) Cause() error { return r.cause }

type Results []Result

// Err combines the causes of all failed results, or returns nil.
func (results Results) Err() error {
	var combined error
	for _, result := range results {
		if result.Success {
			continue
		}
		subject := result.Name
		if subject == "" {
			subject = result.FileID
		}
		combined = multierr.Append(combined, fmt.Errorf(operationFailureFormat, result.Type, subject, result.cause))
	}
	return combined
}

func (results Results) Failed() Results {
	var failed Results
	for _, result := range results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

func (results Results) Succeeded() int {
	return len(results) - len(results.Failed())
}

// Count returns how many results of the given type succeeded and failed.
func (results Results) Count(operation OperationType) (succeeded int, failed int) {
	for _, result := range results {
		if result.Type != operation {
			continue
		}
		if result.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

type Options struct {
	MoveConcurrency int
	// VerifyTargets checks that each non-root move target is a folder first.
	VerifyTargets bool
	Plan          plan.Options
}

type Executor struct {
	provider Provider
	options  Options
	logger   *zap.Logger
	events   *Broadcaster
}

func New(provider Provider, options Options, logger *zap.Logger, events *Broadcaster) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.MoveConcurrency <= 0 {
		options.MoveConcurrency = DefaultMoveConcurrency
	}
	if options.Plan.Logger == nil {
		options.Plan.Logger = logger
	}
	return &Executor{provider: provider, options: options, logger: logger, events: events}
}

// Apply computes the plan for the two collections and executes it.
func (e *Executor) Apply(ctx context.Context, original []drivefile.Normalized, proposed []drivefile.Normalized) (Results, error) {
	operations, diffErr := plan.Diff(original, proposed, e.options.Plan)
	if diffErr != nil {
		return nil, diffErr
	}
	return e.Execute(ctx, operations), nil
}

// Execute runs every operation of the plan. Cancellation of ctx is ignored so
// a started plan always runs to completion.
func (e *Executor) Execute(ctx context.Context, operations plan.Plan) Results {
	ctx = context.WithoutCancel(ctx)
	results := make(Results, 0, operations.Len())

	e.events.Progress("creating %d folders", len(operations.Creates))
	createdIDs := make(map[string]string, len(operations.Creates))
	for _, create := range operations.Creates {
		result := e.create(ctx, create, createdIDs)
		if result.Success {
			createdIDs[create.Ref.String()] = result.ID
		}
		results = append(results, result)
	}

	e.events.Progress("moving %d files", len(operations.Moves))
	mapper := iter.Mapper[plan.Move, Result]{MaxGoroutines: e.options.MoveConcurrency}
	results = append(results, mapper.Map(operations.Moves, func(move *plan.Move) Result {
		return e.move(ctx, *move, createdIDs)
	})...)

	e.events.Progress("deleting %d folders", len(operations.Deletes))
	for _, deletion := range operations.Deletes {
		results = append(results, e.delete(ctx, deletion))
	}

	e.logger.Info("plan executed",
		zap.Int("operations", len(results)),
		zap.Int("succeeded", results.Succeeded()),
		zap.Int("failed", len(results.Failed())),
	)
	return results
}

func (e *Executor) create(ctx context.Context, create plan.CreateFolder, createdIDs map[string]string) Result {
	result := Result{Type: OperationCreate, Name: create.Name, TempID: create.Ref.String()}
	parentID, resolveErr := resolve(create.Parent, createdIDs, parentNotCreatedFormat)
	result.NewParentID = parentID
	if resolveErr != nil {
		return e.finish(result, resolveErr, 0)
	}
	started := time.Now()
	folderID, createErr := e.provider.CreateFolder(ctx, create.Name, parentID)
	result.ID = folderID
	return e.finish(result, createErr, time.Since(started))
}

func (e *Executor) move(ctx context.Context, move plan.Move, createdIDs map[string]string) Result {
	result := Result{Type: OperationMove, Name: move.FileName, FileID: move.FileID, ID: move.FileID, OldParentID: move.OldParentID}
	targetID, resolveErr := resolve(move.NewParent, createdIDs, targetNotCreatedFormat)
	result.NewParentID = targetID
	if resolveErr != nil {
		return e.finish(result, resolveErr, 0)
	}
	started := time.Now()
	if e.options.VerifyTargets && targetID != drivefile.RootID {
		target, lookupErr := e.provider.GetFile(ctx, targetID, verifyFields)
		if lookupErr != nil {
			return e.finish(result, fmt.Errorf(targetLookupFormat, targetID, lookupErr), time.Since(started))
		}
		if !target.IsFolder() {
			return e.finish(result, fmt.Errorf(targetNotFolderFormat, targetID, target.Name), time.Since(started))
		}
	}
	oldParentID := move.OldParentID
	if oldParentID == "" || drivefile.ParseRef(oldParentID).IsPending() {
		current, lookupErr := e.provider.GetFile(ctx, move.FileID, []string{"parents"})
		if lookupErr != nil {
			return e.finish(result, lookupErr, time.Since(started))
		}
		oldParentID, _ = current.ParentID()
		result.OldParentID = oldParentID
	}
	_, moveErr := e.provider.UpdateParents(ctx, move.FileID, targetID, oldParentID)
	return e.finish(result, moveErr, time.Since(started))
}

func (e *Executor) delete(ctx context.Context, deletion plan.DeleteFolder) Result {
	result := Result{Type: OperationDelete, Name: deletion.Name, ID: deletion.FolderID, FileID: deletion.FolderID}
	started := time.Now()
	deleteErr := e.provider.DeleteFile(ctx, deletion.FolderID)
	return e.finish(result, deleteErr, time.Since(started))
}

func (e *Executor) finish(result Result, err error, duration time.Duration) Result {
	result.Success = err == nil
	if err != nil {
		result.cause = err
		result.Error = err.Error()
		e.logger.Warn("operation failed",
			zap.String("type", string(result.Type)),
			zap.String("name", result.Name),
			zap.String("id", result.ID),
			zap.Error(err),
		)
	}
	metrics.RecordOperation(string(result.Type), duration, result.Success)
	e.events.Publish(Event{
		Type:    string(result.Type),
		Success: result.Success,
		Name:    result.Name,
		ID:      result.ID,
		FileID:  result.FileID,
		Error:   result.Error,
		Message: describe(result),
	})
	return result
}

func describe(result Result) string {
	if !result.Success {
		return fmt.Sprintf(failedMessageFormat, result.Type, result.Name)
	}
	return fmt.Sprintf(completedMessageFormats[result.Type], result.Name)
}

// resolve maps a planned reference to a provider identifier.
func resolve(ref drivefile.Ref, createdIDs map[string]string, missingFormat string) (string, error) {
	if ref.IsZero() {
		return drivefile.RootID, nil
	}
	if !ref.IsPending() {
		return ref.String(), nil
	}
	if id, ok := createdIDs[ref.String()]; ok {
		return id, nil
	}
	return "", fmt.Errorf(missingFormat, ref.String())
}
