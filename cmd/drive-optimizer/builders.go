package driveoptimizer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/classify"
	"github.com/temirov/drive-optimizer/internal/config"
	"github.com/temirov/drive-optimizer/internal/executor"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/fsops"
	"github.com/temirov/drive-optimizer/internal/optimize"
	"github.com/temirov/drive-optimizer/internal/plan"
	"github.com/temirov/drive-optimizer/internal/storage"
	"github.com/temirov/drive-optimizer/internal/storage/drive"
	"github.com/temirov/drive-optimizer/internal/storage/localfs"
	"github.com/temirov/drive-optimizer/internal/storage/memory"
	"github.com/temirov/drive-optimizer/internal/workflow"
)

func (app *application) store() fsops.Store {
	return fsops.NewStore(app.fileSystem)
}

func (app *application) buildProvider(ctx context.Context) (storage.Provider, error) {
	storageConfiguration := app.root.Storage
	switch strings.ToLower(storageConfiguration.Provider) {
	case config.ProviderLocal:
		provider, err := localfs.New(app.fileSystem, storageConfiguration.Local.Root)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case config.ProviderMemory:
		provider := memory.New()
		if seedPath := strings.TrimSpace(storageConfiguration.Memory.Seed); seedPath != "" {
			records, err := app.store().ReadRecords(seedPath)
			if err != nil {
				return nil, err
			}
			provider.Seed(records...)
		}
		return provider, nil
	default:
		tokenVariable := storageConfiguration.Drive.TokenEnv
		token := strings.TrimSpace(app.environment(tokenVariable))
		if token == "" {
			return nil, faults.Newf(faults.KindConfiguration, missingTokenErrorFormat, tokenVariable)
		}
		return drive.New(ctx, storageConfiguration.Drive.Endpoint, token, storageConfiguration.Drive.PageSize)
	}
}

// listQuery is the provider-side filter; only Drive interprets it.
func (app *application) listQuery() string {
	if strings.EqualFold(app.root.Storage.Provider, config.ProviderDrive) {
		return app.root.Storage.Drive.Query
	}
	return ""
}

// buildService wires the workflow client only when its API key is present;
// otherwise every request runs the local classifier.
func (app *application) buildService() optimize.Service {
	classifierConfiguration := app.root.Classifier
	workflowConfiguration := app.root.Workflow
	service := optimize.Service{
		Classifier: classify.Options{
			Policy:              classify.Policy(strings.ToLower(classifierConfiguration.Policy)),
			MinGroupSize:        classifierConfiguration.MinGroupSize,
			WorkspaceMinGroups:  classifierConfiguration.WorkspaceMinGroups,
			RelocateRootFolders: classifierConfiguration.RelocatesRootFolders(),
		},
		Attempts:        workflowConfiguration.Attempts,
		Timeout:         workflowConfiguration.Timeout(),
		FallbackEnabled: workflowConfiguration.FallbackEnabled(),
		Logger:          app.log(),
	}
	if apiKey := strings.TrimSpace(app.environment(workflowConfiguration.APIKeyEnv)); apiKey != "" {
		service.Workflow = workflow.Client{
			BaseURL: workflowConfiguration.Endpoint,
			APIKey:  apiKey,
			User:    workflowConfiguration.User,
		}
	}
	return service
}

func (app *application) planOptions() plan.Options {
	return plan.Options{
		EmptyParent: plan.EmptyParentPolicy(strings.ToLower(app.root.Plan.EmptyParent)),
		Logger:      app.log(),
	}
}

func (app *application) buildExecutor(provider executor.Provider) *executor.Executor {
	logger := app.log()
	events := executor.NewBroadcaster(logger)
	events.Observe(func(event executor.Event) {
		switch {
		case event.Type == executor.EventProgress:
			logger.Info(event.Message)
		case !event.Success:
			logger.Warn("operation failed", zap.String("type", event.Type), zap.String("id", event.ID), zap.String("name", event.Name), zap.String("error", event.Error))
		default:
			logger.Debug("operation completed", zap.String("type", event.Type), zap.String("id", event.ID), zap.String("name", event.Name))
		}
	})
	return executor.New(provider, executor.Options{
		MoveConcurrency: app.root.Executor.MoveConcurrency,
		VerifyTargets:   app.root.Executor.VerifyTargets,
		Plan:            app.planOptions(),
	}, logger, events)
}
