package driveoptimizer

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/executor"
	"github.com/temirov/drive-optimizer/internal/pipeline"
	"github.com/temirov/drive-optimizer/tasks/restructure"
)

type applyCommandOptions struct {
	proposalPath     string
	saveProposalPath string
	dryRun           bool
}

func newApplyCommand(app *application) *cobra.Command {
	options := &applyCommandOptions{}
	command := &cobra.Command{
		Use:   applyCommandUse,
		Short: applyCommandShort,
		Args: func(cmd *cobra.Command, args []string) error {
			dryRunFlag := cmd.Flags().Lookup(dryRunFlagName)
			if len(args) == 1 && dryRunFlag != nil && dryRunFlag.Changed {
				if _, ok := parseBoolChoice(args[0]); ok {
					return nil
				}
				return fmt.Errorf(unexpectedArgumentFormat, args[0], dryRunFlagName)
			}
			return cobra.NoArgs(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			effectiveOptions := *options
			dryRunFlag := cmd.Flags().Lookup(dryRunFlagName)
			_, dryRunOverride := splitDryRunArgument(args, dryRunFlag != nil && dryRunFlag.Changed)
			if dryRunOverride != nil {
				effectiveOptions.dryRun = *dryRunOverride
			}
			return app.runApply(cmd, effectiveOptions)
		},
	}
	command.Flags().StringVar(&options.proposalPath, proposalFlagName, "", proposalFlagUsage)
	command.Flags().StringVar(&options.saveProposalPath, saveProposalFlagName, "", saveProposalFlagUsage)
	addBoolChoiceFlag(command.Flags(), &options.dryRun, dryRunFlagName, dryRunFlagUsage)
	return command
}

func (app *application) runApply(command *cobra.Command, options applyCommandOptions) error {
	ctx := command.Context()
	provider, err := app.buildProvider(ctx)
	if err != nil {
		return err
	}

	var proposal []drivefile.Record
	if options.proposalPath != "" {
		proposal, err = app.store().ReadRecords(options.proposalPath)
		if err != nil {
			return err
		}
	}
	var mover *executor.Executor
	if !options.dryRun {
		mover = app.buildExecutor(provider)
	}

	output := command.OutOrStdout()
	task := restructure.New(
		restructure.Deps{
			Provider: provider,
			Service:  app.buildService(),
			Executor: mover,
			Store:    app.store(),
			Output:   output,
			Logger:   app.log(),
		},
		restructure.Options{
			Query:        app.listQuery(),
			Proposal:     proposal,
			ProposalPath: options.saveProposalPath,
			DryRun:       options.dryRun,
			Plan:         app.planOptions(),
		},
	)
	runner := pipeline.Runner{Options: pipeline.RunOptions{MaxAttempts: applyAttempts}, Logger: app.log()}
	applied, runErr := runner.Run(ctx, task)
	if applied.Summary != "" {
		if _, writeErr := fmt.Fprintln(output, applied.Summary); writeErr != nil && runErr == nil {
			runErr = writeErr
		}
	}
	return runErr
}
