package driveoptimizer

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/plan"
	"github.com/temirov/drive-optimizer/internal/report"
)

type planCommandOptions struct {
	originalPath string
	proposedPath string
	asJSON       bool
}

type planOutput struct {
	Comparison report.Comparison `json:"comparison"`
	Plan       plan.Plan         `json:"plan"`
}

func newPlanCommand(app *application) *cobra.Command {
	options := &planCommandOptions{}
	command := &cobra.Command{
		Use:   planCommandUse,
		Short: planCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runPlan(cmd, *options)
		},
	}
	command.Flags().StringVar(&options.originalPath, originalFlagName, "", originalFlagUsage)
	command.Flags().StringVar(&options.proposedPath, proposedFlagName, "", proposedFlagUsage)
	command.Flags().BoolVar(&options.asJSON, jsonFlagName, false, jsonFlagUsage)
	return command
}

func (app *application) runPlan(command *cobra.Command, options planCommandOptions) error {
	if options.originalPath == "" {
		return fmt.Errorf(requiredFlagErrorFormat, originalFlagName)
	}
	if options.proposedPath == "" {
		return fmt.Errorf(requiredFlagErrorFormat, proposedFlagName)
	}
	originalRecords, err := app.store().ReadRecords(options.originalPath)
	if err != nil {
		return err
	}
	proposedRecords, err := app.store().ReadRecords(options.proposedPath)
	if err != nil {
		return err
	}

	original := drivefile.Flatten(originalRecords)
	proposed := drivefile.Flatten(proposedRecords)
	operations, err := plan.Diff(original, proposed, app.planOptions())
	if err != nil {
		return err
	}
	comparison := report.Compare(original, proposed)

	output := command.OutOrStdout()
	if options.asJSON {
		return writeJSON(output, planOutput{Comparison: comparison, Plan: operations})
	}
	if err := report.Render(output, comparison); err != nil {
		return err
	}
	return report.RenderPlan(output, operations)
}
