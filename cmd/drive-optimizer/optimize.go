package driveoptimizer

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/drive-optimizer/internal/faults"
)

type optimizeCommandOptions struct {
	inputPath  string
	outputPath string
	languages  string
}

func newOptimizeCommand(app *application) *cobra.Command {
	options := &optimizeCommandOptions{}
	command := &cobra.Command{
		Use:   optimizeCommandUse,
		Short: optimizeCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runOptimize(cmd, *options)
		},
	}
	command.Flags().StringVar(&options.inputPath, inputFlagName, "", inputFlagUsage)
	command.Flags().StringVar(&options.outputPath, outputFlagName, "", outputFlagUsage)
	command.Flags().StringVar(&options.languages, languageFlagName, "", languageFlagUsage)
	return command
}

func (app *application) runOptimize(command *cobra.Command, options optimizeCommandOptions) error {
	if options.inputPath == "" {
		return fmt.Errorf(requiredFlagErrorFormat, inputFlagName)
	}
	records, err := app.store().ReadRecords(options.inputPath)
	if err != nil {
		return err
	}
	result, err := app.buildService().Optimize(command.Context(), records, faults.ParseAcceptLanguage(options.languages)...)
	if err != nil {
		return err
	}
	if options.outputPath != "" {
		return app.store().WriteJSON(options.outputPath, result)
	}
	return writeJSON(command.OutOrStdout(), result)
}
