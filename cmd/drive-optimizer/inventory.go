package driveoptimizer

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/storage"
)

type inventoryCommandOptions struct {
	outputPath string
}

func newInventoryCommand(app *application) *cobra.Command {
	options := &inventoryCommandOptions{}
	command := &cobra.Command{
		Use:   inventoryCommandUse,
		Short: inventoryCommandShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runInventory(cmd, *options)
		},
	}
	command.Flags().StringVar(&options.outputPath, outputFlagName, "", outputFlagUsage)
	return command
}

func (app *application) runInventory(command *cobra.Command, options inventoryCommandOptions) error {
	provider, err := app.buildProvider(command.Context())
	if err != nil {
		return err
	}
	records, err := storage.ListAll(command.Context(), provider, app.listQuery())
	if err != nil {
		return err
	}
	app.log().Info("inventory listed", zap.Int("records", len(records)), zap.String("provider", app.root.Storage.Provider))
	if options.outputPath != "" {
		return app.store().WriteRecords(options.outputPath, records)
	}
	if records == nil {
		return writeJSON(command.OutOrStdout(), []any{})
	}
	return writeJSON(command.OutOrStdout(), records)
}
