// Package driveoptimizer is the drive-optimizer command line.
package driveoptimizer

import (
	"github.com/spf13/cobra"
)

// Execute runs the root command against the process environment.
func Execute() error {
	app, err := newApplication()
	if err != nil {
		return err
	}
	return newRootCommand(app).Execute()
}

func newRootCommand(app *application) *cobra.Command {
	command := &cobra.Command{
		Use:           applicationName,
		Short:         applicationShort,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.prepare()
		},
	}

	flags := command.PersistentFlags()
	flags.StringVar(&app.configPath, configFlagName, "", configFlagUsage)
	flags.String(logLevelFlagName, "", logLevelFlagUsage)
	flags.String(policyFlagName, "", policyFlagUsage)
	_ = app.settings.BindPFlag(logLevelKey, flags.Lookup(logLevelFlagName))
	_ = app.settings.BindPFlag(policyKey, flags.Lookup(policyFlagName))

	command.AddCommand(
		newServeCommand(app),
		newOptimizeCommand(app),
		newPlanCommand(app),
		newApplyCommand(app),
		newInventoryCommand(app),
	)
	return command
}
