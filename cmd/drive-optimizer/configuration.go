package driveoptimizer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/config"
	"github.com/temirov/drive-optimizer/internal/logging"
)

const (
	configurationSourceResolutionErrorFormat = "resolve configuration source: %w"
	rootConfigurationLoadErrorFormat         = "load root configuration %s: %w"
	overriddenConfigurationErrorFormat       = "apply overrides: %w"
	loggerInitializationErrorFormat          = "initialize logger: %w"
)

// application carries the process-wide collaborators shared by every command.
type application struct {
	fileSystem       afero.Fs
	settings         *viper.Viper
	environment      func(string) string
	workingDirectory string
	homeDirectory    string
	configPath       string
	root             config.Root
	logger           *zap.Logger
	logOutput        string
}

func newApplication() (*application, error) {
	workingDirectory, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf(workingDirectoryErrorFormat, err)
	}
	return &application{
		fileSystem:       afero.NewOsFs(),
		settings:         newSettings(),
		environment:      os.Getenv,
		workingDirectory: workingDirectory,
		homeDirectory:    os.Getenv(homeEnvironmentVariable),
		logOutput:        logOutputPath,
	}, nil
}

// newSettings reads DRIVE_OPTIMIZER_<SECTION>_<KEY> variables, e.g.
// DRIVE_OPTIMIZER_CLASSIFIER_POLICY for classifier.policy.
func newSettings() *viper.Viper {
	settings := viper.New()
	settings.SetEnvPrefix(environmentPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	settings.AutomaticEnv()
	return settings
}

// prepare loads the configuration and builds the logger. Commands run it from
// the root's PersistentPreRunE.
func (app *application) prepare() error {
	root, err := app.loadRootConfiguration()
	if err != nil {
		return err
	}
	app.root = root
	if app.logger != nil {
		return nil
	}
	logger, err := logging.New(logging.Config{
		Level:      root.Common.Logging.Level,
		Format:     root.Common.Logging.Format,
		OutputPath: app.logOutput,
	})
	if err != nil {
		return fmt.Errorf(loggerInitializationErrorFormat, err)
	}
	app.logger = logger
	return nil
}

func (app *application) loadRootConfiguration() (config.Root, error) {
	loader := config.NewRootConfigurationLoaderWithFs(
		app.fileSystem,
		app.workingDirectory,
		app.homeDirectory,
		app.environment(config.ConfigurationPathEnvironmentVariable),
	)
	configurationSource, sourceErr := loader.Load(app.configPath)
	if sourceErr != nil {
		return config.Root{}, fmt.Errorf(configurationSourceResolutionErrorFormat, sourceErr)
	}
	rootConfiguration, loadErr := config.LoadRoot(configurationSource)
	if loadErr != nil {
		return config.Root{}, fmt.Errorf(rootConfigurationLoadErrorFormat, configurationSource.Reference, loadErr)
	}
	app.applyOverrides(&rootConfiguration)
	if err := rootConfiguration.Validate(); err != nil {
		return config.Root{}, fmt.Errorf(overriddenConfigurationErrorFormat, err)
	}
	return rootConfiguration, nil
}

// applyOverrides copies flag and environment values that were explicitly set
// over the file configuration.
func (app *application) applyOverrides(root *config.Root) {
	overrides := map[string]*string{
		logLevelKey:      &root.Common.Logging.Level,
		listenAddressKey: &root.Common.Server.ListenAddress,
		policyKey:        &root.Classifier.Policy,
	}
	for key, target := range overrides {
		if !app.settings.IsSet(key) {
			continue
		}
		if value := strings.TrimSpace(app.settings.GetString(key)); value != "" {
			*target = value
		}
	}
}

func (app *application) log() *zap.Logger {
	if app.logger == nil {
		return zap.NewNop()
	}
	return app.logger
}

func writeJSON(writer io.Writer, value any) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", jsonIndent)
	return encoder.Encode(value)
}
