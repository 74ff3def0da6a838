package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	// EmbeddedRootConfigurationReference identifies the embedded fallback configuration source.
	EmbeddedRootConfigurationReference = "embedded default configuration"
	// ConfigurationPathEnvironmentVariable names a configuration file consulted after an explicit path.
	ConfigurationPathEnvironmentVariable        = "DRIVE_OPTIMIZER_CONFIG"
	explicitConfigurationReadErrorFormat        = "read explicit configuration %s: %w"
	loaderInitializationWorkingDirectoryError   = "determine working directory: %w"
	loaderHomeEnvironmentVariableName           = "HOME"
	workingDirectoryConfigurationFileName       = "config.yaml"
	homeDirectoryConfigurationRelativeDirectory = ".drive-optimizer"
	homeDirectoryConfigurationFileName          = "config.yaml"
)

var (
	//go:embed default_root_configuration.yaml
	embeddedRootConfigurationBytes []byte
)

// RootConfigurationSource holds the raw configuration data and its origin.
type RootConfigurationSource struct {
	Reference string
	Content   []byte
}

// EmbeddedRootConfiguration returns the built-in defaults.
func EmbeddedRootConfiguration() RootConfigurationSource {
	return RootConfigurationSource{Reference: EmbeddedRootConfigurationReference, Content: embeddedRootConfigurationBytes}
}

// RootConfigurationLoader locates configuration files across supported search paths.
type RootConfigurationLoader struct {
	workingDirectory string
	homeDirectory    string
	environmentPath  string
	fileSystem       afero.Fs
}

// NewRootConfigurationLoader constructs a loader reading from the OS filesystem.
func NewRootConfigurationLoader(workingDirectory string, homeDirectory string) RootConfigurationLoader {
	return NewRootConfigurationLoaderWithFs(afero.NewOsFs(), workingDirectory, homeDirectory, "")
}

// NewRootConfigurationLoaderWithFs constructs a loader over an arbitrary filesystem.
func NewRootConfigurationLoaderWithFs(fileSystem afero.Fs, workingDirectory string, homeDirectory string, environmentPath string) RootConfigurationLoader {
	return RootConfigurationLoader{
		workingDirectory: workingDirectory,
		homeDirectory:    homeDirectory,
		environmentPath:  environmentPath,
		fileSystem:       fileSystem,
	}
}

// NewDefaultRootConfigurationLoader builds a loader using the process working directory, HOME
// and the configuration path environment variable.
func NewDefaultRootConfigurationLoader() (RootConfigurationLoader, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return RootConfigurationLoader{}, fmt.Errorf(loaderInitializationWorkingDirectoryError, workingDirectoryError)
	}
	homeDirectory := os.Getenv(loaderHomeEnvironmentVariableName)
	environmentPath := os.Getenv(ConfigurationPathEnvironmentVariable)
	return NewRootConfigurationLoaderWithFs(afero.NewOsFs(), workingDirectory, homeDirectory, environmentPath), nil
}

type configurationCandidate struct {
	path       string
	isExplicit bool
}

// Load resolves the configuration source using the preferred search order:
// explicit path, environment path, working directory, home directory, embedded defaults.
func (loader RootConfigurationLoader) Load(explicitPath string) (RootConfigurationSource, error) {
	for _, candidate := range loader.candidates(explicitPath) {
		if candidate.path == "" {
			continue
		}
		content, readError := afero.ReadFile(loader.fileSystem, filepath.Clean(candidate.path))
		if readError != nil {
			if candidate.isExplicit && !errors.Is(readError, fs.ErrNotExist) && !errors.Is(readError, fs.ErrPermission) {
				return RootConfigurationSource{}, fmt.Errorf(explicitConfigurationReadErrorFormat, candidate.path, readError)
			}
			continue
		}
		return RootConfigurationSource{Reference: candidate.path, Content: content}, nil
	}
	return EmbeddedRootConfiguration(), nil
}

func (loader RootConfigurationLoader) candidates(explicitPath string) []configurationCandidate {
	return []configurationCandidate{
		{path: explicitPath, isExplicit: explicitPath != ""},
		{path: loader.environmentPath, isExplicit: loader.environmentPath != ""},
		loader.workingDirectoryCandidate(),
		loader.homeDirectoryCandidate(),
	}
}

func (loader RootConfigurationLoader) workingDirectoryCandidate() configurationCandidate {
	if loader.workingDirectory == "" {
		return configurationCandidate{}
	}
	return configurationCandidate{path: filepath.Join(loader.workingDirectory, workingDirectoryConfigurationFileName)}
}

func (loader RootConfigurationLoader) homeDirectoryCandidate() configurationCandidate {
	if loader.homeDirectory == "" {
		return configurationCandidate{}
	}
	configurationDirectory := filepath.Join(loader.homeDirectory, homeDirectoryConfigurationRelativeDirectory)
	return configurationCandidate{path: filepath.Join(configurationDirectory, homeDirectoryConfigurationFileName)}
}
