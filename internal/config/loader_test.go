package config_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/temirov/drive-optimizer/internal/config"
)

const (
	explicitConfigurationFileName     = "explicit.yaml"
	environmentConfigurationFileName  = "environment.yaml"
	workingDirectoryConfigurationName = "config.yaml"
	homeDirectoryName                 = ".drive-optimizer"
	homeConfigurationFileName         = "config.yaml"
	workingDirectory                  = "/work"
	homeDirectory                     = "/home/tester"
	explicitLoggingLevel              = "explicit-level"
	environmentLoggingLevel           = "environment-level"
	workingLoggingLevel               = "working-level"
	homeLoggingLevel                  = "home-level"
	embeddedLoggingLevel              = "info"
	missingExplicitFileName           = "missing.yaml"
	configurationTemplate             = "common:\n  logging:\n    level: %s\n    format: console\nworkflow:\n  endpoint: https://example.test/api\n  api_key_env: EXAMPLE_API_KEY\n  attempts: 2\nclassifier:\n  policy: extension\nstorage:\n  provider: memory\n"
	filePermissions                   = 0o644
)

type loaderTestCase struct {
	name                 string
	environmentPath      string
	setup                func(t *testing.T, fileSystem afero.Fs) (string, string)
	expectedLoggingLevel string
}

func TestRootConfigurationLoader_Load(t *testing.T) {
	testCases := []loaderTestCase{
		{
			name: "explicit path used when available",
			setup: func(t *testing.T, fileSystem afero.Fs) (string, string) {
				t.Helper()
				configurationPath := filepath.Join(workingDirectory, explicitConfigurationFileName)
				writeConfiguration(t, fileSystem, configurationPath, explicitLoggingLevel)
				writeConfiguration(t, fileSystem, filepath.Join(workingDirectory, workingDirectoryConfigurationName), workingLoggingLevel)
				return configurationPath, configurationPath
			},
			expectedLoggingLevel: explicitLoggingLevel,
		},
		{
			name:            "environment path used before working directory",
			environmentPath: filepath.Join(workingDirectory, environmentConfigurationFileName),
			setup: func(t *testing.T, fileSystem afero.Fs) (string, string) {
				t.Helper()
				configurationPath := filepath.Join(workingDirectory, environmentConfigurationFileName)
				writeConfiguration(t, fileSystem, configurationPath, environmentLoggingLevel)
				writeConfiguration(t, fileSystem, filepath.Join(workingDirectory, workingDirectoryConfigurationName), workingLoggingLevel)
				return "", configurationPath
			},
			expectedLoggingLevel: environmentLoggingLevel,
		},
		{
			name: "explicit path missing falls back to working directory",
			setup: func(t *testing.T, fileSystem afero.Fs) (string, string) {
				t.Helper()
				workingConfigurationPath := filepath.Join(workingDirectory, workingDirectoryConfigurationName)
				writeConfiguration(t, fileSystem, workingConfigurationPath, workingLoggingLevel)
				return filepath.Join(workingDirectory, missingExplicitFileName), workingConfigurationPath
			},
			expectedLoggingLevel: workingLoggingLevel,
		},
		{
			name: "home directory used when other locations missing",
			setup: func(t *testing.T, fileSystem afero.Fs) (string, string) {
				t.Helper()
				configurationPath := filepath.Join(homeDirectory, homeDirectoryName, homeConfigurationFileName)
				writeConfiguration(t, fileSystem, configurationPath, homeLoggingLevel)
				return "", configurationPath
			},
			expectedLoggingLevel: homeLoggingLevel,
		},
		{
			name: "embedded configuration used when no files available",
			setup: func(t *testing.T, fileSystem afero.Fs) (string, string) {
				t.Helper()
				return "", config.EmbeddedRootConfigurationReference
			},
			expectedLoggingLevel: embeddedLoggingLevel,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			fileSystem := afero.NewMemMapFs()
			loader := config.NewRootConfigurationLoaderWithFs(fileSystem, workingDirectory, homeDirectory, testCase.environmentPath)
			explicitPath, expectedReference := testCase.setup(t, fileSystem)

			source, loadErr := loader.Load(explicitPath)
			if loadErr != nil {
				t.Fatalf("load configuration source: %v", loadErr)
			}
			if source.Reference != expectedReference {
				t.Fatalf("expected reference %s, got %s", expectedReference, source.Reference)
			}

			rootConfiguration, parseErr := config.LoadRoot(source)
			if parseErr != nil {
				t.Fatalf("parse root configuration: %v", parseErr)
			}
			if rootConfiguration.Common.Logging.Level != testCase.expectedLoggingLevel {
				t.Fatalf("expected logging level %s, got %s", testCase.expectedLoggingLevel, rootConfiguration.Common.Logging.Level)
			}
		})
	}
}

func TestLoadRootAppliesDefaults(t *testing.T) {
	source := config.RootConfigurationSource{Reference: "inline", Content: []byte("storage:\n  provider: memory\n")}
	rootConfiguration, err := config.LoadRoot(source)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rootConfiguration.Classifier.Policy != config.PolicyCategory {
		t.Fatalf("expected category policy by default, got %s", rootConfiguration.Classifier.Policy)
	}
	if rootConfiguration.Classifier.MinGroupSize != 1 || rootConfiguration.Classifier.WorkspaceMinGroups != 2 {
		t.Fatalf("unexpected classifier thresholds %+v", rootConfiguration.Classifier)
	}
	if !rootConfiguration.Classifier.RelocatesRootFolders() {
		t.Fatalf("expected root folders to be relocated by default")
	}
	if rootConfiguration.Plan.EmptyParent != config.EmptyParentWarn {
		t.Fatalf("expected warn empty-parent policy, got %s", rootConfiguration.Plan.EmptyParent)
	}
	if !rootConfiguration.Workflow.FallbackEnabled() {
		t.Fatalf("expected fallback enabled by default")
	}
	if rootConfiguration.Executor.MoveConcurrency != 8 {
		t.Fatalf("unexpected move concurrency %d", rootConfiguration.Executor.MoveConcurrency)
	}
}

func TestLoadRootRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		contains string
	}{
		{name: "unknown policy", content: "classifier:\n  policy: random\n", contains: "classifier.policy"},
		{name: "unknown empty parent", content: "plan:\n  empty_parent: ignore\n", contains: "plan.empty_parent"},
		{name: "local without root", content: "storage:\n  provider: local\n", contains: "storage.local.root"},
		{name: "negative concurrency", content: "executor:\n  move_concurrency: -1\n", contains: "executor.move_concurrency"},
		{name: "empty content", content: "", contains: "is empty"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := config.LoadRoot(config.RootConfigurationSource{Reference: "inline", Content: []byte(testCase.content)})
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), testCase.contains) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.contains, err)
			}
		})
	}
}

func writeConfiguration(t *testing.T, fileSystem afero.Fs, path string, loggingLevel string) {
	t.Helper()
	content := fmt.Sprintf(configurationTemplate, loggingLevel)
	if err := afero.WriteFile(fileSystem, path, []byte(content), filePermissions); err != nil {
		t.Fatalf("write configuration file: %v", err)
	}
}
