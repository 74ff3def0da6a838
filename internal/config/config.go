package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	PolicyCategory  = "category"
	PolicyExtension = "extension"

	EmptyParentSkip   = "skip"
	EmptyParentWarn   = "warn"
	EmptyParentReject = "reject"

	ProviderDrive  = "drive"
	ProviderLocal  = "local"
	ProviderMemory = "memory"

	defaultWorkflowEndpoint                  = "https://api.holdings.miso.gs/ext/v1"
	defaultWorkflowAPIKeyEnv                 = "WORKFLOW_API_KEY"
	defaultWorkflowUser                      = "drive-optimizer"
	defaultWorkflowAttempts                  = 1
	defaultWorkflowTimeout                   = 120
	defaultDriveEndpoint                     = "https://www.googleapis.com/drive/v3"
	defaultDriveTokenEnv                     = "DRIVE_ACCESS_TOKEN"
	defaultDrivePageSize                     = 1000
	defaultDriveQuery                        = "trashed=false and 'me' in owners"
	defaultListenAddress                     = ":8080"
	defaultMoveConcurrency                   = 8
	defaultMinGroupSize                      = 1
	defaultWorkspaceMinGroups                = 2
	defaultLoggingLevel                      = "info"
	defaultLoggingFormat                     = "console"
	maximumWorkflowAttempts                  = 10
	maximumMoveConcurrency                   = 256
	rootConfigurationEmptyContentErrorFormat = "root configuration %s is empty"
	rootConfigurationUnmarshalErrorFormat    = "unmarshal root configuration %s: %w"
	unknownPolicyErrorFormat                 = "classifier.policy %q is not one of %s, %s"
	unknownEmptyParentErrorFormat            = "plan.empty_parent %q is not one of %s, %s, %s"
	unknownProviderErrorFormat               = "storage.provider %q is not one of %s, %s, %s"
	invalidRangeErrorFormat                  = "%s must be between %d and %d, got %d"
	localRootRequiredErrorMessage            = "storage.local.root is required for the local provider"
)

type Root struct {
	Common     Common     `yaml:"common"`
	Workflow   Workflow   `yaml:"workflow"`
	Classifier Classifier `yaml:"classifier"`
	Plan       Plan       `yaml:"plan"`
	Executor   Executor   `yaml:"executor"`
	Storage    Storage    `yaml:"storage"`
}

type Common struct {
	Logging Logging `yaml:"logging"`
	Server  struct {
		ListenAddress string `yaml:"listen_address"`
	} `yaml:"server"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Workflow struct {
	Endpoint       string `yaml:"endpoint"`
	APIKeyEnv      string `yaml:"api_key_env"`
	User           string `yaml:"user"`
	Attempts       int    `yaml:"attempts"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Fallback       *bool  `yaml:"fallback"`
}

// FallbackEnabled defaults to true when the key is absent.
func (workflow Workflow) FallbackEnabled() bool {
	return workflow.Fallback == nil || *workflow.Fallback
}

func (workflow Workflow) Timeout() time.Duration {
	return time.Duration(workflow.TimeoutSeconds) * time.Second
}

type Classifier struct {
	Policy              string `yaml:"policy"`
	MinGroupSize        int    `yaml:"min_group_size"`
	WorkspaceMinGroups  int    `yaml:"workspace_min_groups"`
	RelocateRootFolders *bool  `yaml:"relocate_root_folders"`
}

func (classifier Classifier) RelocatesRootFolders() bool {
	return classifier.RelocateRootFolders == nil || *classifier.RelocateRootFolders
}

type Plan struct {
	EmptyParent string `yaml:"empty_parent"`
}

type Executor struct {
	MoveConcurrency int  `yaml:"move_concurrency"`
	VerifyTargets   bool `yaml:"verify_targets"`
}

type Storage struct {
	Provider string `yaml:"provider"`
	Drive    struct {
		Endpoint string `yaml:"endpoint"`
		TokenEnv string `yaml:"token_env"`
		PageSize int    `yaml:"page_size"`
		Query    string `yaml:"query"`
	} `yaml:"drive"`
	Local struct {
		Root string `yaml:"root"`
	} `yaml:"local"`
	// Memory.Seed is an optional snapshot loaded into the in-memory provider.
	Memory struct {
		Seed string `yaml:"seed"`
	} `yaml:"memory"`
}

// LoadRoot parses the provided configuration source, applies defaults for
// omitted keys and validates the result.
func LoadRoot(source RootConfigurationSource) (Root, error) {
	if len(source.Content) == 0 {
		return Root{}, fmt.Errorf(rootConfigurationEmptyContentErrorFormat, source.Reference)
	}

	var rootConfiguration Root
	if err := yaml.Unmarshal(source.Content, &rootConfiguration); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationUnmarshalErrorFormat, source.Reference, err)
	}
	rootConfiguration.ApplyDefaults()
	if err := rootConfiguration.Validate(); err != nil {
		return Root{}, err
	}
	return rootConfiguration, nil
}

func (root *Root) ApplyDefaults() {
	setDefaultString(&root.Common.Logging.Level, defaultLoggingLevel)
	setDefaultString(&root.Common.Logging.Format, defaultLoggingFormat)
	setDefaultString(&root.Common.Server.ListenAddress, defaultListenAddress)

	setDefaultString(&root.Workflow.Endpoint, defaultWorkflowEndpoint)
	setDefaultString(&root.Workflow.APIKeyEnv, defaultWorkflowAPIKeyEnv)
	setDefaultString(&root.Workflow.User, defaultWorkflowUser)
	setDefaultInt(&root.Workflow.Attempts, defaultWorkflowAttempts)
	setDefaultInt(&root.Workflow.TimeoutSeconds, defaultWorkflowTimeout)

	setDefaultString(&root.Classifier.Policy, PolicyCategory)
	setDefaultInt(&root.Classifier.MinGroupSize, defaultMinGroupSize)
	setDefaultInt(&root.Classifier.WorkspaceMinGroups, defaultWorkspaceMinGroups)

	setDefaultString(&root.Plan.EmptyParent, EmptyParentWarn)
	setDefaultInt(&root.Executor.MoveConcurrency, defaultMoveConcurrency)

	setDefaultString(&root.Storage.Provider, ProviderDrive)
	setDefaultString(&root.Storage.Drive.Endpoint, defaultDriveEndpoint)
	setDefaultString(&root.Storage.Drive.TokenEnv, defaultDriveTokenEnv)
	setDefaultInt(&root.Storage.Drive.PageSize, defaultDrivePageSize)
	setDefaultString(&root.Storage.Drive.Query, defaultDriveQuery)
}

func (root Root) Validate() error {
	root.Classifier.Policy = strings.ToLower(root.Classifier.Policy)
	switch root.Classifier.Policy {
	case PolicyCategory, PolicyExtension:
	default:
		return fmt.Errorf(unknownPolicyErrorFormat, root.Classifier.Policy, PolicyCategory, PolicyExtension)
	}
	switch strings.ToLower(root.Plan.EmptyParent) {
	case EmptyParentSkip, EmptyParentWarn, EmptyParentReject:
	default:
		return fmt.Errorf(unknownEmptyParentErrorFormat, root.Plan.EmptyParent, EmptyParentSkip, EmptyParentWarn, EmptyParentReject)
	}
	switch strings.ToLower(root.Storage.Provider) {
	case ProviderDrive, ProviderMemory:
	case ProviderLocal:
		if strings.TrimSpace(root.Storage.Local.Root) == "" {
			return errors.New(localRootRequiredErrorMessage)
		}
	default:
		return fmt.Errorf(unknownProviderErrorFormat, root.Storage.Provider, ProviderDrive, ProviderLocal, ProviderMemory)
	}
	if err := checkRange("workflow.attempts", root.Workflow.Attempts, 1, maximumWorkflowAttempts); err != nil {
		return err
	}
	if err := checkRange("executor.move_concurrency", root.Executor.MoveConcurrency, 1, maximumMoveConcurrency); err != nil {
		return err
	}
	if err := checkRange("classifier.min_group_size", root.Classifier.MinGroupSize, 1, 1<<20); err != nil {
		return err
	}
	return nil
}

func checkRange(name string, value int, minimum int, maximum int) error {
	if value < minimum || value > maximum {
		return fmt.Errorf(invalidRangeErrorFormat, name, minimum, maximum, value)
	}
	return nil
}

func setDefaultString(target *string, fallback string) {
	if strings.TrimSpace(*target) == "" {
		*target = fallback
	}
}

func setDefaultInt(target *int, fallback int) {
	if *target == 0 {
		*target = fallback
	}
}
