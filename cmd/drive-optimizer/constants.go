package driveoptimizer

import "time"

const (
	applicationName             = "drive-optimizer"
	applicationShort            = "Propose, plan and apply a reorganized file hierarchy"
	environmentPrefix           = "DRIVE_OPTIMIZER"
	homeEnvironmentVariable     = "HOME"
	logOutputPath               = "stderr"
	configFlagName              = "config"
	configFlagUsage             = "Path to config.yaml (default: search ./config.yaml, ~/.drive-optimizer/config.yaml, built-in)"
	logLevelFlagName            = "log-level"
	logLevelFlagUsage           = "Log level: debug, info, warn, error"
	policyFlagName              = "policy"
	policyFlagUsage             = "Classifier policy: category or extension"
	listenFlagName              = "listen"
	listenFlagUsage             = "HTTP listen address"
	inputFlagName               = "input"
	inputFlagUsage              = "Snapshot of records to optimize (JSON array or {files: [...]})"
	outputFlagName              = "output"
	outputFlagUsage             = "Write the result to this path instead of stdout"
	languageFlagName            = "lang"
	languageFlagUsage           = "Preferred languages for explanations, Accept-Language syntax (e.g. ko, en;q=0.8)"
	originalFlagName            = "original"
	originalFlagUsage           = "Snapshot of the current records"
	proposedFlagName            = "proposed"
	proposedFlagUsage           = "Snapshot of the proposed records"
	jsonFlagName                = "json"
	jsonFlagUsage               = "Print the comparison and plan as JSON"
	proposalFlagName            = "proposal"
	proposalFlagUsage           = "Use this snapshot as the proposal instead of running the optimizer"
	saveProposalFlagName        = "save-proposal"
	saveProposalFlagUsage       = "Save the accepted proposal to this path"
	dryRunFlagName              = "dry-run"
	dryRunFlagUsage             = "Print the plan without changing storage (accepts true/false)"
	serveCommandUse             = "serve"
	serveCommandShort           = "Serve the optimize and compare HTTP API"
	optimizeCommandUse          = "optimize"
	optimizeCommandShort        = "Propose a reorganized structure for a snapshot"
	planCommandUse              = "plan"
	planCommandShort            = "Compare two snapshots and print the operations between them"
	applyCommandUse             = "apply"
	applyCommandShort           = "Reorganize the configured storage provider"
	inventoryCommandUse         = "inventory"
	inventoryCommandShort       = "List the configured storage provider into a snapshot"
	logLevelKey                 = "common.logging.level"
	listenAddressKey            = "common.server.listen_address"
	policyKey                   = "classifier.policy"
	applyAttempts               = 2
	jsonIndent                  = "  "
	serverReadHeaderTimeout     = 10 * time.Second
	serverShutdownTimeout       = 15 * time.Second
	missingTokenErrorFormat     = "missing Drive access token: set %s"
	unexpectedArgumentFormat    = "invalid boolean value %q for --%s"
	requiredFlagErrorFormat     = "--%s is required"
	workingDirectoryErrorFormat = "determine working directory: %w"
)
