// Package classify proposes a reorganized folder structure for a flat file
// list using deterministic grouping rules.
package classify

import (
	"strconv"
	"strings"
	"time"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
)

type Policy string

const (
	PolicyCategory  Policy = "category"
	PolicyExtension Policy = "extension"

	DefaultMinGroupSize       = 1
	DefaultWorkspaceMinGroups = 2

	noExtensionKey         = "no_extension"
	unknownPolicyMessage   = "unknown classifier policy %q"
	extensionFolderPattern = ".%s files"
)

// Options selects the grouping policy and its thresholds. Zero values fall
// back to the package defaults.
type Options struct {
	Policy              Policy
	MinGroupSize        int
	WorkspaceMinGroups  int
	RelocateRootFolders bool
	Now                 func() time.Time
}

// DefaultOptions returns the category policy with root-folder relocation enabled.
func DefaultOptions() Options {
	return Options{
		Policy:              PolicyCategory,
		MinGroupSize:        DefaultMinGroupSize,
		WorkspaceMinGroups:  DefaultWorkspaceMinGroups,
		RelocateRootFolders: true,
	}
}

func (options Options) withDefaults() Options {
	if options.Policy == "" {
		options.Policy = PolicyCategory
	}
	if options.MinGroupSize <= 0 {
		options.MinGroupSize = DefaultMinGroupSize
	}
	if options.WorkspaceMinGroups <= 0 {
		options.WorkspaceMinGroups = DefaultWorkspaceMinGroups
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return options
}

// Propose returns a proposed collection built from clones of the input.
// The input slice and its records are never modified.
func Propose(files []drivefile.Normalized, options Options) ([]drivefile.Record, error) {
	effective := options.withDefaults()
	switch Policy(strings.ToLower(string(effective.Policy))) {
	case PolicyCategory:
		return proposeByCategory(files, effective), nil
	case PolicyExtension:
		return proposeByExtension(files, effective), nil
	default:
		return nil, faults.Newf(faults.KindConfiguration, unknownPolicyMessage, effective.Policy)
	}
}

func newFolder(id string, name string, parentID string, timestamp string) drivefile.Record {
	return drivefile.Record{
		ID:           id,
		Name:         name,
		MIMEType:     drivefile.FolderMIMEType,
		Parents:      []string{parentID},
		CreatedTime:  timestamp,
		ModifiedTime: timestamp,
	}
}

func placeholderID(key string, year int) string {
	return drivefile.Pending("ai_" + key + "_" + strconv.Itoa(year)).String()
}
