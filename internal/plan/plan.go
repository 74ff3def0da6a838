// Package plan computes the folder-create, file-move and folder-delete
// operations that turn an original collection into a proposed one.
package plan

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
)

// EmptyParentPolicy decides what happens to a move whose target parent
// cannot be resolved.
type EmptyParentPolicy string

const (
	EmptyParentSkip   EmptyParentPolicy = "skip"
	EmptyParentWarn   EmptyParentPolicy = "warn"
	EmptyParentReject EmptyParentPolicy = "reject"

	skipReasonEmptyParent       = "proposed parent is empty"
	skipReasonUnplannedParent   = "proposed parent is a placeholder that is not planned"
	skipReasonSelfParent        = "proposed parent is the record itself"
	placeholderCycleMessage     = "placeholder folders form a cycle at %s"
	unplannedPlaceholderMessage = "placeholder folder %s references unplanned placeholder parent %s"
	rejectedMoveMessage         = "move of %s (%s) rejected: %s"
)

type Options struct {
	EmptyParent EmptyParentPolicy
	Logger      *zap.Logger
}

type CreateFolder struct {
	Ref    drivefile.Ref `json:"tempId"`
	Name   string        `json:"name"`
	Parent drivefile.Ref `json:"parentId"`
}

type Move struct {
	FileID      string        `json:"fileId"`
	FileName    string        `json:"fileName"`
	OldParentID string        `json:"oldParentId"`
	NewParent   drivefile.Ref `json:"newParentId"`
}

type DeleteFolder struct {
	FolderID string `json:"folderId"`
	Name     string `json:"name"`
	Depth    int    `json:"depth"`
}

// Skip records a move that was withheld under the empty-parent policy.
type Skip struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

type Plan struct {
	Creates []CreateFolder `json:"createFolders"`
	Moves   []Move         `json:"moves"`
	Deletes []DeleteFolder `json:"deleteFolders"`
	Skipped []Skip         `json:"skipped,omitempty"`
}

func (p Plan) Len() int { return len(p.Creates) + len(p.Moves) + len(p.Deletes) }

func (p Plan) IsEmpty() bool { return p.Len() == 0 }

// Diff compares both collections by ID. Creates are ordered parent first,
// moves follow the proposed order, and deletes run deepest first.
func Diff(original []drivefile.Normalized, proposed []drivefile.Normalized, options Options) (Plan, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	originalIndex := drivefile.NewIndex(original)

	creates, createErr := plannedCreates(originalIndex, proposed)
	if createErr != nil {
		return Plan{}, createErr
	}
	planned := make(map[string]struct{}, len(creates))
	for _, create := range creates {
		planned[create.Ref.String()] = struct{}{}
	}

	result := Plan{Creates: creates}
	seen := make(map[string]struct{}, len(proposed))
	for _, record := range proposed {
		if record.Ref().IsPending() {
			continue
		}
		if _, duplicate := seen[record.ID]; duplicate {
			continue
		}
		seen[record.ID] = struct{}{}
		before, found := originalIndex.Lookup(record.ID)
		if !found {
			continue
		}
		newParentID := strings.TrimSpace(record.CurrentParent)
		if newParentID == before.CurrentParent {
			continue
		}
		reason := ""
		newParent := drivefile.ParseRef(newParentID)
		switch {
		case newParent.IsZero():
			reason = skipReasonEmptyParent
		case newParentID == record.ID:
			reason = skipReasonSelfParent
		case newParent.IsPending():
			if _, ok := planned[newParentID]; !ok {
				reason = skipReasonUnplannedParent
			}
		}
		if reason != "" {
			skip := Skip{FileID: record.ID, FileName: record.Name, Reason: reason}
			switch options.EmptyParent {
			case EmptyParentReject:
				return Plan{}, faults.Newf(faults.KindInvalidShape, rejectedMoveMessage, record.Name, record.ID, reason)
			case EmptyParentSkip:
			default:
				logger.Warn("skipping move", zap.String("file_id", record.ID), zap.String("file_name", record.Name), zap.String("reason", reason))
				result.Skipped = append(result.Skipped, skip)
			}
			continue
		}
		result.Moves = append(result.Moves, Move{
			FileID:      record.ID,
			FileName:    record.Name,
			OldParentID: before.CurrentParent,
			NewParent:   newParent,
		})
	}

	result.Deletes = plannedDeletes(original, originalIndex, proposed)
	return result, nil
}

func plannedCreates(originalIndex *drivefile.Index, proposed []drivefile.Normalized) ([]CreateFolder, error) {
	var order []string
	candidates := make(map[string]drivefile.Normalized)
	for _, record := range proposed {
		if !record.Ref().IsPending() || originalIndex.Contains(record.ID) {
			continue
		}
		if _, duplicate := candidates[record.ID]; duplicate {
			continue
		}
		candidates[record.ID] = record
		order = append(order, record.ID)
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(order))
	sorted := make([]CreateFolder, 0, len(order))
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return faults.Newf(faults.KindConfiguration, placeholderCycleMessage, id)
		}
		state[id] = visiting
		record := candidates[id]
		parent := drivefile.ParseRef(record.CurrentParent)
		if parent.IsZero() {
			parent = drivefile.Committed(drivefile.RootID)
		}
		if parent.IsPending() {
			if _, known := candidates[parent.String()]; !known {
				return faults.Newf(faults.KindConfiguration, unplannedPlaceholderMessage, id, parent.String())
			}
			if err := visit(parent.String()); err != nil {
				return err
			}
		}
		state[id] = done
		sorted = append(sorted, CreateFolder{Ref: record.Ref(), Name: record.Name, Parent: parent})
		return nil
	}
	for _, id := range order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

func plannedDeletes(original []drivefile.Normalized, originalIndex *drivefile.Index, proposed []drivefile.Normalized) []DeleteFolder {
	kept := KeptIDs(proposed)
	var deletes []DeleteFolder
	seen := make(map[string]struct{})
	for _, record := range original {
		if !record.IsFolder() || record.Ref().IsPending() {
			continue
		}
		if _, keep := kept[record.ID]; keep {
			continue
		}
		if _, duplicate := seen[record.ID]; duplicate {
			continue
		}
		seen[record.ID] = struct{}{}
		deletes = append(deletes, DeleteFolder{FolderID: record.ID, Name: record.Name, Depth: originalIndex.Depth(record.ID)})
	}
	sort.SliceStable(deletes, func(left, right int) bool {
		return deletes[left].Depth > deletes[right].Depth
	})
	return deletes
}

// KeptIDs returns every committed ID the proposal still references, either
// as a record of its own or as the parent of another record. An original
// folder in this set is never deleted, whatever kind the proposal gives it.
func KeptIDs(proposed []drivefile.Normalized) map[string]struct{} {
	kept := make(map[string]struct{}, len(proposed))
	for _, record := range proposed {
		if !record.Ref().IsPending() {
			kept[record.ID] = struct{}{}
		}
		parent := drivefile.ParseRef(strings.TrimSpace(record.CurrentParent))
		if !parent.IsZero() && !parent.IsPending() {
			kept[parent.String()] = struct{}{}
		}
	}
	return kept
}
