// Package report builds the before/after view of a reorganization and
// renders it for the terminal.
package report

import (
	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/plan"
)

// TreeNode is the serializable form of one node of a materialized tree.
type TreeNode struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	MIMEType string     `json:"mimeType"`
	Folder   bool       `json:"isFolder"`
	Children []TreeNode `json:"children,omitempty"`
}

// MovedFile describes a relocated record. MovedFolders reuses it for folders.
type MovedFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MIMEType    string `json:"mimeType"`
	OldPath     string `json:"oldPath"`
	NewPath     string `json:"newPath"`
	OldParentID string `json:"oldParentId"`
	NewParentID string `json:"newParentId"`
}

type FolderChange struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId,omitempty"`
	Path     string `json:"path"`
}

type Changes struct {
	MovedFiles           []MovedFile    `json:"movedFiles"`
	MovedFolders         []MovedFile    `json:"movedFolders"`
	NewFolders           []FolderChange `json:"newFolders"`
	DeletedFolders       []FolderChange `json:"deletedFolders"`
	TotalFiles           int            `json:"totalFiles"`
	TotalProposedFiles   int            `json:"totalOptimizedFiles"`
	TotalOriginalFolders int            `json:"totalOriginalFolders"`
	TotalDeletedFolders  int            `json:"totalDeletedFolders"`
}

type Comparison struct {
	OriginalTree []TreeNode `json:"original"`
	ProposedTree []TreeNode `json:"optimized"`
	Changes      Changes    `json:"changes"`
}

// Compare reports what moves between the two collections. Paths resolve
// through the collection the record belongs to and fall back to the other
// one for parents it does not hold, such as freshly planned folders. A folder
// counts as deleted under the same rule plan.Diff applies.
func Compare(original []drivefile.Normalized, proposed []drivefile.Normalized) Comparison {
	originalIndex := drivefile.NewIndex(original)
	proposedIndex := drivefile.NewIndex(proposed)
	kept := plan.KeptIDs(proposed)

	changes := Changes{
		MovedFiles:     []MovedFile{},
		MovedFolders:   []MovedFile{},
		NewFolders:     []FolderChange{},
		DeletedFolders: []FolderChange{},
	}
	seen := make(map[string]struct{}, len(original))
	for _, record := range original {
		if _, duplicate := seen[record.ID]; duplicate {
			continue
		}
		seen[record.ID] = struct{}{}
		if record.IsFolder() {
			changes.TotalOriginalFolders++
			_, keep := kept[record.ID]
			if !keep && !record.Ref().IsPending() {
				changes.DeletedFolders = append(changes.DeletedFolders, FolderChange{
					ID:       record.ID,
					Name:     record.Name,
					ParentID: record.CurrentParent,
					Path:     originalIndex.Path(record.ID, proposedIndex),
				})
				continue
			}
		} else {
			changes.TotalFiles++
		}
		after, found := proposedIndex.Lookup(record.ID)
		if !found || after.CurrentParent == "" || after.CurrentParent == record.CurrentParent {
			continue
		}
		moved := MovedFile{
			ID:          record.ID,
			Name:        record.Name,
			MIMEType:    record.MIMEType,
			OldPath:     originalIndex.Path(record.ID, proposedIndex),
			NewPath:     proposedIndex.Path(record.ID, originalIndex),
			OldParentID: record.CurrentParent,
			NewParentID: after.CurrentParent,
		}
		if record.IsFolder() {
			changes.MovedFolders = append(changes.MovedFolders, moved)
			continue
		}
		changes.MovedFiles = append(changes.MovedFiles, moved)
	}
	changes.TotalDeletedFolders = len(changes.DeletedFolders)

	planned := make(map[string]struct{})
	for _, record := range proposed {
		if record.IsFolder() {
			if _, duplicate := planned[record.ID]; duplicate {
				continue
			}
			planned[record.ID] = struct{}{}
			if record.Ref().IsPending() {
				changes.NewFolders = append(changes.NewFolders, FolderChange{
					ID:       record.ID,
					Name:     record.Name,
					ParentID: record.CurrentParent,
					Path:     proposedIndex.Path(record.ID, originalIndex),
				})
			}
			continue
		}
		changes.TotalProposedFiles++
	}

	return Comparison{
		OriginalTree: treeNodes(drivefile.BuildTree(original)),
		ProposedTree: treeNodes(drivefile.BuildTree(proposed)),
		Changes:      changes,
	}
}

type treeFrame struct {
	source []*drivefile.Node
	target *[]TreeNode
}

func treeNodes(roots []*drivefile.Node) []TreeNode {
	result := make([]TreeNode, 0, len(roots))
	stack := []treeFrame{{source: roots, target: &result}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		*frame.target = make([]TreeNode, len(frame.source))
		for position, node := range frame.source {
			(*frame.target)[position] = TreeNode{
				ID:       node.Record.ID,
				Name:     node.Record.Name,
				MIMEType: node.Record.MIMEType,
				Folder:   node.Record.IsFolder(),
			}
			if len(node.Children) > 0 {
				stack = append(stack, treeFrame{source: node.Children, target: &(*frame.target)[position].Children})
			}
		}
	}
	return result
}
