package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/temirov/drive-optimizer/internal/executor"
	"github.com/temirov/drive-optimizer/internal/plan"
)

var (
	colorAccent  = lipgloss.Color("#3498db")
	colorSuccess = lipgloss.Color("#2ecc71")
	colorWarning = lipgloss.Color("#f39c12")
	colorError   = lipgloss.Color("#ef233c")
	colorMuted   = lipgloss.Color("#8d99ae")
)

const (
	branchMiddle = "├── "
	branchLast   = "└── "
	indentMiddle = "│   "
	indentLast   = "    "
	folderSuffix = "/"
)

type styles struct {
	title   lipgloss.Style
	box     lipgloss.Style
	label   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
}

// newStyles binds the styles to the writer so color is only emitted for terminals.
func newStyles(writer io.Writer) styles {
	renderer := lipgloss.NewRenderer(writer)
	return styles{
		title:   renderer.NewStyle().Bold(true).Foreground(colorAccent),
		box:     renderer.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1),
		label:   renderer.NewStyle().Foreground(colorMuted),
		success: renderer.NewStyle().Foreground(colorSuccess).Bold(true),
		warning: renderer.NewStyle().Foreground(colorWarning).Bold(true),
		failure: renderer.NewStyle().Foreground(colorError).Bold(true),
		muted:   renderer.NewStyle().Foreground(colorMuted),
	}
}

// Render writes both trees followed by the change summary.
func Render(writer io.Writer, comparison Comparison) error {
	theme := newStyles(writer)
	trees := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.box.Render(theme.title.Render("Current")+"\n"+drawTree(comparison.OriginalTree)),
		" ",
		theme.box.Render(theme.title.Render("Proposed")+"\n"+drawTree(comparison.ProposedTree)),
	)

	var builder strings.Builder
	builder.WriteString(trees + "\n\n")
	changes := comparison.Changes
	builder.WriteString(theme.title.Render("SUMMARY") + "\n")
	builder.WriteString(theme.label.Render("Files: ") + fmt.Sprintf("%d → %d", changes.TotalFiles, changes.TotalProposedFiles) + "\n")
	builder.WriteString(theme.label.Render("Moved files: ") + fmt.Sprintf("%d", len(changes.MovedFiles)) + "\n")
	builder.WriteString(theme.label.Render("Moved folders: ") + fmt.Sprintf("%d", len(changes.MovedFolders)) + "\n")
	builder.WriteString(theme.label.Render("New folders: ") + fmt.Sprintf("%d", len(changes.NewFolders)) + "\n")
	builder.WriteString(theme.label.Render("Deleted folders: ") + fmt.Sprintf("%d of %d", changes.TotalDeletedFolders, changes.TotalOriginalFolders) + "\n")

	if len(changes.NewFolders) > 0 {
		builder.WriteString("\n" + theme.title.Render("NEW FOLDERS") + "\n")
		for _, folder := range changes.NewFolders {
			builder.WriteString(theme.success.Render("+ ") + folder.Path + "\n")
		}
	}
	if len(changes.MovedFolders) > 0 {
		builder.WriteString("\n" + theme.title.Render("MOVED FOLDERS") + "\n")
		for _, moved := range changes.MovedFolders {
			builder.WriteString(theme.warning.Render("~ ") + moved.OldPath + folderSuffix + theme.muted.Render(" → ") + moved.NewPath + folderSuffix + "\n")
		}
	}
	if len(changes.MovedFiles) > 0 {
		builder.WriteString("\n" + theme.title.Render("MOVES") + "\n")
		for _, moved := range changes.MovedFiles {
			builder.WriteString(theme.warning.Render("~ ") + moved.OldPath + theme.muted.Render(" → ") + moved.NewPath + "\n")
		}
	}
	if len(changes.DeletedFolders) > 0 {
		builder.WriteString("\n" + theme.title.Render("DELETED FOLDERS") + "\n")
		for _, folder := range changes.DeletedFolders {
			builder.WriteString(theme.failure.Render("- ") + folder.Path + "\n")
		}
	}
	_, err := io.WriteString(writer, builder.String())
	return err
}

// RenderPlan writes the operations in the order they would run.
func RenderPlan(writer io.Writer, operations plan.Plan) error {
	theme := newStyles(writer)
	var builder strings.Builder
	builder.WriteString(theme.title.Render("PLAN") + " " + theme.muted.Render(fmt.Sprintf("(%d operations)", operations.Len())) + "\n")
	if operations.IsEmpty() {
		builder.WriteString(theme.muted.Render("Nothing to do.") + "\n")
	}
	for index, create := range operations.Creates {
		builder.WriteString(fmt.Sprintf("%3d. %s %s %s\n", index+1, theme.success.Render("CREATE"), create.Name, theme.muted.Render("in "+create.Parent.String())))
	}
	offset := len(operations.Creates)
	for index, move := range operations.Moves {
		builder.WriteString(fmt.Sprintf("%3d. %s %s %s\n", offset+index+1, theme.warning.Render("MOVE  "), move.FileName, theme.muted.Render(move.OldParentID+" → "+move.NewParent.String())))
	}
	offset += len(operations.Moves)
	for index, deletion := range operations.Deletes {
		builder.WriteString(fmt.Sprintf("%3d. %s %s\n", offset+index+1, theme.failure.Render("DELETE"), deletion.Name))
	}
	for _, skip := range operations.Skipped {
		builder.WriteString(theme.muted.Render(fmt.Sprintf("skipped %s: %s", skip.FileName, skip.Reason)) + "\n")
	}
	_, err := io.WriteString(writer, builder.String())
	return err
}

// RenderResults writes per-type counts and every failure.
func RenderResults(writer io.Writer, results executor.Results) error {
	theme := newStyles(writer)
	var builder strings.Builder
	builder.WriteString(theme.title.Render("RESULTS") + "\n")
	for _, operation := range []executor.OperationType{executor.OperationCreate, executor.OperationMove, executor.OperationDelete} {
		succeeded, failed := results.Count(operation)
		line := fmt.Sprintf("%-7s %s", operation, theme.success.Render(fmt.Sprintf("%d ok", succeeded)))
		if failed > 0 {
			line += " " + theme.failure.Render(fmt.Sprintf("%d failed", failed))
		}
		builder.WriteString(line + "\n")
	}
	for _, failure := range results.Failed() {
		subject := failure.Name
		if subject == "" {
			subject = failure.FileID
		}
		builder.WriteString(theme.failure.Render("✗ ") + fmt.Sprintf("%s %s: %s", failure.Type, subject, failure.Error) + "\n")
	}
	_, err := io.WriteString(writer, builder.String())
	return err
}

type drawFrame struct {
	node   TreeNode
	prefix string
	last   bool
}

func drawTree(roots []TreeNode) string {
	if len(roots) == 0 {
		return "(empty)"
	}
	var lines []string
	stack := make([]drawFrame, 0, len(roots))
	for index := len(roots) - 1; index >= 0; index-- {
		stack = append(stack, drawFrame{node: roots[index], last: index == len(roots)-1})
	}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		branch, indent := branchMiddle, indentMiddle
		if frame.last {
			branch, indent = branchLast, indentLast
		}
		name := frame.node.Name
		if frame.node.Folder {
			name += folderSuffix
		}
		lines = append(lines, frame.prefix+branch+name)
		children := frame.node.Children
		for index := len(children) - 1; index >= 0; index-- {
			stack = append(stack, drawFrame{node: children[index], prefix: frame.prefix + indent, last: index == len(children)-1})
		}
	}
	return strings.Join(lines, "\n")
}
