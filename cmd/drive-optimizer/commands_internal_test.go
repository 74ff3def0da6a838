package driveoptimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/fsops"
	"github.com/temirov/drive-optimizer/internal/optimize"
)

const (
	testWorkingDirectory = "/work"
	testLocalRoot        = "/data"
	localConfiguration   = `
storage:
  provider: local
  local:
    root: /data
`
)

func newTestApplication(t *testing.T, configuration string, environment map[string]string) (*application, afero.Fs) {
	t.Helper()
	fileSystem := afero.NewMemMapFs()
	if configuration != "" {
		configPath := filepath.Join(testWorkingDirectory, "config.yaml")
		if err := afero.WriteFile(fileSystem, configPath, []byte(configuration), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	app := &application{
		fileSystem:       fileSystem,
		settings:         newSettings(),
		environment:      func(key string) string { return environment[key] },
		workingDirectory: testWorkingDirectory,
		homeDirectory:    "/home/tester",
		logger:           zap.NewNop(),
	}
	return app, fileSystem
}

func executeCommand(t *testing.T, app *application, args ...string) (string, error) {
	t.Helper()
	command := newRootCommand(app)
	var output bytes.Buffer
	command.SetOut(&output)
	command.SetErr(&output)
	command.SetArgs(args)
	err := command.ExecuteContext(context.Background())
	return output.String(), err
}

func seedLocalTree(t *testing.T, fileSystem afero.Fs) {
	t.Helper()
	files := map[string]string{
		"Old/a.pdf": "%PDF-1.4",
		"b.png":     "png",
	}
	for relative, content := range files {
		path := filepath.Join(testLocalRoot, relative)
		if err := fileSystem.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := afero.WriteFile(fileSystem, path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func writeSnapshot(t *testing.T, fileSystem afero.Fs, path string, records []drivefile.Record) {
	t.Helper()
	if err := fsops.NewStore(fileSystem).WriteRecords(path, records); err != nil {
		t.Fatalf("write snapshot %s: %v", path, err)
	}
}

func findPath(t *testing.T, fileSystem afero.Fs, name string) string {
	t.Helper()
	var found string
	walkErr := afero.Walk(fileSystem, testLocalRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == name {
			found = path
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk: %v", walkErr)
	}
	return found
}

func TestInventoryWritesLocalSnapshot(t *testing.T) {
	app, fileSystem := newTestApplication(t, localConfiguration, nil)
	seedLocalTree(t, fileSystem)

	if output, err := executeCommand(t, app, "inventory", "--output", "/out/inventory.json"); err != nil {
		t.Fatalf("inventory: %v\n%s", err, output)
	}
	records, err := fsops.NewStore(fileSystem).ReadRecords("/out/inventory.json")
	if err != nil {
		t.Fatalf("read inventory: %v", err)
	}
	names := make(map[string]drivefile.Record, len(records))
	for _, record := range records {
		names[record.Name] = record
	}
	if len(records) != 3 || !names["Old"].IsFolder() || names["a.pdf"].MIMEType != "application/pdf" {
		t.Fatalf("unexpected inventory %+v", records)
	}
	parentID, _ := names["a.pdf"].ParentID()
	if parentID != names["Old"].ID {
		t.Fatalf("expected a.pdf under Old, got parent %q", parentID)
	}
}

func TestInventoryRequiresDriveToken(t *testing.T) {
	app, _ := newTestApplication(t, "", nil)
	_, err := executeCommand(t, app, "inventory")
	if err == nil || !strings.Contains(err.Error(), "DRIVE_ACCESS_TOKEN") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestOptimizeCommandUsesLocalClassifier(t *testing.T) {
	app, fileSystem := newTestApplication(t, "", nil)
	writeSnapshot(t, fileSystem, "/in/files.json", []drivefile.Record{
		{ID: "a", Name: "a.pdf", MIMEType: "application/pdf", Parents: []string{drivefile.RootID}},
		{ID: "b", Name: "b.pdf", MIMEType: "application/pdf", Parents: []string{drivefile.RootID}},
	})

	output, err := executeCommand(t, app, "optimize", "--input", "/in/files.json", "--policy", "extension")
	if err != nil {
		t.Fatalf("optimize: %v\n%s", err, output)
	}
	var result optimize.Result
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, output)
	}
	if result.Metadata.AIModel != optimize.ModelLocal || result.Metadata.Policy != "extension" {
		t.Fatalf("unexpected metadata %+v", result.Metadata)
	}
	if result.Metadata.OriginalFileCount != 2 || len(result.Files) <= 2 {
		t.Fatalf("expected a grouping folder in the proposal, got %+v", result.Files)
	}
}

func TestOptimizeCommandRequiresInput(t *testing.T) {
	app, _ := newTestApplication(t, "", nil)
	_, err := executeCommand(t, app, "optimize")
	if err == nil || !strings.Contains(err.Error(), "--input is required") {
		t.Fatalf("expected missing input error, got %v", err)
	}
}

func TestPolicyOverrides(t *testing.T) {
	t.Run("Environment", func(testingT *testing.T) {
		testingT.Setenv("DRIVE_OPTIMIZER_CLASSIFIER_POLICY", "extension")
		app, _ := newTestApplication(testingT, "", nil)
		root, err := app.loadRootConfiguration()
		if err != nil {
			testingT.Fatalf("load: %v", err)
		}
		if root.Classifier.Policy != "extension" {
			testingT.Fatalf("expected environment override, got %q", root.Classifier.Policy)
		}
	})
	t.Run("InvalidFlag", func(testingT *testing.T) {
		app, _ := newTestApplication(testingT, "", nil)
		_, err := executeCommand(testingT, app, "optimize", "--policy", "bogus", "--input", "/missing.json")
		if err == nil || !strings.Contains(err.Error(), "classifier.policy") {
			testingT.Fatalf("expected policy validation error, got %v", err)
		}
	})
	t.Run("FileValueKeptWithoutOverride", func(testingT *testing.T) {
		app, _ := newTestApplication(testingT, "classifier:\n  policy: extension\n", nil)
		root, err := app.loadRootConfiguration()
		if err != nil {
			testingT.Fatalf("load: %v", err)
		}
		if root.Classifier.Policy != "extension" {
			testingT.Fatalf("expected file policy, got %q", root.Classifier.Policy)
		}
	})
}

func TestPlanCommand(t *testing.T) {
	original := []drivefile.Record{
		{ID: "old", Name: "Old", MIMEType: drivefile.FolderMIMEType, Parents: []string{drivefile.RootID}},
		{ID: "a", Name: "a.pdf", MIMEType: "application/pdf", Parents: []string{"old"}},
		{ID: "b", Name: "b.pdf", MIMEType: "application/pdf", Parents: []string{drivefile.RootID}},
	}
	proposed := []drivefile.Record{
		{ID: "a", Name: "a.pdf", MIMEType: "application/pdf", Parents: []string{drivefile.RootID}},
		{ID: "b", Name: "b.pdf", MIMEType: "application/pdf", Parents: []string{drivefile.RootID}},
	}

	t.Run("Text", func(testingT *testing.T) {
		app, fileSystem := newTestApplication(testingT, "", nil)
		writeSnapshot(testingT, fileSystem, "/original.json", original)
		writeSnapshot(testingT, fileSystem, "/proposed.json", proposed)
		output, err := executeCommand(testingT, app, "plan", "--original", "/original.json", "--proposed", "/proposed.json")
		if err != nil {
			testingT.Fatalf("plan: %v\n%s", err, output)
		}
		for _, expected := range []string{"Current", "Proposed", "PLAN (2 operations)", "DELETE Old"} {
			if !strings.Contains(output, expected) {
				testingT.Fatalf("expected %q in output:\n%s", expected, output)
			}
		}
	})

	t.Run("JSON", func(testingT *testing.T) {
		app, fileSystem := newTestApplication(testingT, "", nil)
		writeSnapshot(testingT, fileSystem, "/original.json", original)
		writeSnapshot(testingT, fileSystem, "/proposed.json", proposed)
		output, err := executeCommand(testingT, app, "plan", "--original", "/original.json", "--proposed", "/proposed.json", "--json")
		if err != nil {
			testingT.Fatalf("plan: %v\n%s", err, output)
		}
		var decoded struct {
			Comparison struct {
				Changes struct {
					MovedFiles     []json.RawMessage `json:"movedFiles"`
					DeletedFolders []json.RawMessage `json:"deletedFolders"`
				} `json:"changes"`
			} `json:"comparison"`
			Plan struct {
				Moves   []json.RawMessage `json:"moves"`
				Deletes []json.RawMessage `json:"deleteFolders"`
			} `json:"plan"`
		}
		if err := json.Unmarshal([]byte(output), &decoded); err != nil {
			testingT.Fatalf("decode: %v\n%s", err, output)
		}
		if len(decoded.Plan.Moves) != 1 || len(decoded.Plan.Deletes) != 1 || len(decoded.Comparison.Changes.DeletedFolders) != 1 || len(decoded.Comparison.Changes.MovedFiles) != 1 {
			testingT.Fatalf("unexpected plan output:\n%s", output)
		}
	})

	t.Run("MissingProposed", func(testingT *testing.T) {
		app, _ := newTestApplication(testingT, "", nil)
		_, err := executeCommand(testingT, app, "plan", "--original", "/original.json")
		if err == nil || !strings.Contains(err.Error(), "--proposed is required") {
			testingT.Fatalf("expected missing proposed error, got %v", err)
		}
	})
}

func TestApplyCommandDryRunLeavesTreeUntouched(t *testing.T) {
	app, fileSystem := newTestApplication(t, localConfiguration, nil)
	seedLocalTree(t, fileSystem)

	output, err := executeCommand(t, app, "apply", "--dry-run")
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, output)
	}
	if !strings.Contains(output, "(dry-run)") || !strings.Contains(output, "PLAN") {
		t.Fatalf("expected dry-run plan output, got:\n%s", output)
	}
	if path := findPath(t, fileSystem, "a.pdf"); path != filepath.Join(testLocalRoot, "Old", "a.pdf") {
		t.Fatalf("dry run moved a.pdf to %s", path)
	}
}

func TestApplyCommandReorganizesLocalTree(t *testing.T) {
	app, fileSystem := newTestApplication(t, localConfiguration, nil)
	seedLocalTree(t, fileSystem)

	output, err := executeCommand(t, app, "apply", "--dry-run", "no", "--save-proposal", "/out/proposal.json")
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, output)
	}
	path := findPath(t, fileSystem, "a.pdf")
	if filepath.Base(filepath.Dir(path)) != "PDF Archive" {
		t.Fatalf("expected a.pdf in the PDF archive folder, got %s\n%s", path, output)
	}
	if !strings.Contains(output, "applied") {
		t.Fatalf("expected apply summary, got:\n%s", output)
	}
	if !fsops.NewStore(fileSystem).Exists("/out/proposal.json") {
		t.Fatalf("expected the accepted proposal to be saved")
	}
}

func TestApplyCommandAcceptsProposalFromEarlierRun(t *testing.T) {
	app, fileSystem := newTestApplication(t, localConfiguration, nil)
	seedLocalTree(t, fileSystem)
	if output, err := executeCommand(t, app, "inventory", "--output", "/out/inventory.json"); err != nil {
		t.Fatalf("inventory: %v\n%s", err, output)
	}

	optimizer, _ := newTestApplication(t, localConfiguration, nil)
	optimizer.fileSystem = fileSystem
	if output, err := executeCommand(t, optimizer, "optimize", "--input", "/out/inventory.json", "--output", "/out/proposal.json"); err != nil {
		t.Fatalf("optimize: %v\n%s", err, output)
	}

	applier, _ := newTestApplication(t, localConfiguration, nil)
	applier.fileSystem = fileSystem
	output, err := executeCommand(t, applier, "apply", "--proposal", "/out/proposal.json", "--dry-run", "no")
	if err != nil {
		t.Fatalf("apply: %v\n%s", err, output)
	}
	pdfPath := findPath(t, fileSystem, "a.pdf")
	if filepath.Base(filepath.Dir(pdfPath)) != "PDF Archive" {
		t.Fatalf("expected a.pdf in the PDF archive folder, got %q\n%s", pdfPath, output)
	}
	if findPath(t, fileSystem, "b.png") == "" {
		t.Fatalf("b.png was lost\n%s", output)
	}
}

func TestApplyCommandRejectsUnknownArgument(t *testing.T) {
	app, _ := newTestApplication(t, localConfiguration, nil)
	if _, err := executeCommand(t, app, "apply", "--dry-run", "maybe"); err == nil {
		t.Fatalf("expected an argument error")
	}
}
