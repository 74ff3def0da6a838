package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/storage"
	"github.com/temirov/drive-optimizer/internal/storage/memory"
)

func seededProvider() *memory.Provider {
	return memory.New(
		drivefile.Record{ID: "docs", Name: "Docs", MIMEType: drivefile.FolderMIMEType, Children: []drivefile.Record{
			{ID: "a", Name: "a.txt", MIMEType: "text/plain"},
			{ID: "nested", Name: "Nested", MIMEType: drivefile.FolderMIMEType, Children: []drivefile.Record{
				{ID: "b", Name: "b.txt", MIMEType: "text/plain"},
			}},
		}},
		drivefile.Record{ID: "c", Name: "c.pdf", MIMEType: "application/pdf"},
	)
}

func TestListAllFollowsPages(t *testing.T) {
	provider := seededProvider()
	provider.SetPageSize(2)
	records, err := storage.ListAll(context.Background(), provider, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	if provider.CallCount(memory.OperationList) != 3 {
		t.Fatalf("expected 3 list calls, got %d", provider.CallCount(memory.OperationList))
	}
	if parentID, _ := records[3].ParentID(); records[3].ID != "b" || parentID != "nested" {
		t.Fatalf("unexpected flattened record %+v", records[3])
	}
}

func TestCreateAndMove(t *testing.T) {
	provider := seededProvider()
	ctx := context.Background()
	folderID, err := provider.CreateFolder(ctx, "Archive", drivefile.RootID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if drivefile.ParseRef(folderID).IsPending() || folderID == "" {
		t.Fatalf("unexpected folder id %q", folderID)
	}
	moved, err := provider.UpdateParents(ctx, "a", folderID, "docs")
	if err != nil {
		t.Fatalf("update parents: %v", err)
	}
	if len(moved.Parents) != 1 || moved.Parents[0] != folderID {
		t.Fatalf("unexpected parents %v", moved.Parents)
	}
	if _, err := provider.UpdateParents(ctx, "a", "c", folderID); faults.KindOf(err) != faults.KindOperation {
		t.Fatalf("expected non-folder parent rejection, got %v", err)
	}
}

func TestPlaceholdersRejected(t *testing.T) {
	provider := seededProvider()
	ctx := context.Background()
	if _, err := provider.CreateFolder(ctx, "x", "temp_parent"); faults.KindOf(err) != faults.KindInvalidInput {
		t.Fatalf("expected placeholder parent rejected, got %v", err)
	}
	if _, err := provider.UpdateParents(ctx, "a", "temp_parent", "docs"); faults.KindOf(err) != faults.KindInvalidInput {
		t.Fatalf("expected placeholder target rejected, got %v", err)
	}
	if err := provider.DeleteFile(ctx, "temp_x"); faults.KindOf(err) != faults.KindInvalidInput {
		t.Fatalf("expected placeholder delete rejected, got %v", err)
	}
}

func TestDeleteCascadesAndReportsMissing(t *testing.T) {
	provider := seededProvider()
	ctx := context.Background()
	if err := provider.DeleteFile(ctx, "docs"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snapshot := provider.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != "c" {
		t.Fatalf("expected only c to remain, got %+v", snapshot)
	}
	if err := provider.DeleteFile(ctx, "docs"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := provider.GetFile(ctx, "b", nil); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected cascaded delete of b, got %v", err)
	}
}

func TestFailOn(t *testing.T) {
	provider := seededProvider()
	injected := errors.New("boom")
	provider.FailOn(memory.OperationDelete, memory.AnyID, injected)
	if err := provider.DeleteFile(context.Background(), "c"); !errors.Is(err, injected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if len(provider.Snapshot()) != 5 {
		t.Fatalf("failed delete must not change state")
	}
}
