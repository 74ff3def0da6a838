package executor_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/temirov/drive-optimizer/internal/classify"
	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/executor"
	"github.com/temirov/drive-optimizer/internal/plan"
	"github.com/temirov/drive-optimizer/internal/storage"
	"github.com/temirov/drive-optimizer/internal/storage/memory"
)

func seedRecords() []drivefile.Record {
	return []drivefile.Record{
		{ID: "old", Name: "Old", MIMEType: drivefile.FolderMIMEType, Parents: []string{drivefile.RootID}},
		{ID: "doc", Name: "notes", MIMEType: "application/vnd.google-apps.document", Parents: []string{"old"}},
		{ID: "sheet", Name: "budget", MIMEType: "application/vnd.google-apps.spreadsheet", Parents: []string{drivefile.RootID}},
		{ID: "img", Name: "photo.jpg", MIMEType: "image/jpeg", Parents: []string{drivefile.RootID}},
	}
}

func listNormalized(t *testing.T, provider storage.Provider) []drivefile.Normalized {
	t.Helper()
	records, err := storage.ListAll(context.Background(), provider, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return drivefile.Flatten(records)
}

func TestApplyRoundTripMatchesProposal(t *testing.T) {
	provider := memory.New(seedRecords()...)
	original := listNormalized(t, provider)
	options := classify.DefaultOptions()
	options.Now = func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) }
	proposedRecords, err := classify.Propose(original, options)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	proposed := drivefile.Flatten(proposedRecords)

	runner := executor.New(provider, executor.Options{MoveConcurrency: 2, VerifyTargets: true}, nil, nil)
	results, err := runner.Apply(context.Background(), original, proposed)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if results.Err() != nil {
		t.Fatalf("unexpected failures: %v", results.Err())
	}

	realIDs := map[string]string{drivefile.RootID: drivefile.RootID}
	for _, result := range results {
		if result.Type == executor.OperationCreate {
			realIDs[result.TempID] = result.ID
		}
	}
	current := listNormalized(t, provider)
	after := drivefile.NewIndex(current)
	for _, record := range proposed {
		id := record.ID
		if mapped, ok := realIDs[id]; ok {
			id = mapped
		}
		stored, found := after.Lookup(id)
		if !found {
			t.Fatalf("record %s missing after apply", record.ID)
		}
		expectedParent := record.CurrentParent
		if mapped, ok := realIDs[expectedParent]; ok {
			expectedParent = mapped
		}
		if stored.CurrentParent != expectedParent {
			t.Fatalf("record %s: expected parent %s, got %s", record.ID, expectedParent, stored.CurrentParent)
		}
	}
	for _, stored := range current {
		if drivefile.ParseRef(stored.ID).IsPending() {
			t.Fatalf("placeholder id %s reached the provider", stored.ID)
		}
	}
}

func TestFailedParentCreateSkipsChildren(t *testing.T) {
	provider := memory.New()
	provider.FailOn(memory.OperationCreateFolder, "Parent", errors.New("quota"))
	operations := plan.Plan{
		Creates: []plan.CreateFolder{
			{Ref: drivefile.Pending("parent"), Name: "Parent", Parent: drivefile.Committed(drivefile.RootID)},
			{Ref: drivefile.Pending("child"), Name: "Child", Parent: drivefile.Pending("parent")},
			{Ref: drivefile.Pending("sibling"), Name: "Sibling", Parent: drivefile.Committed(drivefile.RootID)},
		},
	}
	results := executor.New(provider, executor.Options{}, nil, nil).Execute(context.Background(), operations)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Success || results[1].Success || !results[2].Success {
		t.Fatalf("unexpected outcomes %+v", results)
	}
	if provider.CallCount(memory.OperationCreateFolder) != 2 {
		t.Fatalf("child create must not reach the provider, got %d calls", provider.CallCount(memory.OperationCreateFolder))
	}
	if len(multierr.Errors(results.Err())) != 2 {
		t.Fatalf("expected two combined errors, got %v", results.Err())
	}
}

func TestExecuteIgnoresCancellationAndDeletesInOrder(t *testing.T) {
	provider := memory.New(
		drivefile.Record{ID: "top", Name: "Top", MIMEType: drivefile.FolderMIMEType},
		drivefile.Record{ID: "mid", Name: "Mid", MIMEType: drivefile.FolderMIMEType, Parents: []string{"top"}},
		drivefile.Record{ID: "file", Name: "f.txt", MIMEType: "text/plain", Parents: []string{"mid"}},
	)
	original := listNormalized(t, provider)
	proposed := drivefile.Flatten([]drivefile.Record{
		{ID: "file", Name: "f.txt", MIMEType: "text/plain", Parents: []string{drivefile.RootID}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := executor.New(provider, executor.Options{}, nil, nil).Apply(ctx, original, proposed)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if results.Err() != nil {
		t.Fatalf("cancelled context must not abort the plan: %v", results.Err())
	}
	var deleted []string
	for _, result := range results {
		if result.Type == executor.OperationDelete {
			deleted = append(deleted, result.ID)
		}
	}
	if len(deleted) != 2 || deleted[0] != "mid" || deleted[1] != "top" {
		t.Fatalf("unexpected delete order %v", deleted)
	}
	snapshot := provider.Snapshot()
	if len(snapshot) != 1 || snapshot[0].ID != "file" {
		t.Fatalf("expected only the moved file to remain, got %+v", snapshot)
	}
}

func TestVerifyTargetsRejectsNonFolder(t *testing.T) {
	provider := memory.New(
		drivefile.Record{ID: "a", Name: "a.txt", MIMEType: "text/plain"},
		drivefile.Record{ID: "b", Name: "b.txt", MIMEType: "text/plain"},
	)
	operations := plan.Plan{Moves: []plan.Move{{FileID: "a", FileName: "a.txt", OldParentID: drivefile.RootID, NewParent: drivefile.Committed("b")}}}
	results := executor.New(provider, executor.Options{VerifyTargets: true}, nil, nil).Execute(context.Background(), operations)
	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected failed move, got %+v", results)
	}
	if provider.CallCount(memory.OperationUpdateParents) != 0 {
		t.Fatalf("move must not be attempted after failed verification")
	}
}

func TestMoveResultsKeepSubmissionOrder(t *testing.T) {
	var seed []drivefile.Record
	var moves []plan.Move
	for _, id := range []string{"f1", "f2", "f3", "f4", "f5", "f6"} {
		seed = append(seed, drivefile.Record{ID: id, Name: id, MIMEType: "text/plain"})
		moves = append(moves, plan.Move{FileID: id, FileName: id, OldParentID: drivefile.RootID, NewParent: drivefile.Pending("target")})
	}
	provider := memory.New(seed...)
	operations := plan.Plan{
		Creates: []plan.CreateFolder{{Ref: drivefile.Pending("target"), Name: "Target", Parent: drivefile.Committed(drivefile.RootID)}},
		Moves:   moves,
	}
	results := executor.New(provider, executor.Options{MoveConcurrency: 3}, nil, nil).Execute(context.Background(), operations)
	for index, move := range moves {
		result := results[index+1]
		if result.FileID != move.FileID || !result.Success || result.NewParentID != results[0].ID {
			t.Fatalf("result %d out of order or failed: %+v", index, result)
		}
	}
}

func TestBroadcasterRecoversObserverPanics(t *testing.T) {
	broadcaster := executor.NewBroadcaster(nil)
	var (
		mutex    sync.Mutex
		received []executor.Event
	)
	broadcaster.Observe(func(executor.Event) { panic("observer failure") })
	broadcaster.Observe(func(event executor.Event) {
		mutex.Lock()
		defer mutex.Unlock()
		received = append(received, event)
	})
	channel := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(channel)

	provider := memory.New(drivefile.Record{ID: "gone", Name: "Gone", MIMEType: drivefile.FolderMIMEType})
	operations := plan.Plan{Deletes: []plan.DeleteFolder{{FolderID: "gone", Name: "Gone"}}}
	results := executor.New(provider, executor.Options{}, nil, broadcaster).Execute(context.Background(), operations)
	if results.Err() != nil {
		t.Fatalf("observer panic must not fail the plan: %v", results.Err())
	}

	mutex.Lock()
	defer mutex.Unlock()
	var deletes int
	for _, event := range received {
		if event.Type == executor.EventDelete && event.Success && event.ID == "gone" {
			deletes++
		}
		if event.Timestamp == 0 {
			t.Fatalf("expected timestamp on %+v", event)
		}
	}
	if deletes != 1 {
		t.Fatalf("expected one delete event, got %+v", received)
	}
	select {
	case event := <-channel:
		if event.Type != executor.EventProgress {
			t.Fatalf("expected progress event first, got %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber event")
	}
}

func TestOperationEventsCarryMessages(t *testing.T) {
	broadcaster := executor.NewBroadcaster(nil)
	var mutex sync.Mutex
	messages := map[string]string{}
	broadcaster.Observe(func(event executor.Event) {
		if event.Type == executor.EventProgress {
			return
		}
		mutex.Lock()
		defer mutex.Unlock()
		messages[event.Type] = event.Message
	})
	provider := memory.New(
		drivefile.Record{ID: "old", Name: "Old", MIMEType: drivefile.FolderMIMEType, Parents: []string{drivefile.RootID}},
		drivefile.Record{ID: "r", Name: "report.txt", MIMEType: "text/plain", Parents: []string{"old"}},
	)
	provider.FailOn(memory.OperationDelete, "old", errors.New("locked"))
	operations := plan.Plan{
		Creates: []plan.CreateFolder{{Ref: drivefile.Pending("temp_docs"), Name: "Docs", Parent: drivefile.Committed(drivefile.RootID)}},
		Moves:   []plan.Move{{FileID: "r", FileName: "report.txt", OldParentID: "old", NewParent: drivefile.Pending("temp_docs")}},
		Deletes: []plan.DeleteFolder{{FolderID: "old", Name: "Old"}},
	}
	executor.New(provider, executor.Options{}, nil, broadcaster).Execute(context.Background(), operations)

	mutex.Lock()
	defer mutex.Unlock()
	expected := map[string]string{
		executor.EventCreate: "created folder Docs",
		executor.EventMove:   "moved report.txt",
		executor.EventDelete: "failed to delete Old",
	}
	for eventType, message := range expected {
		if messages[eventType] != message {
			t.Fatalf("%s: expected message %q, got %q", eventType, message, messages[eventType])
		}
	}
}
