// Package memory implements storage.Provider in process memory. It backs the
// memory provider setting and the executor round-trip tests.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/storage"
)

type Operation string

const (
	OperationList          Operation = "list"
	OperationGet           Operation = "get"
	OperationCreateFolder  Operation = "create_folder"
	OperationUpdateParents Operation = "update_parents"
	OperationDelete        Operation = "delete"

	// AnyID matches every identifier in FailOn.
	AnyID = "*"

	defaultPageSize = 100

	placeholderRejectedFormat = "placeholder identifier %s sent to provider"
	parentNotFolderFormat     = "parent %s is not a folder"
	invalidPageTokenFormat    = "invalid page token %q"
)

// Call is one recorded provider invocation. Key is the file ID, or the folder
// name for CreateFolder.
type Call struct {
	Operation Operation
	Key       string
}

type failureKey struct {
	operation Operation
	id        string
}

// Provider is safe for concurrent use.
type Provider struct {
	mutex    sync.Mutex
	records  map[string]drivefile.Record
	order    []string
	failures map[failureKey]error
	calls    []Call
	pageSize int
}

// New returns a provider seeded with flat records. Children are flattened first.
func New(seed ...drivefile.Record) *Provider {
	provider := &Provider{
		records:  make(map[string]drivefile.Record),
		failures: make(map[failureKey]error),
		pageSize: defaultPageSize,
	}
	provider.Seed(seed...)
	return provider
}

// Seed adds or replaces records. Parents are normalized to the single
// effective parent.
func (provider *Provider) Seed(records ...drivefile.Record) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	for _, normalized := range drivefile.Flatten(records) {
		record := normalized.Record
		record.Parents = []string{normalized.CurrentParent}
		if _, exists := provider.records[record.ID]; !exists {
			provider.order = append(provider.order, record.ID)
		}
		provider.records[record.ID] = record
	}
}

// SetPageSize changes how many records ListFiles returns per page.
func (provider *Provider) SetPageSize(size int) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if size > 0 {
		provider.pageSize = size
	}
}

// FailOn makes every later call of operation on id return err.
func (provider *Provider) FailOn(operation Operation, id string, err error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	provider.failures[failureKey{operation: operation, id: id}] = err
}

// Calls returns the recorded invocations in call order.
func (provider *Provider) Calls() []Call {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	return append([]Call(nil), provider.calls...)
}

// CallCount returns how many times operation was invoked.
func (provider *Provider) CallCount(operation Operation) int {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	count := 0
	for _, call := range provider.calls {
		if call.Operation == operation {
			count++
		}
	}
	return count
}

// Snapshot returns copies of all stored records in insertion order.
func (provider *Provider) Snapshot() []drivefile.Record {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	snapshot := make([]drivefile.Record, 0, len(provider.order))
	for _, id := range provider.order {
		snapshot = append(snapshot, provider.records[id].Clone())
	}
	return snapshot
}

func (provider *Provider) ListFiles(ctx context.Context, query string, pageToken string) (storage.Page, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if err := provider.begin(ctx, OperationList, AnyID); err != nil {
		return storage.Page{}, err
	}
	offset := 0
	if pageToken != "" {
		parsed, err := strconv.Atoi(pageToken)
		if err != nil || parsed < 0 || parsed > len(provider.order) {
			return storage.Page{}, faults.Newf(faults.KindInvalidInput, invalidPageTokenFormat, pageToken)
		}
		offset = parsed
	}
	end := min(offset+provider.pageSize, len(provider.order))
	page := storage.Page{Files: make([]drivefile.Record, 0, end-offset)}
	for _, id := range provider.order[offset:end] {
		page.Files = append(page.Files, provider.records[id].Clone())
	}
	if end < len(provider.order) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (provider *Provider) GetFile(ctx context.Context, id string, fields []string) (drivefile.Record, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if err := provider.begin(ctx, OperationGet, id); err != nil {
		return drivefile.Record{}, err
	}
	record, found := provider.records[id]
	if !found {
		return drivefile.Record{}, notFound(id)
	}
	return record.Clone(), nil
}

func (provider *Provider) CreateFolder(ctx context.Context, name string, parentID string) (string, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if err := provider.begin(ctx, OperationCreateFolder, name); err != nil {
		return "", err
	}
	if err := provider.requireFolder(parentID); err != nil {
		return "", err
	}
	id := uuid.NewString()
	provider.records[id] = drivefile.Record{
		ID:       id,
		Name:     name,
		MIMEType: drivefile.FolderMIMEType,
		Parents:  []string{parentID},
	}
	provider.order = append(provider.order, id)
	return id, nil
}

func (provider *Provider) UpdateParents(ctx context.Context, id string, addParent string, removeParent string) (drivefile.Record, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if err := provider.begin(ctx, OperationUpdateParents, id); err != nil {
		return drivefile.Record{}, err
	}
	if err := rejectPlaceholder(id); err != nil {
		return drivefile.Record{}, err
	}
	record, found := provider.records[id]
	if !found {
		return drivefile.Record{}, notFound(id)
	}
	if err := provider.requireFolder(addParent); err != nil {
		return drivefile.Record{}, err
	}
	parents := []string{addParent}
	for _, parentID := range record.Parents {
		if parentID != removeParent && parentID != addParent {
			parents = append(parents, parentID)
		}
	}
	record.Parents = parents
	provider.records[id] = record
	return record.Clone(), nil
}

// DeleteFile removes the record and everything beneath it.
func (provider *Provider) DeleteFile(ctx context.Context, id string) error {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	if err := provider.begin(ctx, OperationDelete, id); err != nil {
		return err
	}
	if err := rejectPlaceholder(id); err != nil {
		return err
	}
	if _, found := provider.records[id]; !found {
		return notFound(id)
	}
	doomed := map[string]struct{}{id: {}}
	for grew := true; grew; {
		grew = false
		for _, candidateID := range provider.order {
			if _, marked := doomed[candidateID]; marked {
				continue
			}
			if parentID, ok := provider.records[candidateID].ParentID(); ok {
				if _, parentDoomed := doomed[parentID]; parentDoomed {
					doomed[candidateID] = struct{}{}
					grew = true
				}
			}
		}
	}
	kept := provider.order[:0]
	for _, candidateID := range provider.order {
		if _, marked := doomed[candidateID]; marked {
			delete(provider.records, candidateID)
			continue
		}
		kept = append(kept, candidateID)
	}
	provider.order = kept
	return nil
}

func (provider *Provider) begin(ctx context.Context, operation Operation, key string) error {
	provider.calls = append(provider.calls, Call{Operation: operation, Key: key})
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := provider.failures[failureKey{operation: operation, id: key}]; ok {
		return err
	}
	if err, ok := provider.failures[failureKey{operation: operation, id: AnyID}]; ok {
		return err
	}
	return nil
}

func (provider *Provider) requireFolder(parentID string) error {
	if err := rejectPlaceholder(parentID); err != nil {
		return err
	}
	if parentID == drivefile.RootID {
		return nil
	}
	parent, found := provider.records[parentID]
	if !found {
		return notFound(parentID)
	}
	if !parent.IsFolder() {
		return faults.Newf(faults.KindOperation, parentNotFolderFormat, parentID)
	}
	return nil
}

func rejectPlaceholder(id string) error {
	if drivefile.ParseRef(id).IsPending() {
		return faults.Newf(faults.KindInvalidInput, placeholderRejectedFormat, id)
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
}
