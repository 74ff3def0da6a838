// Package localfs exposes a local directory tree as a storage.Provider so a
// proposal can be applied to files on disk.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/fsops"
	"github.com/temirov/drive-optimizer/internal/storage"
)

const (
	directoryPermissions os.FileMode = 0o755

	rootNotDirectoryFormat = "local storage root %s is not a directory"
	placeholderErrorFormat = "placeholder identifier %s sent to local storage"
	notFolderErrorFormat   = "parent %s is not a folder"
	rootDeletionMessage    = "the storage root cannot be deleted"
	duplicateNameFormat    = "%s (%d)%s"
	collisionNameFormat    = "%s#%d"
)

// identifierSpace seeds the name-based identifiers so the same relative path
// maps to the same ID in every process.
var identifierSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/temirov/drive-optimizer/localfs"))

// Provider maps provider identifiers to paths below Root. An identifier is
// derived from the entry's path relative to Root when first seen, so separate
// providers over the same tree agree on it. A moved entry keeps its
// identifier for the provider's lifetime.
type Provider struct {
	mutex  sync.Mutex
	fs     afero.Fs
	root   string
	paths  map[string]string
	byPath map[string]string
}

func New(fileSystem afero.Fs, root string) (*Provider, error) {
	cleaned := filepath.Clean(root)
	info, statErr := fileSystem.Stat(cleaned)
	if statErr != nil {
		return nil, faults.Wrap(faults.KindConfiguration, statErr, "local storage root")
	}
	if !info.IsDir() {
		return nil, faults.Newf(faults.KindConfiguration, rootNotDirectoryFormat, cleaned)
	}
	return &Provider{
		fs:     fileSystem,
		root:   cleaned,
		paths:  map[string]string{drivefile.RootID: cleaned},
		byPath: map[string]string{cleaned: drivefile.RootID},
	}, nil
}

// ListFiles walks the whole tree and returns it as a single page. Hidden
// entries are skipped.
func (provider *Provider) ListFiles(ctx context.Context, query string, pageToken string) (storage.Page, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	var records []drivefile.Record
	walkErr := afero.Walk(provider.fs, provider.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == provider.root {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		records = append(records, provider.recordFor(provider.identify(path), path, info))
		return nil
	})
	if walkErr != nil {
		return storage.Page{}, walkErr
	}
	return storage.Page{Files: records}, nil
}

func (provider *Provider) GetFile(ctx context.Context, id string, fields []string) (drivefile.Record, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	path, err := provider.resolve(id)
	if err != nil {
		return drivefile.Record{}, err
	}
	info, statErr := provider.fs.Stat(path)
	if statErr != nil {
		return drivefile.Record{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return provider.recordFor(id, path, info), nil
}

func (provider *Provider) CreateFolder(ctx context.Context, name string, parentID string) (string, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	parentPath, err := provider.resolveFolder(parentID)
	if err != nil {
		return "", err
	}
	path := provider.availablePath(parentPath, name)
	if mkdirErr := provider.fs.MkdirAll(path, directoryPermissions); mkdirErr != nil {
		return "", faults.Wrap(faults.KindOperation, mkdirErr, "create folder")
	}
	return provider.identify(path), nil
}

// UpdateParents moves the entry into addParent. removeParent is implied by
// the entry's current location and is not consulted.
func (provider *Provider) UpdateParents(ctx context.Context, id string, addParent string, removeParent string) (drivefile.Record, error) {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	sourcePath, err := provider.resolve(id)
	if err != nil {
		return drivefile.Record{}, err
	}
	if id == drivefile.RootID {
		return drivefile.Record{}, faults.New(faults.KindInvalidInput, "the storage root cannot be moved")
	}
	parentPath, err := provider.resolveFolder(addParent)
	if err != nil {
		return drivefile.Record{}, err
	}
	if parentPath == sourcePath || strings.HasPrefix(parentPath, sourcePath+string(filepath.Separator)) {
		return drivefile.Record{}, faults.Newf(faults.KindOperation, "cannot move %s into itself", id)
	}
	targetPath := sourcePath
	if filepath.Dir(sourcePath) != parentPath {
		targetPath = provider.availablePath(parentPath, filepath.Base(sourcePath))
		if renameErr := provider.fs.Rename(sourcePath, targetPath); renameErr != nil {
			return drivefile.Record{}, faults.Wrap(faults.KindOperation, renameErr, "move entry")
		}
		provider.relocate(sourcePath, targetPath)
	}
	info, statErr := provider.fs.Stat(targetPath)
	if statErr != nil {
		return drivefile.Record{}, faults.Wrap(faults.KindOperation, statErr, "stat moved entry")
	}
	return provider.recordFor(id, targetPath, info), nil
}

func (provider *Provider) DeleteFile(ctx context.Context, id string) error {
	provider.mutex.Lock()
	defer provider.mutex.Unlock()
	path, err := provider.resolve(id)
	if err != nil {
		return err
	}
	if id == drivefile.RootID {
		return faults.New(faults.KindInvalidInput, rootDeletionMessage)
	}
	if removeErr := provider.fs.RemoveAll(path); removeErr != nil {
		return faults.Wrap(faults.KindOperation, removeErr, "delete entry")
	}
	prefix := path + string(filepath.Separator)
	for knownPath, knownID := range provider.byPath {
		if knownPath == path || strings.HasPrefix(knownPath, prefix) {
			delete(provider.byPath, knownPath)
			delete(provider.paths, knownID)
		}
	}
	return nil
}

func (provider *Provider) identify(path string) string {
	if id, known := provider.byPath[path]; known {
		return id
	}
	relative, relErr := filepath.Rel(provider.root, path)
	if relErr != nil {
		relative = path
	}
	name := filepath.ToSlash(relative)
	id := uuid.NewSHA1(identifierSpace, []byte(name)).String()
	for attempt := 2; ; attempt++ {
		if _, taken := provider.paths[id]; !taken {
			break
		}
		id = uuid.NewSHA1(identifierSpace, []byte(fmt.Sprintf(collisionNameFormat, name, attempt))).String()
	}
	provider.byPath[path] = id
	provider.paths[id] = path
	return id
}

func (provider *Provider) resolve(id string) (string, error) {
	if drivefile.ParseRef(id).IsPending() {
		return "", faults.Newf(faults.KindInvalidInput, placeholderErrorFormat, id)
	}
	path, known := provider.paths[id]
	if !known {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return path, nil
}

func (provider *Provider) resolveFolder(id string) (string, error) {
	path, err := provider.resolve(id)
	if err != nil {
		return "", err
	}
	info, statErr := provider.fs.Stat(path)
	if statErr != nil {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if !info.IsDir() {
		return "", faults.Newf(faults.KindOperation, notFolderErrorFormat, id)
	}
	return path, nil
}

// availablePath returns parent/name, or parent/"name (n).ext" when taken.
func (provider *Provider) availablePath(parentPath string, name string) string {
	candidate := filepath.Join(parentPath, name)
	extension := filepath.Ext(name)
	stem := strings.TrimSuffix(name, extension)
	for attempt := 2; ; attempt++ {
		if _, statErr := provider.fs.Stat(candidate); statErr != nil {
			return candidate
		}
		candidate = filepath.Join(parentPath, fmt.Sprintf(duplicateNameFormat, stem, attempt, extension))
	}
}

func (provider *Provider) relocate(sourcePath string, targetPath string) {
	prefix := sourcePath + string(filepath.Separator)
	updates := make(map[string]string)
	for knownPath, knownID := range provider.byPath {
		switch {
		case knownPath == sourcePath:
			updates[knownID] = targetPath
		case strings.HasPrefix(knownPath, prefix):
			updates[knownID] = filepath.Join(targetPath, strings.TrimPrefix(knownPath, prefix))
		}
	}
	for knownID, newPath := range updates {
		delete(provider.byPath, provider.paths[knownID])
		provider.paths[knownID] = newPath
	}
	for knownID, newPath := range updates {
		provider.byPath[newPath] = knownID
	}
}

func (provider *Provider) recordFor(id string, path string, info os.FileInfo) drivefile.Record {
	record := drivefile.Record{
		ID:           id,
		Name:         info.Name(),
		Parents:      []string{provider.identify(filepath.Dir(path))},
		ModifiedTime: info.ModTime().UTC().Format(time.RFC3339),
	}
	if info.IsDir() {
		record.MIMEType = drivefile.FolderMIMEType
		return record
	}
	record.MIMEType = fsops.DetectMIMEType(info.Name())
	record.Size = drivefile.ByteSize(info.Size())
	if captured, ok := fsops.CaptureTime(provider.fs, path); ok {
		record.CreatedTime = captured.Format(time.RFC3339)
	}
	return record
}
