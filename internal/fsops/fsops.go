// Package fsops reads and writes record snapshots and inspects local files.
package fsops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
)

const (
	snapshotFilePermissions      os.FileMode = 0o644
	snapshotDirectoryPermissions os.FileMode = 0o755

	readSnapshotErrorFormat    = "read snapshot %s: %w"
	decodeSnapshotErrorFormat  = "decode snapshot %s"
	unknownSnapshotErrorFormat = "snapshot %s holds neither a record array nor a files, optimizedFiles or records field"
)

// Store persists record snapshots on an afero filesystem.
type Store struct{ Fs afero.Fs }

func NewStore(fileSystem afero.Fs) Store { return Store{Fs: fileSystem} }

func NewOSStore() Store { return Store{Fs: afero.NewOsFs()} }

type snapshotEnvelope struct {
	Files          json.RawMessage `json:"files"`
	OptimizedFiles json.RawMessage `json:"optimizedFiles"`
	Records        json.RawMessage `json:"records"`
}

// ReadRecords loads a snapshot. It accepts a bare JSON array or an object
// carrying the array under files, optimizedFiles or records.
func (s Store) ReadRecords(path string) ([]drivefile.Record, error) {
	content, readErr := afero.ReadFile(s.Fs, filepath.Clean(path))
	if readErr != nil {
		return nil, fmt.Errorf(readSnapshotErrorFormat, path, readErr)
	}
	return DecodeRecords(path, content)
}

// DecodeRecords parses snapshot content; name is used in error messages only.
func DecodeRecords(name string, content []byte) ([]drivefile.Record, error) {
	trimmed := bytes.TrimSpace(content)
	payload := trimmed
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope snapshotEnvelope
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, faults.Wrap(faults.KindInvalidInput, err, fmt.Sprintf(decodeSnapshotErrorFormat, name))
		}
		switch {
		case len(envelope.Files) > 0:
			payload = envelope.Files
		case len(envelope.OptimizedFiles) > 0:
			payload = envelope.OptimizedFiles
		case len(envelope.Records) > 0:
			payload = envelope.Records
		default:
			return nil, faults.Newf(faults.KindInvalidInput, unknownSnapshotErrorFormat, name)
		}
	}
	var records []drivefile.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, faults.Wrap(faults.KindInvalidInput, err, fmt.Sprintf(decodeSnapshotErrorFormat, name))
	}
	return records, nil
}

// WriteRecords stores records as an indented JSON array.
func (s Store) WriteRecords(path string, records []drivefile.Record) error {
	if records == nil {
		records = []drivefile.Record{}
	}
	return s.WriteJSON(path, records)
}

// WriteJSON stores any value as indented JSON, creating parent directories.
func (s Store) WriteJSON(path string, value any) error {
	encoded, marshalErr := json.MarshalIndent(value, "", "  ")
	if marshalErr != nil {
		return marshalErr
	}
	cleaned := filepath.Clean(path)
	if err := s.Fs.MkdirAll(filepath.Dir(cleaned), snapshotDirectoryPermissions); err != nil {
		return err
	}
	return afero.WriteFile(s.Fs, cleaned, append(encoded, '\n'), snapshotFilePermissions)
}

// Exists reports whether path can be stat'ed.
func (s Store) Exists(path string) bool {
	_, err := s.Fs.Stat(filepath.Clean(path))
	return err == nil
}

// DetectMIMEType guesses a MIME type from the file extension.
func DetectMIMEType(name string) string {
	extension := strings.ToLower(filepath.Ext(name))
	detected := mime.TypeByExtension(extension)
	if detected != "" {
		return detected
	}
	switch extension {
	case ".3mf":
		return "application/zip"
	case ".stl", ".obj", ".mtl":
		return "application/octet-stream"
	case ".csv":
		return "text/csv"
	case ".txt", ".md", ".json":
		return "text/plain; charset=utf-8"
	case ".heic", ".heif":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
