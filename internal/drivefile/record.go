// Package drivefile models cloud-storage file records and the flat and tree
// views derived from their parent references.
package drivefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// RootID is the sentinel parent of every top-level record.
	RootID = "root"
	// PlaceholderPrefix marks identifiers of folders that are planned but not yet created.
	PlaceholderPrefix = "temp_"
	// FolderMIMEType is the provider MIME type of folders.
	FolderMIMEType = "application/vnd.google-apps.folder"

	byteSizeDecodeErrorFormat = "decode size %s: %w"
)

type Kind string

const (
	KindFolder       Kind = "folder"
	KindDocument     Kind = "document"
	KindSpreadsheet  Kind = "spreadsheet"
	KindPresentation Kind = "presentation"
	KindPDF          Kind = "pdf"
	KindImage        Kind = "image"
	KindVideo        Kind = "video"
	KindOther        Kind = "other"
)

// KindOf derives the record kind from a MIME type string. Shorthand values
// such as "doc" or "sheet" are accepted alongside full MIME types.
func KindOf(mimeType string) Kind {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case normalized == "":
		return KindOther
	case normalized == FolderMIMEType || normalized == "folder" || strings.HasSuffix(normalized, ".folder"):
		return KindFolder
	case strings.Contains(normalized, "spreadsheet") || strings.Contains(normalized, "sheet") ||
		strings.Contains(normalized, "excel") || normalized == "text/csv":
		return KindSpreadsheet
	case strings.Contains(normalized, "presentation") || strings.Contains(normalized, "slides") ||
		strings.Contains(normalized, "powerpoint"):
		return KindPresentation
	case strings.Contains(normalized, "pdf"):
		return KindPDF
	case strings.HasPrefix(normalized, "image/") || normalized == "image":
		return KindImage
	case strings.HasPrefix(normalized, "video/") || normalized == "video":
		return KindVideo
	case strings.Contains(normalized, "document") || strings.Contains(normalized, "doc") ||
		strings.Contains(normalized, "msword") || strings.HasPrefix(normalized, "text/"):
		return KindDocument
	default:
		return KindOther
	}
}

// ByteSize accepts both the provider's string-encoded sizes and plain numbers.
type ByteSize int64

func (size ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(size), 10))
}

func (size *ByteSize) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*size = 0
		return nil
	}
	if trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return fmt.Errorf(byteSizeDecodeErrorFormat, string(trimmed), err)
		}
		encoded = strings.TrimSpace(encoded)
		if encoded == "" {
			*size = 0
			return nil
		}
		parsed, parseErr := strconv.ParseInt(encoded, 10, 64)
		if parseErr != nil {
			return fmt.Errorf(byteSizeDecodeErrorFormat, encoded, parseErr)
		}
		*size = ByteSize(parsed)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf(byteSizeDecodeErrorFormat, string(trimmed), err)
	}
	parsed, parseErr := number.Int64()
	if parseErr != nil {
		floatValue, floatErr := number.Float64()
		if floatErr != nil {
			return fmt.Errorf(byteSizeDecodeErrorFormat, number.String(), parseErr)
		}
		parsed = int64(floatValue)
	}
	*size = ByteSize(parsed)
	return nil
}

// Record mirrors one provider file resource. Children is only populated for
// tree-shaped input or output and is never authoritative.
type Record struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MIMEType     string   `json:"mimeType"`
	Parents      []string `json:"parents,omitempty"`
	CreatedTime  string   `json:"createdTime,omitempty"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	Size         ByteSize `json:"size,omitempty"`
	WebViewLink  string   `json:"webViewLink,omitempty"`
	Children     []Record `json:"children,omitempty"`
}

func (record Record) Kind() Kind { return KindOf(record.MIMEType) }

func (record Record) IsFolder() bool { return record.Kind() == KindFolder }

func (record Record) Ref() Ref { return ParseRef(record.ID) }

// ParentID returns the authoritative first parent. The boolean is false when
// the record carries no parents at all.
func (record Record) ParentID() (string, bool) {
	if len(record.Parents) == 0 {
		return "", false
	}
	return strings.TrimSpace(record.Parents[0]), true
}

// Clone returns a deep copy, children included.
func (record Record) Clone() Record {
	cloned := record
	if record.Parents != nil {
		cloned.Parents = append([]string(nil), record.Parents...)
	}
	if record.Children != nil {
		cloned.Children = make([]Record, len(record.Children))
		for index, child := range record.Children {
			cloned.Children[index] = child.Clone()
		}
	}
	return cloned
}

// CloneAll deep-copies a collection.
func CloneAll(records []Record) []Record {
	if records == nil {
		return nil
	}
	cloned := make([]Record, len(records))
	for index, record := range records {
		cloned[index] = record.Clone()
	}
	return cloned
}

// Compact keeps only the identity fields sent to external services.
func (record Record) Compact() Record {
	compact := Record{ID: record.ID, Name: record.Name, MIMEType: record.MIMEType}
	if record.Parents != nil {
		compact.Parents = append([]string(nil), record.Parents...)
	}
	return compact
}

// Extension returns the lower-cased suffix after the last dot, or "" when the
// name has none or ends with a dot.
func Extension(name string) string {
	lastDot := strings.LastIndex(name, ".")
	if lastDot < 0 || lastDot == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[lastDot+1:])
}
