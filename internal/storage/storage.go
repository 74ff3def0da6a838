// Package storage defines the provider contract for listing and mutating a
// file hierarchy, plus helpers shared by the concrete providers.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/drive-optimizer/internal/drivefile"
)

// ErrNotFound is returned (possibly wrapped) when an identifier is unknown.
var ErrNotFound = errors.New("file not found")

const repeatedPageTokenMessage = "provider returned repeated page token %q"

// Page is one page of a listing.
type Page struct {
	Files         []drivefile.Record
	NextPageToken string
}

// Provider is the storage collaborator. Placeholder identifiers must never be
// passed to any of these methods.
type Provider interface {
	ListFiles(ctx context.Context, query string, pageToken string) (Page, error)
	GetFile(ctx context.Context, id string, fields []string) (drivefile.Record, error)
	CreateFolder(ctx context.Context, name string, parentID string) (string, error)
	UpdateParents(ctx context.Context, id string, addParent string, removeParent string) (drivefile.Record, error)
	DeleteFile(ctx context.Context, id string) error
}

// ListAll follows page tokens until the listing is exhausted.
func ListAll(ctx context.Context, provider Provider, query string) ([]drivefile.Record, error) {
	var (
		records   []drivefile.Record
		pageToken string
	)
	seenTokens := make(map[string]struct{})
	for {
		page, err := provider.ListFiles(ctx, query, pageToken)
		if err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		records = append(records, page.Files...)
		if page.NextPageToken == "" {
			return records, nil
		}
		if _, repeated := seenTokens[page.NextPageToken]; repeated {
			return nil, fmt.Errorf(repeatedPageTokenMessage, page.NextPageToken)
		}
		seenTokens[page.NextPageToken] = struct{}{}
		pageToken = page.NextPageToken
	}
}
