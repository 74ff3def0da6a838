package drive_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/storage"
	"github.com/temirov/drive-optimizer/internal/storage/drive"
)

func newClient(t *testing.T, handler http.HandlerFunc) drive.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if got := request.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		handler(writer, request)
	}))
	t.Cleanup(server.Close)
	client, err := drive.New(context.Background(), server.URL, "secret", 2)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestListAllPagesThroughDrive(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/files" || request.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
		query := request.URL.Query()
		if query.Get("pageSize") != "2" || query.Get("q") != "trashed=false" {
			t.Errorf("unexpected query %v", query)
		}
		writer.Header().Set("Content-Type", "application/json")
		if query.Get("pageToken") == "" {
			_, _ = io.WriteString(writer, `{"nextPageToken":"p2","files":[{"id":"a","name":"a","mimeType":"text/plain","parents":["root"],"size":"12"},{"id":"b","name":"b","mimeType":"text/plain"}]}`)
			return
		}
		_, _ = io.WriteString(writer, `{"files":[{"id":"c","name":"c","mimeType":"application/vnd.google-apps.folder"}]}`)
	})
	records, err := storage.ListAll(context.Background(), client, "trashed=false")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 3 || records[0].Size != 12 || !records[2].IsFolder() {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestCreateFolderAndMove(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		switch request.Method {
		case http.MethodPost:
			var resource map[string]any
			if err := json.NewDecoder(request.Body).Decode(&resource); err != nil {
				t.Errorf("decode: %v", err)
			}
			if resource["mimeType"] != drivefile.FolderMIMEType || resource["name"] != "Docs" {
				t.Errorf("unexpected resource %v", resource)
			}
			if _, hasID := resource["id"]; hasID {
				t.Errorf("create body must not carry an id")
			}
			_, _ = io.WriteString(writer, `{"id":"new-folder"}`)
		case http.MethodPatch:
			query := request.URL.Query()
			if request.URL.Path != "/files/file-1" || query.Get("addParents") != "new-folder" || query.Get("removeParents") != "root" {
				t.Errorf("unexpected move %s %v", request.URL.Path, query)
			}
			_, _ = io.WriteString(writer, `{"id":"file-1","name":"f","parents":["new-folder"]}`)
		default:
			t.Errorf("unexpected method %s", request.Method)
		}
	})
	ctx := context.Background()
	folderID, err := client.CreateFolder(ctx, "Docs", drivefile.RootID)
	if err != nil || folderID != "new-folder" {
		t.Fatalf("create: %q %v", folderID, err)
	}
	moved, err := client.UpdateParents(ctx, "file-1", folderID, drivefile.RootID)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if parentID, _ := moved.ParentID(); parentID != "new-folder" {
		t.Fatalf("unexpected parent %s", parentID)
	}
}

func TestHTTPErrorsCarryStatus(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		if strings.HasSuffix(request.URL.Path, "/missing") {
			http.Error(writer, `{"error":{"message":"File not found"}}`, http.StatusNotFound)
			return
		}
		http.Error(writer, "forbidden", http.StatusForbidden)
	})
	ctx := context.Background()
	_, err := client.GetFile(ctx, "missing", []string{"id", "mimeType"})
	if !errors.Is(err, storage.ErrNotFound) || faults.StatusOf(err) != http.StatusNotFound {
		t.Fatalf("expected not found with status, got %v", err)
	}
	err = client.DeleteFile(ctx, "other")
	if faults.KindOf(err) != faults.KindOperation || faults.StatusOf(err) != http.StatusForbidden {
		t.Fatalf("expected forbidden operation error, got %v", err)
	}
}

func TestPlaceholdersNeverSent(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		t.Errorf("no request expected, got %s %s", request.Method, request.URL)
	})
	ctx := context.Background()
	if _, err := client.UpdateParents(ctx, "file", "temp_folder", drivefile.RootID); faults.KindOf(err) != faults.KindInvalidInput {
		t.Fatalf("expected placeholder rejection, got %v", err)
	}
	if _, err := client.CreateFolder(ctx, "x", "temp_parent"); faults.KindOf(err) != faults.KindInvalidInput {
		t.Fatalf("expected placeholder rejection, got %v", err)
	}
}

func TestNewRequiresToken(t *testing.T) {
	if _, err := drive.New(context.Background(), "", " ", 0); faults.KindOf(err) != faults.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
