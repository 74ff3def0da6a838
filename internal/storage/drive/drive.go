// Package drive implements storage.Provider against the Drive v3 REST API.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/storage"
)

const (
	DefaultEndpoint = "https://www.googleapis.com/drive/v3"
	DefaultPageSize = 1000

	listFields    = "nextPageToken,files(id,name,mimeType,parents,modifiedTime,createdTime,size,webViewLink)"
	moveFields    = "id,name,mimeType,parents"
	createFields  = "id"
	previewLimit  = 512
	filesResource = "/files"

	httpErrorFormat        = "drive http error %d: %s"
	decodeErrorFormat      = "decode drive response: %w (body=%s)"
	placeholderErrorFormat = "placeholder identifier %s sent to drive"
	missingTokenMessage    = "drive access token is empty"
)

// Client talks to Drive through an authorized *http.Client.
type Client struct {
	Endpoint   string
	PageSize   int
	HTTPClient *http.Client
}

// New builds a client that sends accessToken as a bearer token.
func New(ctx context.Context, endpoint string, accessToken string, pageSize int) (Client, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Client{}, faults.New(faults.KindConfiguration, missingTokenMessage)
	}
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return Client{
		Endpoint:   endpoint,
		PageSize:   pageSize,
		HTTPClient: oauth2.NewClient(ctx, tokenSource),
	}, nil
}

type folderResource struct {
	Name     string   `json:"name"`
	MIMEType string   `json:"mimeType"`
	Parents  []string `json:"parents"`
}

type fileList struct {
	NextPageToken string             `json:"nextPageToken"`
	Files         []drivefile.Record `json:"files"`
}

func (c Client) ListFiles(ctx context.Context, query string, pageToken string) (storage.Page, error) {
	parameters := url.Values{}
	parameters.Set("fields", listFields)
	parameters.Set("pageSize", strconv.Itoa(c.pageSize()))
	if query != "" {
		parameters.Set("q", query)
	}
	if pageToken != "" {
		parameters.Set("pageToken", pageToken)
	}
	var listing fileList
	if err := c.do(ctx, http.MethodGet, filesResource, parameters, nil, &listing); err != nil {
		return storage.Page{}, err
	}
	return storage.Page{Files: listing.Files, NextPageToken: listing.NextPageToken}, nil
}

func (c Client) GetFile(ctx context.Context, id string, fields []string) (drivefile.Record, error) {
	if err := rejectPlaceholder(id); err != nil {
		return drivefile.Record{}, err
	}
	parameters := url.Values{}
	if len(fields) > 0 {
		parameters.Set("fields", strings.Join(fields, ","))
	}
	var record drivefile.Record
	if err := c.do(ctx, http.MethodGet, filesResource+"/"+url.PathEscape(id), parameters, nil, &record); err != nil {
		return drivefile.Record{}, err
	}
	return record, nil
}

func (c Client) CreateFolder(ctx context.Context, name string, parentID string) (string, error) {
	if err := rejectPlaceholder(parentID); err != nil {
		return "", err
	}
	parameters := url.Values{}
	parameters.Set("fields", createFields)
	resource := folderResource{Name: name, MIMEType: drivefile.FolderMIMEType, Parents: []string{parentID}}
	var created drivefile.Record
	if err := c.do(ctx, http.MethodPost, filesResource, parameters, resource, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c Client) UpdateParents(ctx context.Context, id string, addParent string, removeParent string) (drivefile.Record, error) {
	for _, candidate := range []string{id, addParent, removeParent} {
		if err := rejectPlaceholder(candidate); err != nil {
			return drivefile.Record{}, err
		}
	}
	parameters := url.Values{}
	parameters.Set("fields", moveFields)
	parameters.Set("addParents", addParent)
	if removeParent != "" {
		parameters.Set("removeParents", removeParent)
	}
	var updated drivefile.Record
	if err := c.do(ctx, http.MethodPatch, filesResource+"/"+url.PathEscape(id), parameters, struct{}{}, &updated); err != nil {
		return drivefile.Record{}, err
	}
	return updated, nil
}

func (c Client) DeleteFile(ctx context.Context, id string) error {
	if err := rejectPlaceholder(id); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, filesResource+"/"+url.PathEscape(id), nil, nil, nil)
}

func (c Client) do(ctx context.Context, method string, resource string, parameters url.Values, payload any, target any) error {
	requestURL := strings.TrimRight(c.endpoint(), "/") + resource
	if len(parameters) > 0 {
		requestURL += "?" + parameters.Encode()
	}
	var body io.Reader
	if payload != nil {
		requestBytes, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return marshalErr
		}
		body = bytes.NewReader(requestBytes)
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, method, requestURL, body)
	if buildErr != nil {
		return buildErr
	}
	if payload != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, httpErr := c.httpClient().Do(httpRequest)
	if httpErr != nil {
		return faults.Wrap(faults.KindOperation, httpErr, "drive request failed")
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	bodyBytes, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return readErr
	}
	bodyPreview := faults.Truncate(string(bodyBytes), previewLimit)

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		driveErr := &faults.Error{
			Kind:    faults.KindOperation,
			Message: fmt.Sprintf(httpErrorFormat, httpResponse.StatusCode, bodyPreview),
			Status:  httpResponse.StatusCode,
			Preview: bodyPreview,
		}
		if httpResponse.StatusCode == http.StatusNotFound {
			driveErr.Err = storage.ErrNotFound
		}
		return driveErr
	}
	if target == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if decodeErr := json.Unmarshal(bodyBytes, target); decodeErr != nil {
		return faults.Wrap(faults.KindOperation, fmt.Errorf(decodeErrorFormat, decodeErr, bodyPreview), "drive response")
	}
	return nil
}

func (c Client) endpoint() string {
	if strings.TrimSpace(c.Endpoint) == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

func (c Client) pageSize() int {
	if c.PageSize <= 0 {
		return DefaultPageSize
	}
	return c.PageSize
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func rejectPlaceholder(id string) error {
	if drivefile.ParseRef(id).IsPending() {
		return faults.Newf(faults.KindInvalidInput, placeholderErrorFormat, id)
	}
	return nil
}
