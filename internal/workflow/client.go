// Package workflow calls the remote AI workflow service and turns its
// free-form output into records.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/temirov/drive-optimizer/internal/drivefile"
	"github.com/temirov/drive-optimizer/internal/faults"
	"github.com/temirov/drive-optimizer/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.holdings.miso.gs/ext/v1"
	DefaultUser    = "drive-optimizer"

	uploadPath       = "/files/upload"
	runPath          = "/workflows/run"
	statusSucceeded  = "succeeded"
	responseBlocking = "blocking"
	bodyPreviewLimit = 512

	uploadFileNamePattern = "drive-files-%d.txt"

	missingAPIKeyMessage      = "workflow api key is not configured"
	gatewayTimeoutMessage     = "workflow gateway timed out or is overloaded; reduce the number of files or retry later"
	httpErrorFormat           = "workflow http error %d: %s"
	uploadErrorFormat         = "workflow upload failed %d: %s"
	decodeErrorFormat         = "decode workflow response (body=%s)"
	missingUploadIDFormat     = "workflow upload returned no file id (body=%s)"
	statusErrorFormat         = "workflow run did not succeed: status=%q error=%s"
	missingOutputsMessage     = "workflow response has no outputs"
	missingResultMessage      = "workflow outputs hold no result"
	unknownWorkflowErrorLabel = "unknown error"
)

var preferredOutputKeys = []string{"result", "output", "answer"}

// Client uploads a compact record list and runs the workflow in blocking mode.
type Client struct {
	BaseURL    string
	APIKey     string
	User       string
	HTTPClient *http.Client
	Now        func() time.Time
}

type uploadResponse struct {
	ID string `json:"id"`
}

type fileInput struct {
	TransferMethod string `json:"transfer_method"`
	UploadFileID   string `json:"upload_file_id"`
	Type           string `json:"type"`
}

type runRequest struct {
	Inputs       map[string]fileInput `json:"inputs"`
	ResponseMode string               `json:"response_mode"`
	Mode         string               `json:"mode"`
	User         string               `json:"user"`
}

type runEnvelope struct {
	Status  string                     `json:"status"`
	Error   json.RawMessage            `json:"error"`
	Outputs map[string]json.RawMessage `json:"outputs"`
}

type runResponse struct {
	runEnvelope
	Data *runEnvelope `json:"data"`
}

// Run returns the raw textual result produced by the workflow.
func (c Client) Run(ctx context.Context, records []drivefile.Record) (string, error) {
	started := time.Now()
	result, err := c.run(ctx, records)
	metrics.RecordWorkflowCall(time.Since(started), err == nil)
	return result, err
}

func (c Client) run(ctx context.Context, records []drivefile.Record) (string, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return "", faults.New(faults.KindConfiguration, missingAPIKeyMessage)
	}
	compact := make([]drivefile.Record, 0, len(records))
	for _, record := range records {
		compacted := record.Compact()
		if compacted.Parents == nil {
			compacted.Parents = []string{}
		}
		compact = append(compact, compacted)
	}
	payload, marshalErr := json.Marshal(compact)
	if marshalErr != nil {
		return "", marshalErr
	}
	uploadID, uploadErr := c.upload(ctx, payload)
	if uploadErr != nil {
		return "", uploadErr
	}

	request := runRequest{
		Inputs: map[string]fileInput{
			"input": {TransferMethod: "local_file", UploadFileID: uploadID, Type: "document"},
		},
		ResponseMode: responseBlocking,
		Mode:         responseBlocking,
		User:         c.user(),
	}
	requestBytes, marshalErr := json.Marshal(request)
	if marshalErr != nil {
		return "", marshalErr
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+runPath, bytes.NewReader(requestBytes))
	if buildErr != nil {
		return "", buildErr
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+c.APIKey)

	statusCode, bodyBytes, doErr := c.do(httpRequest)
	if doErr != nil {
		return "", doErr
	}
	bodyPreview := faults.Truncate(string(bodyBytes), bodyPreviewLimit)
	if statusCode < 200 || statusCode >= 300 {
		message := fmt.Sprintf(httpErrorFormat, statusCode, bodyPreview)
		if statusCode == http.StatusBadGateway {
			message = gatewayTimeoutMessage
		}
		return "", &faults.Error{Kind: faults.KindExternalService, Message: message, Status: statusCode, Preview: bodyPreview}
	}

	var decoded runResponse
	if decodeErr := json.Unmarshal(bodyBytes, &decoded); decodeErr != nil {
		return "", &faults.Error{Kind: faults.KindExternalService, Message: fmt.Sprintf(decodeErrorFormat, bodyPreview), Status: statusCode, Err: decodeErr}
	}
	envelope := decoded.runEnvelope
	if decoded.Data != nil {
		envelope = *decoded.Data
	}
	if envelope.Status != statusSucceeded {
		return "", faults.Newf(faults.KindExternalService, statusErrorFormat, envelope.Status, describeError(envelope.Error))
	}
	if len(envelope.Outputs) == 0 {
		return "", faults.New(faults.KindExternalService, missingOutputsMessage)
	}
	result := selectOutput(envelope.Outputs)
	if strings.TrimSpace(result) == "" {
		return "", faults.New(faults.KindExternalService, missingResultMessage)
	}
	return result, nil
}

func (c Client) upload(ctx context.Context, payload []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, partErr := writer.CreateFormFile("file", fmt.Sprintf(uploadFileNamePattern, c.now().UnixMilli()))
	if partErr != nil {
		return "", partErr
	}
	if _, writeErr := part.Write(payload); writeErr != nil {
		return "", writeErr
	}
	if fieldErr := writer.WriteField("user", c.user()); fieldErr != nil {
		return "", fieldErr
	}
	if closeErr := writer.Close(); closeErr != nil {
		return "", closeErr
	}

	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+uploadPath, &body)
	if buildErr != nil {
		return "", buildErr
	}
	httpRequest.Header.Set("Content-Type", writer.FormDataContentType())
	httpRequest.Header.Set("Authorization", "Bearer "+c.APIKey)

	statusCode, bodyBytes, doErr := c.do(httpRequest)
	if doErr != nil {
		return "", doErr
	}
	bodyPreview := faults.Truncate(string(bodyBytes), bodyPreviewLimit)
	if statusCode < 200 || statusCode >= 300 {
		return "", &faults.Error{Kind: faults.KindExternalService, Message: fmt.Sprintf(uploadErrorFormat, statusCode, bodyPreview), Status: statusCode, Preview: bodyPreview}
	}
	var uploaded uploadResponse
	if decodeErr := json.Unmarshal(bodyBytes, &uploaded); decodeErr != nil {
		return "", &faults.Error{Kind: faults.KindExternalService, Message: fmt.Sprintf(decodeErrorFormat, bodyPreview), Status: statusCode, Err: decodeErr}
	}
	if strings.TrimSpace(uploaded.ID) == "" {
		return "", faults.Newf(faults.KindExternalService, missingUploadIDFormat, bodyPreview)
	}
	return uploaded.ID, nil
}

func (c Client) do(httpRequest *http.Request) (int, []byte, error) {
	httpResponse, httpErr := c.httpClient().Do(httpRequest)
	if httpErr != nil {
		return 0, nil, faults.Wrap(faults.KindExternalService, httpErr, "workflow request failed")
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)
	bodyBytes, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return httpResponse.StatusCode, nil, faults.Wrap(faults.KindExternalService, readErr, "read workflow response")
	}
	return httpResponse.StatusCode, bodyBytes, nil
}

// selectOutput prefers the well-known output keys and otherwise takes the
// first non-empty output in key order. String outputs are unquoted.
func selectOutput(outputs map[string]json.RawMessage) string {
	for _, key := range preferredOutputKeys {
		if text := outputText(outputs[key]); text != "" {
			return text
		}
	}
	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if text := outputText(outputs[key]); text != "" {
			return text
		}
	}
	return ""
}

func outputText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return string(trimmed)
}

func describeError(raw json.RawMessage) string {
	if text := outputText(raw); text != "" {
		return text
	}
	return unknownWorkflowErrorLabel
}

func (c Client) baseURL() string {
	if strings.TrimSpace(c.BaseURL) == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c Client) user() string {
	if strings.TrimSpace(c.User) == "" {
		return DefaultUser
	}
	return c.User
}

func (c Client) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}
