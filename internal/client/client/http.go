package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIVersion = "v59.0"
	DefaultTimeout    = 30 * time.Second
)

// HTTPClient implements Client over the backend's REST API.
type HTTPClient struct {
	auth       Authenticator
	http       *http.Client
	apiVersion string
	timeout    time.Duration
	limiter    *rate.Limiter
	log        logging.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

// WithTimeout bounds every request. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests to rps per second. rps <= 0
// disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *HTTPClient) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHTTPClient builds a client for apiVersion (DefaultAPIVersion when
// empty). auth supplies the token and instance endpoint for every request.
func NewHTTPClient(auth Authenticator, apiVersion string, log logging.Logger, opts ...Option) *HTTPClient {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	c := &HTTPClient{
		auth:       auth,
		http:       &http.Client{},
		apiVersion: apiVersion,
		timeout:    DefaultTimeout,
		log:        log.With("component", "remote"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type createResponse struct {
	ID      string                   `json:"id"`
	Success bool                     `json:"success"`
	Errors  []common.RemoteErrorItem `json:"errors"`
}

// Create posts payload as a new kind object and returns the backend id.
// A 2xx answer with success=false is reported as a RemoteRejection.
func (c *HTTPClient) Create(ctx context.Context, kind string, payload any) (string, error) {
	var out createResponse
	status, err := c.do(ctx, http.MethodPost, "/sobjects/"+url.PathEscape(kind), payload, &out)
	if err != nil {
		return "", err
	}
	if !out.Success || out.ID == "" {
		return "", &common.RemoteRejection{Status: status, Errors: out.Errors}
	}
	return out.ID, nil
}

// Update patches the fields in payload onto the kind object id.
func (c *HTTPClient) Update(ctx context.Context, kind, id string, payload any) error {
	_, err := c.do(ctx, http.MethodPatch, "/sobjects/"+url.PathEscape(kind)+"/"+url.PathEscape(id), payload, nil)
	return err
}

type queryResponse struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	Records        []json.RawMessage `json:"records"`
	NextRecordsURL string            `json:"nextRecordsUrl"`
}

// Query runs statement and returns every row, following nextRecordsUrl
// until the backend reports done.
func (c *HTTPClient) Query(ctx context.Context, statement string) ([]json.RawMessage, error) {
	path := "/query?q=" + url.QueryEscape(statement)

	var result []json.RawMessage
	for {
		var page queryResponse
		if _, err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		result = append(result, page.Records...)

		if page.Done || page.NextRecordsURL == "" {
			return result, nil
		}
		path = page.NextRecordsURL
	}
}

// contentVersion is the versioned content object attachments are uploaded as.
type contentVersion struct {
	Title                  string `json:"Title"`
	PathOnClient           string `json:"PathOnClient"`
	VersionData            string `json:"VersionData"`
	FirstPublishLocationID string `json:"FirstPublishLocationId"`
}

// UploadAttachment stores data as a ContentVersion linked to parentID. A
// file name without extension gets one from contentType.
func (c *HTTPClient) UploadAttachment(ctx context.Context, parentID, fileName string, data []byte, contentType string) (string, error) {
	if parentID == "" {
		return "", &common.ValidationError{Field: "parentId", Reason: "required"}
	}

	fileName = withExtension(fileName, contentType)
	body := contentVersion{
		Title:                  strings.TrimSuffix(fileName, filepath.Ext(fileName)),
		PathOnClient:           fileName,
		VersionData:            base64.StdEncoding.EncodeToString(data),
		FirstPublishLocationID: parentID,
	}
	return c.Create(ctx, ObjectContentVersion, body)
}

// withExtension appends the extension registered for contentType when
// name has none.
func withExtension(name, contentType string) string {
	if name == "" {
		name = "attachment"
	}
	if filepath.Ext(name) != "" || contentType == "" {
		return name
	}
	if m := mimetype.Lookup(contentType); m != nil {
		return name + m.Extension()
	}
	return name
}

type describeResponse struct {
	Name   string `json:"name"`
	Fields []struct {
		Name           string `json:"name"`
		PicklistValues []struct {
			Value  string `json:"value"`
			Label  string `json:"label"`
			Active bool   `json:"active"`
		} `json:"picklistValues"`
	} `json:"fields"`
}

// DescribeChoiceField returns the active values of kind.field.
// common.ErrNotFound means the object has no such field.
func (c *HTTPClient) DescribeChoiceField(ctx context.Context, kind, field string) ([]string, error) {
	var out describeResponse
	if _, err := c.do(ctx, http.MethodGet, "/sobjects/"+url.PathEscape(kind)+"/describe", nil, &out); err != nil {
		return nil, err
	}

	for _, f := range out.Fields {
		if f.Name != field {
			continue
		}
		values := make([]string, 0, len(f.PicklistValues))
		for _, v := range f.PicklistValues {
			if v.Active {
				values = append(values, v.Value)
			}
		}
		return values, nil
	}
	return nil, fmt.Errorf("field %s.%s: %w", kind, field, common.ErrNotFound)
}

// do performs one authenticated request and decodes a JSON response into
// out (if non-nil). It returns the HTTP status of the response.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) (int, error) {
	tok, err := c.auth.Token(ctx)
	if err != nil {
		return 0, err
	}

	op := method + " " + path
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, &common.NetworkError{Op: op, Err: err}
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(tok.InstanceEndpoint, path), body)
	if err != nil {
		return 0, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set(common.AuthorizationHeaderName, tokenType(tok)+" "+tok.Value)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &common.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &common.NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.auth.Invalidate()
		}
		rej := newRejection(resp.StatusCode, raw)
		c.log.Debug(ctx, "request rejected", "op", op, "status", resp.StatusCode)
		return resp.StatusCode, rej
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return resp.StatusCode, nil
}

func (c *HTTPClient) endpoint(instance, path string) string {
	instance = strings.TrimRight(instance, "/")
	// pagination links are already rooted at /services/data/vXX.X
	if strings.HasPrefix(path, "/services/") {
		return instance + path
	}
	return instance + "/services/data/" + c.apiVersion + path
}

func tokenType(tok models.CachedToken) string {
	if tok.TokenType == "" {
		return common.BearerScheme
	}
	return tok.TokenType
}

// newRejection parses the backend error body, which is normally a JSON
// array of {errorCode, message, fields}.
func newRejection(status int, raw []byte) *common.RemoteRejection {
	rej := &common.RemoteRejection{Status: status, Body: strings.TrimSpace(string(raw))}

	var items []common.RemoteErrorItem
	if err := json.Unmarshal(raw, &items); err == nil {
		rej.Errors = items
		return rej
	}

	var single struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && single.Error != "" {
		rej.Errors = []common.RemoteErrorItem{{ErrorCode: single.Error, Message: single.ErrorDescription}}
	}
	return rej
}

// IsRejected reports whether err is a RemoteRejection with the given status.
func IsRejected(err error, status int) bool {
	var rej *common.RemoteRejection
	return errors.As(err, &rej) && rej.Status == status
}
