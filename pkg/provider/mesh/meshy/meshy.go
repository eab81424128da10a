// Package meshy provides a mesh.Provider backed by the Meshy image-to-3D API.
package meshy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stephenhungg/flow/pkg/provider/mesh"
)

const (
	defaultBaseURL = "https://api.meshy.ai"
	defaultTimeout = 60 * time.Second
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements mesh.Provider against the Meshy REST API.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Meshy Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("meshy: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- API message types ----

// uploadResponse is returned when registering an image asset. When UploadURL
// is set, the caller must PUT the bytes there before the handle is usable.
type uploadResponse struct {
	AssetID   string `json:"asset_id"`
	UploadURL string `json:"upload_url,omitempty"`
}

// createTaskRequest starts an image-to-3D task.
type createTaskRequest struct {
	AssetID  string `json:"asset_id"`
	Prompt   string `json:"prompt"`
	Topology string `json:"topology,omitempty"`
}

// createTaskResponse carries the new task id.
type createTaskResponse struct {
	Result string `json:"result"`
}

// taskResponse is the task status document.
type taskResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"` // PENDING | IN_PROGRESS | SUCCEEDED | FAILED
	Progress  int               `json:"progress"`
	ModelURLs map[string]string `json:"model_urls,omitempty"`
	Thumbnail string            `json:"thumbnail_url,omitempty"`
	TaskError struct {
		Message string `json:"message"`
	} `json:"task_error"`
}

// ---- mesh.Provider implementation ----

// UploadImage registers the image and, when the API hands back a signed
// upload URL, PUTs the bytes there before returning the asset handle.
func (p *Provider) UploadImage(ctx context.Context, data []byte, mime string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("meshy: image data must not be empty")
	}

	reqBody, _ := json.Marshal(map[string]string{"content_type": mime})
	var upload uploadResponse
	if err := p.doJSON(ctx, http.MethodPost, "/openapi/v1/image-assets", reqBody, &upload); err != nil {
		return "", fmt.Errorf("meshy: register image: %w", err)
	}
	if upload.AssetID == "" {
		return "", errors.New("meshy: register image: response carries no asset id")
	}

	// Signed-URL handoff: the upload is not complete until the bytes land.
	if upload.UploadURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, upload.UploadURL, bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("meshy: build upload request: %w", err)
		}
		req.Header.Set("Content-Type", mime)
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("meshy: upload image bytes: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("meshy: upload image bytes: unexpected status %d", resp.StatusCode)
		}
	}

	return upload.AssetID, nil
}

// CreateJob starts an image-to-3D task using the concept as the prompt.
func (p *Provider) CreateJob(ctx context.Context, handle string, prompt string) (string, error) {
	if handle == "" {
		return "", errors.New("meshy: asset handle must not be empty")
	}

	reqBody, _ := json.Marshal(createTaskRequest{
		AssetID:  handle,
		Prompt:   prompt,
		Topology: "triangle",
	})
	var created createTaskResponse
	if err := p.doJSON(ctx, http.MethodPost, "/openapi/v1/image-to-3d", reqBody, &created); err != nil {
		return "", fmt.Errorf("meshy: create task: %w", err)
	}
	if created.Result == "" {
		return "", errors.New("meshy: create task: response carries no task id")
	}
	return created.Result, nil
}

// PollJob fetches the task status. Transport and HTTP-level failures return
// a non-nil error; a FAILED task is reported via JobFailed with the
// provider's message in Detail.
func (p *Provider) PollJob(ctx context.Context, jobID string) (*mesh.JobStatus, error) {
	var task taskResponse
	if err := p.doJSON(ctx, http.MethodGet, "/openapi/v1/image-to-3d/"+jobID, nil, &task); err != nil {
		return nil, fmt.Errorf("meshy: poll task: %w", err)
	}

	switch task.Status {
	case "SUCCEEDED":
		return &mesh.JobStatus{State: mesh.JobSucceeded, ResultLocator: task.ID, Progress: 100}, nil
	case "FAILED", "CANCELED":
		detail := task.TaskError.Message
		if detail == "" {
			detail = "task " + strings.ToLower(task.Status)
		}
		return &mesh.JobStatus{State: mesh.JobFailed, Detail: detail}, nil
	default:
		return &mesh.JobStatus{State: mesh.JobPending, Progress: task.Progress}, nil
	}
}

// ResolveAsset fetches the finished task document and returns its model URLs.
func (p *Provider) ResolveAsset(ctx context.Context, locator string) (*mesh.AssetInfo, error) {
	var task taskResponse
	if err := p.doJSON(ctx, http.MethodGet, "/openapi/v1/image-to-3d/"+locator, nil, &task); err != nil {
		return nil, fmt.Errorf("meshy: resolve asset: %w", err)
	}
	return &mesh.AssetInfo{
		ModelURLs:    task.ModelURLs,
		ThumbnailURL: task.Thumbnail,
	}, nil
}

// doJSON performs one authenticated JSON round-trip against the API.
func (p *Provider) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// truncate shortens raw for error messages.
func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "…"
}
