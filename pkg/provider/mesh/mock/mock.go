// Package mock provides a scripted mesh provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/stephenhungg/flow/pkg/provider/mesh"
)

// Provider is a scripted mesh.Provider. Each step can be overridden with a
// function; unset steps succeed with canned values.
type Provider struct {
	UploadFn  func(ctx context.Context, data []byte, mime string) (string, error)
	CreateFn  func(ctx context.Context, handle, prompt string) (string, error)
	PollFn    func(ctx context.Context, jobID string) (*mesh.JobStatus, error)
	ResolveFn func(ctx context.Context, locator string) (*mesh.AssetInfo, error)

	mu    sync.Mutex
	polls int
}

// Compile-time interface assertion.
var _ mesh.Provider = (*Provider)(nil)

// UploadImage implements mesh.Provider.
func (p *Provider) UploadImage(ctx context.Context, data []byte, mime string) (string, error) {
	if p.UploadFn != nil {
		return p.UploadFn(ctx, data, mime)
	}
	return "mock-asset", nil
}

// CreateJob implements mesh.Provider.
func (p *Provider) CreateJob(ctx context.Context, handle, prompt string) (string, error) {
	if p.CreateFn != nil {
		return p.CreateFn(ctx, handle, prompt)
	}
	return "mock-job", nil
}

// PollJob implements mesh.Provider, counting calls.
func (p *Provider) PollJob(ctx context.Context, jobID string) (*mesh.JobStatus, error) {
	p.mu.Lock()
	p.polls++
	p.mu.Unlock()
	if p.PollFn != nil {
		return p.PollFn(ctx, jobID)
	}
	return &mesh.JobStatus{State: mesh.JobSucceeded, ResultLocator: jobID}, nil
}

// ResolveAsset implements mesh.Provider.
func (p *Provider) ResolveAsset(ctx context.Context, locator string) (*mesh.AssetInfo, error) {
	if p.ResolveFn != nil {
		return p.ResolveFn(ctx, locator)
	}
	return &mesh.AssetInfo{ModelURLs: map[string]string{"glb": "https://cdn.example/" + locator + ".glb"}}, nil
}

// Polls returns how many times PollJob has been called.
func (p *Provider) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}
