// Package mock provides a scripted image provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/stephenhungg/flow/pkg/provider/image"
)

// Provider is a scripted image.Provider.
type Provider struct {
	// Img is returned on success. When nil, a tiny placeholder is returned.
	Img *image.Image

	// Err, when non-nil, fails every call.
	Err error

	mu    sync.Mutex
	calls []string
}

// Compile-time interface assertion.
var _ image.Provider = (*Provider)(nil)

// Generate implements image.Provider.
func (p *Provider) Generate(_ context.Context, concept string) (*image.Image, error) {
	p.mu.Lock()
	p.calls = append(p.calls, concept)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Img != nil {
		return p.Img, nil
	}
	return &image.Image{Data: []byte("png-bytes-" + concept), MIME: "image/png"}, nil
}

// Calls returns the concepts requested so far.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}
