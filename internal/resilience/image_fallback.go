package resilience

import (
	"context"

	"github.com/stephenhungg/flow/pkg/provider/image"
)

// ImageFallback implements [image.Provider] with automatic failover across
// multiple image backends, one circuit breaker per backend.
type ImageFallback struct {
	group *FallbackGroup[image.Provider]
}

// Compile-time interface assertion.
var _ image.Provider = (*ImageFallback)(nil)

// NewImageFallback creates an [ImageFallback] with primary as the preferred
// backend.
func NewImageFallback(primary image.Provider, primaryName string, cfg FallbackConfig) *ImageFallback {
	return &ImageFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional image provider as a fallback.
func (f *ImageFallback) AddFallback(name string, provider image.Provider) {
	f.group.AddFallback(name, provider)
}

// Generate asks the first healthy backend for a concept image.
func (f *ImageFallback) Generate(ctx context.Context, concept string) (*image.Image, error) {
	return ExecuteWithResult(ctx, f.group, func(p image.Provider) (*image.Image, error) {
		return p.Generate(ctx, concept)
	})
}
