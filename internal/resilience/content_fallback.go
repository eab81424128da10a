package resilience

import (
	"context"

	"github.com/stephenhungg/flow/pkg/provider/content"
)

// ContentFallback implements [content.Provider] with automatic failover
// across multiple content backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
type ContentFallback struct {
	group *FallbackGroup[content.Provider]
}

// Compile-time interface assertion.
var _ content.Provider = (*ContentFallback)(nil)

// NewContentFallback creates a [ContentFallback] with primary as the
// preferred backend.
func NewContentFallback(primary content.Provider, primaryName string, cfg FallbackConfig) *ContentFallback {
	return &ContentFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional content provider as a fallback.
func (f *ContentFallback) AddFallback(name string, provider content.Provider) {
	f.group.AddFallback(name, provider)
}

// GenerateLesson asks the first healthy backend for a lesson. If the
// primary fails, subsequent fallbacks are tried in order.
func (f *ContentFallback) GenerateLesson(ctx context.Context, concept string) (*content.Lesson, error) {
	return ExecuteWithResult(ctx, f.group, func(p content.Provider) (*content.Lesson, error) {
		return p.GenerateLesson(ctx, concept)
	})
}
