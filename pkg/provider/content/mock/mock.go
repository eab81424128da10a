// Package mock provides a scripted content provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/stephenhungg/flow/pkg/provider/content"
)

// Provider is a scripted content.Provider. Set Fn for full control, or Lesson
// and Err for fixed responses.
type Provider struct {
	// Fn, when set, handles every call.
	Fn func(ctx context.Context, concept string) (*content.Lesson, error)

	// Lesson is returned when Fn is nil and Err is nil.
	Lesson *content.Lesson

	// Err is returned when Fn is nil.
	Err error

	// Errs, when non-empty, is consumed one error per call before falling
	// back to Lesson/Err. Use it to fail the first call and succeed the retry.
	Errs []error

	mu    sync.Mutex
	calls []string
}

// Compile-time interface assertion.
var _ content.Provider = (*Provider)(nil)

// GenerateLesson implements content.Provider.
func (p *Provider) GenerateLesson(ctx context.Context, concept string) (*content.Lesson, error) {
	p.mu.Lock()
	p.calls = append(p.calls, concept)
	var queued error
	if len(p.Errs) > 0 {
		queued = p.Errs[0]
		p.Errs = p.Errs[1:]
	}
	p.mu.Unlock()

	if p.Fn != nil {
		return p.Fn(ctx, concept)
	}
	if queued != nil {
		return nil, queued
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Lesson != nil {
		return p.Lesson, nil
	}
	return Lesson(concept), nil
}

// Calls returns the concepts requested so far.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Lesson builds a minimal valid lesson for a concept.
func Lesson(concept string) *content.Lesson {
	return &content.Lesson{
		Concept:    concept,
		Objectives: []string{"understand " + concept},
		Facts:      []content.Fact{{Text: "A fact about " + concept, Citation: "test"}},
		Narration:  "A short narration about " + concept + ".",
		Subtitles: []content.SubtitleCue{
			{TimestampSeconds: 0, Text: "A short narration about " + concept + "."},
		},
	}
}
