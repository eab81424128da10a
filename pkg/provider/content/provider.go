// Package content defines the generative content service interface: given a
// concept string, a provider returns structured educational content ready for
// narration and display. Provider responses are loosely structured (the model
// may wrap the payload in prose), so this package also owns the defensive
// boundary parsing that turns raw model output into a validated [Lesson].
package content

import (
	"context"
	"errors"
)

// ErrMalformed is returned when a provider response cannot be parsed into a
// valid [Lesson]. Callers treat it as a content-generation failure.
var ErrMalformed = errors.New("content: malformed provider response")

// Fact is a single key fact with its source citation.
type Fact struct {
	Text     string `json:"text"`
	Citation string `json:"citation,omitempty"`
}

// SubtitleCue is one entry of the narration subtitle timeline.
type SubtitleCue struct {
	// TimestampSeconds is the cue start relative to narration start.
	TimestampSeconds float64 `json:"timestampSeconds"`

	// Text displayed while the cue is active.
	Text string `json:"text"`
}

// Lesson is the structured educational payload for one concept.
type Lesson struct {
	Concept    string        `json:"concept"`
	Objectives []string      `json:"objectives"`
	Facts      []Fact        `json:"facts"`
	Callouts   []string      `json:"callouts,omitempty"`
	Narration  string        `json:"narration"`
	Subtitles  []SubtitleCue `json:"subtitles"`
	Sources    []string      `json:"sources,omitempty"`
}

// Provider generates a [Lesson] for a concept.
type Provider interface {
	// GenerateLesson produces educational content for the concept. The
	// returned lesson has passed [Validate]; a response the provider could
	// not parse yields an error wrapping [ErrMalformed].
	GenerateLesson(ctx context.Context, concept string) (*Lesson, error)
}
