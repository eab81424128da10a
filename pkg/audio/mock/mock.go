// Package mock provides an in-memory [audio.Source] for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/stephenhungg/flow/pkg/audio"
)

// Source is a scripted audio source. Tests push frames via [Source.Emit] and
// observe Stop calls via [Source.Stopped].
type Source struct {
	// Rate is the sample rate reported by SampleRate. Defaults to 48000.
	Rate int

	// StartErr, when non-nil, is returned by Start to simulate a device
	// acquisition failure.
	StartErr error

	mu      sync.Mutex
	frames  chan audio.Frame
	started bool
	stopped bool
}

// Compile-time interface check.
var _ audio.Source = (*Source)(nil)

// Start implements [audio.Source].
func (s *Source) Start(_ context.Context) (<-chan audio.Frame, error) {
	if s.StartErr != nil {
		return nil, s.StartErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, errors.New("mock: source already started")
	}
	s.started = true
	s.frames = make(chan audio.Frame, 64)
	return s.frames, nil
}

// SampleRate implements [audio.Source].
func (s *Source) SampleRate() int {
	if s.Rate == 0 {
		return 48000
	}
	return s.Rate
}

// Stop implements [audio.Source]. It closes the frame channel once.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.frames != nil {
		close(s.frames)
	}
	return nil
}

// Emit delivers a frame to the consumer. It is a no-op after Stop.
func (s *Source) Emit(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.frames == nil {
		return
	}
	s.frames <- f
}

// Stopped reports whether Stop has been called.
func (s *Source) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
