// Package audio provides the PCM frame types and sample conversion helpers
// used by the speech capture pipeline. Frames are the atomic unit of audio
// transport: captured from an input device, normalised to 16-bit mono PCM,
// and forwarded to a streaming transcription session.
package audio

import (
	"context"
	"time"
)

// Frame is a single chunk of captured audio.
type Frame struct {
	// Data is raw PCM. For frames leaving a capture source this may be
	// float32 or int16 samples depending on the device; after Normalise it
	// is always 16-bit little-endian mono.
	Data []byte

	// Float32 holds raw float32 samples when the capture device delivers
	// floating-point audio (e.g. browser/OS mixing graphs). When non-nil it
	// takes precedence over Data.
	Float32 []float32

	// SampleRate in Hz at which the frame was captured.
	SampleRate int

	// Channels is 1 for mono, 2 for interleaved stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Source produces a continuous stream of frames from a capture device.
// Implementations own the device handle; Stop must release it on every path.
type Source interface {
	// Start acquires the capture device and begins emitting frames. The
	// returned channel is closed when the source stops or fails. Start
	// returns an error if the device cannot be acquired (e.g. permission
	// denied); in that case no resources are held.
	Start(ctx context.Context) (<-chan Frame, error)

	// SampleRate reports the device's native sample rate in Hz. Only valid
	// after a successful Start.
	SampleRate() int

	// Stop releases the capture device. Safe to call multiple times and
	// regardless of whether Start succeeded.
	Stop() error
}
