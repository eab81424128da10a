// Package stt defines the streaming speech-to-text provider interface used by
// the speech intent extractor. A provider opens a bidirectional streaming
// session: raw PCM audio goes in, interim and final transcripts come out,
// alongside lifecycle events (open, error, close).
package stt

import "context"

// StreamConfig describes the audio a session will receive.
type StreamConfig struct {
	// SampleRate of the PCM audio in Hz.
	SampleRate int

	// Channels of the PCM audio. The intent pipeline always sends mono.
	Channels int

	// Language is a BCP-47 language code (e.g. "en"). Empty selects the
	// provider default.
	Language string

	// InterimResults requests partial transcripts before an utterance is
	// finalised. The intent extractor uses them for live display only.
	InterimResults bool
}

// Provider opens streaming transcription sessions.
type Provider interface {
	// StartStream opens a live transcription session. The returned handle is
	// owned by the caller and must be closed exactly once.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}

// SessionHandle is one live transcription session.
//
// Transcripts and events are delivered in arrival order on their channels;
// all three channels are closed when the session ends. Implementations must
// make SendAudio and Close safe to call concurrently with channel reads.
type SessionHandle interface {
	// SendAudio queues a PCM chunk for delivery. Returns an error once the
	// session is closed.
	SendAudio(chunk []byte) error

	// Transcripts returns the channel of interim and final transcripts.
	Transcripts() <-chan Transcript

	// Events returns the channel of lifecycle events.
	Events() <-chan Event

	// Connected reports whether the underlying channel is currently open.
	// The capture pipeline checks this per audio frame before forwarding.
	Connected() bool

	// Close terminates the session, flushing pending audio where the
	// protocol allows it. Safe to call multiple times.
	Close() error
}
