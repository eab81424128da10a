package stt

// Transcript is one recognition result from a streaming session.
type Transcript struct {
	// Text is the recognised text. May be empty for keep-alive results.
	Text string

	// IsFinal marks the end of an utterance. Interim transcripts for the
	// same utterance are superseded by later ones.
	IsFinal bool

	// Confidence is the provider's confidence in [0, 1], when reported.
	Confidence float64
}

// EventKind classifies a session lifecycle event.
type EventKind int

const (
	// EventOpen is emitted once when the session is established.
	EventOpen EventKind = iota

	// EventError is emitted on a channel error. Errors are non-fatal to the
	// session unless followed by EventClose.
	EventError

	// EventClose is emitted when the session ends, cleanly or not.
	EventClose
)

// String returns the human-readable name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is a session lifecycle notification.
type Event struct {
	Kind EventKind

	// Err carries the error detail for EventError and abnormal EventClose.
	Err error
}
