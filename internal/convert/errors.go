// Package convert drives the image-to-3D conversion pipeline: normalize an
// input image, hand it to a mesh provider, poll the remote job to completion
// and resolve the finished asset's download URL.
package convert

import "fmt"

// Kind classifies a conversion failure so callers can map it to a
// transport-appropriate response.
type Kind int

const (
	// KindProvider marks failures reported by the mesh provider itself
	// (rejected upload, failed generation job).
	KindProvider Kind = iota

	// KindTransport marks failures reaching the provider (network, non-2xx
	// responses, malformed payloads).
	KindTransport

	// KindTimeout marks jobs that did not finish within the polling budget.
	KindTimeout
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindProvider:
		return "provider"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// JobError is a classified conversion failure. Stage names the pipeline stage
// that failed ("uploading", "generating", "polling", "resolving").
type JobError struct {
	Kind  Kind
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("convert: %s failure while %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("convert: %s failure while %s: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *JobError) Unwrap() error { return e.Err }
