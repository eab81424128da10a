// Package mesh defines the 2D-to-3D conversion provider interface. A provider
// exposes the four steps the conversion gateway drives: register (upload) an
// image, create a generation job, poll the job, and resolve the finished
// asset's download URLs. The gateway owns retry, pacing, and the attempt
// budget; providers only translate single round-trips.
package mesh

import "context"

// JobState is the coarse state reported by a single poll.
type JobState int

const (
	// JobPending means the job is queued or in progress.
	JobPending JobState = iota

	// JobSucceeded means the job finished and a result locator is available.
	JobSucceeded

	// JobFailed means the provider terminated the job with an error.
	JobFailed
)

// String returns the human-readable name of the state.
func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JobStatus is the outcome of one poll round-trip.
type JobStatus struct {
	State JobState

	// ResultLocator identifies the finished asset for ResolveAsset. Set only
	// when State is JobSucceeded.
	ResultLocator string

	// Detail carries the provider's error description when State is JobFailed.
	Detail string

	// Progress is a best-effort completion percentage in [0, 100].
	Progress int
}

// AssetInfo describes a finished 3D asset.
type AssetInfo struct {
	// ModelURLs maps variant name to download URL. Variant names follow the
	// provider's convention (e.g. "glb_refined", "glb", "usdz", "obj").
	ModelURLs map[string]string

	// ThumbnailURL is an optional preview image.
	ThumbnailURL string
}

// Provider is one external 2D-to-3D conversion backend.
type Provider interface {
	// UploadImage registers the image with the provider and returns an
	// opaque asset handle. Implementations perform any required signed-URL
	// handoff before returning, so a returned handle is fully usable.
	UploadImage(ctx context.Context, data []byte, mime string) (handle string, err error)

	// CreateJob starts a generation job for the uploaded asset. prompt is
	// the concept string guiding generation. Returns an opaque job id.
	CreateJob(ctx context.Context, handle string, prompt string) (jobID string, err error)

	// PollJob fetches the job's current status. A non-nil error indicates a
	// transport-level failure; provider-reported job failure comes back as
	// JobFailed with a nil error.
	PollJob(ctx context.Context, jobID string) (*JobStatus, error)

	// ResolveAsset fetches the finished asset's metadata.
	ResolveAsset(ctx context.Context, locator string) (*AssetInfo, error)
}
