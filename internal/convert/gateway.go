package convert

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stephenhungg/flow/internal/observe"
	"github.com/stephenhungg/flow/pkg/provider/mesh"
)

// Default polling budget: one status check every 5 seconds, up to 120
// attempts (10 minutes wall clock).
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 120
)

// formatPriority orders the model formats a finished job may offer. The
// first format present wins.
var formatPriority = []string{"glb_refined", "glb", "usdz", "obj"}

// Stage values reported through [Gateway.Convert] progress callbacks.
const (
	StageUploading  = "uploading"
	StageGenerating = "generating"
	StagePolling    = "polling"
	StageResolving  = "resolving"
	StageDone       = "done"
	StageFailed     = "failed"
)

// Progress is an optional observer for stage transitions. Attempt is only
// meaningful during StagePolling.
type Progress func(stage string, attempt int)

// Result is a finished conversion.
type Result struct {
	JobID        string
	ModelURL     string
	Format       string
	ThumbnailURL string
	Attempts     int
}

// Gateway runs the upload-submit-poll-resolve pipeline against a
// [mesh.Provider]. A Gateway is safe for concurrent use; each Convert call
// tracks its own job.
type Gateway struct {
	provider     mesh.Provider
	client       *http.Client
	log          *slog.Logger
	metrics      *observe.Metrics
	pollInterval time.Duration
	maxAttempts  int
}

// Option customizes a [Gateway].
type Option func(*Gateway)

// WithPollInterval overrides the delay between status checks.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// WithMaxAttempts overrides the polling attempt budget.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithHTTPClient sets the client used for fetching remote image URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// WithMetrics sets the instruments job latencies and poll outcomes are
// recorded on.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGateway builds a Gateway over the given mesh provider.
func NewGateway(provider mesh.Provider, opts ...Option) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("convert: mesh provider is required")
	}
	g := &Gateway{
		provider:     provider,
		log:          slog.Default(),
		metrics:      observe.DefaultMetrics(),
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Convert runs the full pipeline for one image. The prompt is forwarded to
// the mesh provider as generation guidance. Progress may be nil.
//
// Status checks are serialized: the next poll is not issued until the
// previous one returns, so a slow provider cannot stack requests. Transport
// errors during polling consume an attempt rather than aborting; the job is
// only failed on a provider-reported failure or on budget exhaustion.
func (g *Gateway) Convert(ctx context.Context, in ImageInput, prompt string, progress Progress) (*Result, error) {
	ctx, done := observe.StartStage(ctx, "convert.job", g.metrics.ConversionDuration)
	g.metrics.ActiveJobs.Add(ctx, 1)

	res, err := g.convert(ctx, in, prompt, progress)

	g.metrics.ActiveJobs.Add(ctx, -1)
	if err != nil {
		done("error")
	} else {
		done("ok")
	}
	return res, err
}

// convert is the body of one job; Convert wraps it in the stage span, the
// latency histogram and the in-flight gauge.
func (g *Gateway) convert(ctx context.Context, in ImageInput, prompt string, progress Progress) (*Result, error) {
	report := func(stage string, attempt int) {
		if progress != nil {
			progress(stage, attempt)
		}
	}

	report(StageUploading, 0)
	payload, err := NormalizeInput(ctx, g.client, in)
	if err != nil {
		report(StageFailed, 0)
		return nil, err
	}
	handle, err := g.provider.UploadImage(ctx, payload.Data, payload.MIME)
	if err != nil {
		report(StageFailed, 0)
		return nil, &JobError{Kind: KindTransport, Stage: StageUploading, Err: err}
	}
	g.log.Debug("image uploaded", "handle", handle, "bytes", len(payload.Data))

	report(StageGenerating, 0)
	jobID, err := g.provider.CreateJob(ctx, handle, prompt)
	if err != nil {
		report(StageFailed, 0)
		return nil, &JobError{Kind: KindTransport, Stage: StageGenerating, Err: err}
	}
	g.log.Info("conversion job submitted", "job_id", jobID)

	locator, attempts, err := g.pollUntilDone(ctx, jobID, report)
	if err != nil {
		report(StageFailed, attempts)
		return nil, err
	}

	report(StageResolving, attempts)
	info, err := g.provider.ResolveAsset(ctx, locator)
	if err != nil {
		report(StageFailed, attempts)
		return nil, &JobError{Kind: KindTransport, Stage: StageResolving, Err: err}
	}
	format, url, ok := pickModelURL(info.ModelURLs)
	if !ok {
		report(StageFailed, attempts)
		return nil, &JobError{Kind: KindProvider, Stage: StageResolving, Err: fmt.Errorf("job %s finished with no usable model format", jobID)}
	}

	report(StageDone, attempts)
	g.log.Info("conversion finished", "job_id", jobID, "format", format, "attempts", attempts)
	return &Result{
		JobID:        jobID,
		ModelURL:     url,
		Format:       format,
		ThumbnailURL: info.ThumbnailURL,
		Attempts:     attempts,
	}, nil
}

// pollUntilDone checks job status on a fixed interval until the job leaves
// the pending state or the attempt budget runs out.
func (g *Gateway) pollUntilDone(ctx context.Context, jobID string, report Progress) (string, int, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", attempt - 1, &JobError{Kind: KindTransport, Stage: StagePolling, Err: ctx.Err()}
		case <-ticker.C:
		}

		report(StagePolling, attempt)
		status, err := g.provider.PollJob(ctx, jobID)
		if err != nil {
			// A flaky status check burns an attempt but does not fail the
			// job; the remote side may still be making progress.
			g.metrics.RecordConversionPoll(ctx, "transport_error")
			g.log.Warn("status check failed", "job_id", jobID, "attempt", attempt, "error", err)
			continue
		}
		switch status.State {
		case mesh.JobSucceeded:
			g.metrics.RecordConversionPoll(ctx, "succeeded")
			return status.ResultLocator, attempt, nil
		case mesh.JobFailed:
			g.metrics.RecordConversionPoll(ctx, "failed")
			return "", attempt, &JobError{Kind: KindProvider, Stage: StagePolling, Err: fmt.Errorf("job %s failed: %s", jobID, status.Detail)}
		default:
			g.metrics.RecordConversionPoll(ctx, "pending")
			g.log.Debug("job pending", "job_id", jobID, "attempt", attempt, "progress", status.Progress)
		}
	}
	return "", g.maxAttempts, &JobError{
		Kind:  KindTimeout,
		Stage: StagePolling,
		Err:   fmt.Errorf("job %s did not finish within %d attempts", jobID, g.maxAttempts),
	}
}

// pickModelURL selects the best available model format.
func pickModelURL(urls map[string]string) (format, url string, ok bool) {
	for _, f := range formatPriority {
		if u := urls[f]; u != "" {
			return f, u, true
		}
	}
	return "", "", false
}
