package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/stephenhungg/flow/internal/catalog"
	"github.com/stephenhungg/flow/internal/convert"
	"github.com/stephenhungg/flow/internal/observe"
	"github.com/stephenhungg/flow/internal/scene/genstore"
	"github.com/stephenhungg/flow/pkg/provider/content"
	"github.com/stephenhungg/flow/pkg/provider/image"
)

// Sentinel errors returned by [Orchestrator.Generate].
var (
	// ErrSuperseded means a newer run for another concept replaced this one.
	ErrSuperseded = errors.New("scene: run superseded by a newer request")

	// ErrContentGeneration means lesson content could not be produced even
	// after a retry.
	ErrContentGeneration = errors.New("scene: content generation failed")

	// ErrNoAsset means no 3D asset could be obtained from any source.
	ErrNoAsset = errors.New("scene: no asset available")
)

// Orchestrator assembles scenes cache-first: a verified catalog asset or a
// previously generated model short-circuits the expensive image-to-3D
// pipeline. Each Generate call supersedes any still-running one, so only the
// latest requested concept makes progress.
type Orchestrator struct {
	catalog  *catalog.Catalog
	content  content.Provider
	image    image.Provider
	gateway  *convert.Gateway
	verifier *Verifier
	store    genstore.Store
	demoURL  string
	metrics  *observe.Metrics
	log      *slog.Logger

	mu     sync.Mutex
	runSeq uint64
	cancel context.CancelFunc
}

// Option configures an [Orchestrator] during construction.
type Option func(*Orchestrator)

// WithVerifier enables local cache verification of catalog asset refs.
func WithVerifier(v *Verifier) Option {
	return func(o *Orchestrator) { o.verifier = v }
}

// WithGenStore records generated assets so repeat concepts become cache
// hits. The default is an in-memory store.
func WithGenStore(s genstore.Store) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.store = s
		}
	}
}

// WithDemoAsset sets the last-resort asset URL used when both the pipeline
// and the catalog come up empty.
func WithDemoAsset(url string) Option {
	return func(o *Orchestrator) { o.demoURL = url }
}

// WithMetrics sets the instruments stage latencies are recorded on.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// New creates an Orchestrator. The catalog and content provider are
// required; image provider and gateway may be nil, in which case fresh
// generation is skipped and only cache and fallback sources are used.
func New(cat *catalog.Catalog, contentP content.Provider, imageP image.Provider, gw *convert.Gateway, opts ...Option) (*Orchestrator, error) {
	if cat == nil {
		return nil, fmt.Errorf("scene: catalog is required")
	}
	if contentP == nil {
		return nil, fmt.Errorf("scene: content provider is required")
	}
	o := &Orchestrator{
		catalog: cat,
		content: contentP,
		image:   imageP,
		gateway: gw,
		store:   genstore.NewMemStore(),
		metrics: observe.DefaultMetrics(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// SetCatalog swaps the scene catalog, typically after a config reload.
// In-flight runs keep the catalog they started with.
func (o *Orchestrator) SetCatalog(cat *catalog.Catalog) {
	if cat == nil {
		return
	}
	o.mu.Lock()
	o.catalog = cat
	o.mu.Unlock()
}

// catalogRef returns the current catalog under the run lock.
func (o *Orchestrator) catalogRef() *catalog.Catalog {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.catalog
}

// Generate builds a complete scene for the concept. If another Generate call
// is in flight its run is cancelled and fails with [ErrSuperseded]; the
// newest request always wins.
func (o *Orchestrator) Generate(ctx context.Context, concept string) (*Result, error) {
	concept = catalog.Normalize(concept)
	if concept == "" {
		return nil, fmt.Errorf("scene: empty concept")
	}

	ctx, done := observe.StartStage(ctx, "scene.generate", o.metrics.OrchestrationDuration)
	res, err := o.run(ctx, concept)
	switch {
	case err == nil:
		done("ok")
	case errors.Is(err, ErrSuperseded):
		done("superseded")
	default:
		done("error")
	}
	return res, err
}

// run is the body of one orchestration attempt; Generate wraps it in the
// stage span and latency recording.
func (o *Orchestrator) run(ctx context.Context, concept string) (*Result, error) {
	runCtx, cancel, seq := o.beginRun(ctx)
	defer o.endRun(cancel, seq)

	o.log.Info("scene run started", "concept", concept)

	// Content generation happens regardless of where the asset comes from.
	lesson, contentErr := o.generateLesson(runCtx, concept)
	if err := o.checkpoint(ctx, runCtx); err != nil {
		return nil, err
	}
	if contentErr != nil {
		o.log.Warn("content generation failed, will retry after asset resolution", "concept", concept, "error", contentErr)
	}

	assetURL, source, assetErr := o.resolveAsset(ctx, runCtx, concept, contentErr == nil)
	if assetErr != nil {
		return nil, assetErr
	}

	// One content retry after the asset is settled. A transient model error
	// should not cost the user the whole scene.
	if contentErr != nil {
		lesson, contentErr = o.generateLesson(runCtx, concept)
		if err := o.checkpoint(ctx, runCtx); err != nil {
			return nil, err
		}
		if contentErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrContentGeneration, contentErr)
		}
	}

	o.log.Info("scene run finished", "concept", concept, "source", source, "asset_url", assetURL)
	return &Result{
		Concept:          concept,
		Content:          lesson,
		NarrationScript:  lesson.Narration,
		SubtitleTimeline: lesson.Subtitles,
		AssetURL:         assetURL,
		Source:           source,
	}, nil
}

// resolveAsset obtains the scene's 3D asset, trying sources in order:
// verified catalog cache, generated-asset registry, fresh generation, then
// the fallback chain (catalog entry, demo asset).
func (o *Orchestrator) resolveAsset(ctx, runCtx context.Context, concept string, tryGenerate bool) (string, Source, error) {
	match := o.catalogRef().Lookup(concept)

	// A confirmed catalog match with a healthy local file is the fast path.
	// External refs are never cache hits even on an exact match.
	if !match.Weak && o.verifier != nil {
		if _, ok := o.verifier.Verify(match.Entry.PrimaryAssetRef); ok {
			o.log.Debug("catalog cache hit", "concept", concept, "entry", match.Entry.ID)
			return match.Entry.PrimaryAssetRef, SourceCache, nil
		}
	}

	// A previous run may already have generated this concept.
	if rec, err := o.store.Get(runCtx, concept); err != nil {
		o.log.Warn("generated-asset lookup failed", "concept", concept, "error", err)
	} else if rec != nil {
		o.log.Debug("generated-asset registry hit", "concept", concept, "job_id", rec.JobID)
		return rec.AssetURL, SourceCache, nil
	}
	if err := o.checkpoint(ctx, runCtx); err != nil {
		return "", "", err
	}

	if tryGenerate {
		url, err := o.generateAsset(runCtx, concept)
		if cerr := o.checkpoint(ctx, runCtx); cerr != nil {
			return "", "", cerr
		}
		if err == nil {
			return url, SourceGenerated, nil
		}
		o.log.Warn("asset generation failed, using fallback chain", "concept", concept, "error", err)
	}

	// Fallback chain: any catalog match (weak included) is better than the
	// demo asset, and the demo asset is better than nothing. A catalog ref
	// only counts when it can actually be served; a missing local file must
	// fall through rather than hand the client a dead URL.
	for _, ref := range []string{match.Entry.PrimaryAssetRef, match.Entry.SecondaryAssetRef} {
		if o.servable(ref) {
			return ref, SourceFallback, nil
		}
	}
	if o.demoURL != "" {
		return o.demoURL, SourceFallback, nil
	}
	return "", "", ErrNoAsset
}

// servable reports whether a catalog asset ref can be handed to a client.
// Remote URLs are taken as-is. Local refs are probed when a verifier is
// configured; without one there is nothing to check against, so they are
// trusted.
func (o *Orchestrator) servable(ref string) bool {
	switch {
	case ref == "":
		return false
	case !strings.HasPrefix(ref, "/"):
		return true
	case o.verifier == nil || !o.verifier.Local(ref):
		return true
	default:
		_, ok := o.verifier.Verify(ref)
		return ok
	}
}

// generateLesson calls the content provider inside its own stage span.
func (o *Orchestrator) generateLesson(runCtx context.Context, concept string) (*content.Lesson, error) {
	cctx, done := observe.StartStage(runCtx, "scene.content", o.metrics.ContentDuration)
	lesson, err := o.content.GenerateLesson(cctx, concept)
	if err != nil {
		done("error")
	} else {
		done("ok")
	}
	return lesson, err
}

// generateAsset runs the image-to-3D pipeline and records the result.
func (o *Orchestrator) generateAsset(runCtx context.Context, concept string) (string, error) {
	if o.image == nil || o.gateway == nil {
		return "", fmt.Errorf("scene: generation pipeline not configured")
	}

	ictx, done := observe.StartStage(runCtx, "scene.image", o.metrics.ImageDuration)
	img, err := o.image.Generate(ictx, concept)
	if err != nil {
		done("error")
		return "", fmt.Errorf("scene: generate concept image: %w", err)
	}
	done("ok")
	res, err := o.gateway.Convert(runCtx, convert.ImageInput{Data: img.Data, MIME: img.MIME}, concept, nil)
	if err != nil {
		return "", err
	}

	rec := &genstore.Record{
		Concept:  concept,
		AssetURL: res.ModelURL,
		Format:   res.Format,
		JobID:    res.JobID,
	}
	if err := o.store.Put(runCtx, rec); err != nil {
		// The asset itself is fine; losing the registry entry only costs a
		// future regeneration.
		o.log.Warn("recording generated asset failed", "concept", concept, "error", err)
	}
	return res.ModelURL, nil
}

// beginRun cancels any in-flight run and installs this run's cancel func.
func (o *Orchestrator) beginRun(ctx context.Context) (context.Context, context.CancelFunc, uint64) {
	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.runSeq++
	o.cancel = cancel
	seq := o.runSeq
	o.mu.Unlock()
	return runCtx, cancel, seq
}

// endRun releases this run's context and clears the slot unless a newer run
// has already replaced it.
func (o *Orchestrator) endRun(cancel context.CancelFunc, seq uint64) {
	cancel()
	o.mu.Lock()
	if o.runSeq == seq {
		o.cancel = nil
	}
	o.mu.Unlock()
}

// checkpoint distinguishes supersession from caller cancellation after each
// pipeline boundary.
func (o *Orchestrator) checkpoint(ctx, runCtx context.Context) error {
	if runCtx.Err() == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("scene: %w", ctx.Err())
	}
	return ErrSuperseded
}
