package scene

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stephenhungg/flow/internal/catalog"
	"github.com/stephenhungg/flow/internal/convert"
	"github.com/stephenhungg/flow/internal/observe"
	"github.com/stephenhungg/flow/internal/scene/genstore"
	"github.com/stephenhungg/flow/pkg/provider/content"
	contentmock "github.com/stephenhungg/flow/pkg/provider/content/mock"
	imagemock "github.com/stephenhungg/flow/pkg/provider/image/mock"
	meshmock "github.com/stephenhungg/flow/pkg/provider/mesh/mock"
)

func testCatalog(t *testing.T, entries ...catalog.Entry) *catalog.Catalog {
	t.Helper()
	if len(entries) == 0 {
		entries = []catalog.Entry{
			{ID: "solar_system", PrimaryAssetRef: "/assets/solar_system.glb", Tags: []string{"space"}},
			{ID: "ancient_rome", PrimaryAssetRef: "/assets/ancient_rome.glb", Tags: []string{"rome", "history"}},
		}
	}
	c, err := catalog.New(entries)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func testGateway(t *testing.T, mesh *meshmock.Provider) *convert.Gateway {
	t.Helper()
	g, err := convert.NewGateway(mesh, convert.WithPollInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGenerate_CatalogCacheHit(t *testing.T) {
	root := t.TempDir()
	writeAsset(t, root, "ancient_rome.glb", 4096)
	v, err := NewVerifier(root, "/assets/")
	if err != nil {
		t.Fatal(err)
	}

	contentP := &contentmock.Provider{}
	imageP := &imagemock.Provider{}
	meshP := &meshmock.Provider{}

	o, err := New(testCatalog(t), contentP, imageP, testGateway(t, meshP), WithVerifier(v))
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Generate(context.Background(), "Ancient Rome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceCache {
		t.Errorf("source = %q, want cache", res.Source)
	}
	if res.AssetURL != "/assets/ancient_rome.glb" {
		t.Errorf("asset url = %q", res.AssetURL)
	}
	if res.Content == nil || res.NarrationScript == "" {
		t.Error("cache hit must still carry generated content")
	}
	if len(imageP.Calls()) != 0 || meshP.Polls() != 0 {
		t.Error("cache hit must not touch the generation pipeline")
	}
}

func TestGenerate_ExternalRefIsNotACacheHit(t *testing.T) {
	v, err := NewVerifier(t.TempDir(), "/assets/")
	if err != nil {
		t.Fatal(err)
	}
	cat := testCatalog(t, catalog.Entry{
		ID: "ancient_rome", PrimaryAssetRef: "https://demo.example/rome.glb", Tags: []string{"rome"},
	})

	imageP := &imagemock.Provider{}
	o, err := New(cat, &contentmock.Provider{}, imageP, testGateway(t, &meshmock.Provider{}), WithVerifier(v))
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Generate(context.Background(), "ancient rome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceGenerated {
		t.Errorf("source = %q, want generated for external-ref match", res.Source)
	}
	if len(imageP.Calls()) != 1 {
		t.Errorf("image calls = %d, want 1", len(imageP.Calls()))
	}
}

func TestGenerate_RegistryHitSkipsPipeline(t *testing.T) {
	store := genstore.NewMemStore()
	if err := store.Put(context.Background(), &genstore.Record{
		Concept: "black holes", AssetURL: "https://cdn.example/black_holes.glb", Format: "glb",
	}); err != nil {
		t.Fatal(err)
	}

	imageP := &imagemock.Provider{}
	o, err := New(testCatalog(t), &contentmock.Provider{}, imageP, testGateway(t, &meshmock.Provider{}), WithGenStore(store))
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Generate(context.Background(), "Black Holes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceCache || res.AssetURL != "https://cdn.example/black_holes.glb" {
		t.Errorf("result = %+v, want registry hit", res)
	}
	if len(imageP.Calls()) != 0 {
		t.Error("registry hit must not regenerate")
	}
}

func TestGenerate_RecordsGeneratedAsset(t *testing.T) {
	store := genstore.NewMemStore()
	o, err := New(testCatalog(t), &contentmock.Provider{}, &imagemock.Provider{}, testGateway(t, &meshmock.Provider{}), WithGenStore(store))
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Generate(context.Background(), "black holes")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceGenerated {
		t.Fatalf("source = %q", res.Source)
	}

	rec, err := store.Get(context.Background(), "black holes")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.AssetURL != res.AssetURL {
		t.Errorf("registry record = %+v, want generated asset recorded", rec)
	}
}

func TestGenerate_ContentFailureFallsBackThenRetries(t *testing.T) {
	contentP := &contentmock.Provider{Errs: []error{errors.New("model overloaded")}}
	imageP := &imagemock.Provider{}

	o, err := New(testCatalog(t), contentP, imageP, testGateway(t, &meshmock.Provider{}))
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Generate(context.Background(), "black holes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// First content attempt failed, so generation is skipped and the asset
	// comes from the fallback chain; the retry supplies the content.
	if res.Source != SourceFallback {
		t.Errorf("source = %q, want fallback", res.Source)
	}
	if len(imageP.Calls()) != 0 {
		t.Error("generation must be skipped when content failed")
	}
	if got := len(contentP.Calls()); got != 2 {
		t.Errorf("content calls = %d, want initial attempt plus one retry", got)
	}
	if res.Content == nil {
		t.Error("retry content missing from result")
	}
}

func TestGenerate_GenerationFailureUsesFallbackAsset(t *testing.T) {
	imageP := &imagemock.Provider{Err: errors.New("image api down")}
	o, err := New(testCatalog(t), &contentmock.Provider{}, imageP, testGateway(t, &meshmock.Provider{}))
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Generate(context.Background(), "black holes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceFallback {
		t.Errorf("source = %q, want fallback", res.Source)
	}
	if res.AssetURL == "" {
		t.Error("fallback must still supply an asset")
	}
}

func TestGenerate_ContentDoubleFailure(t *testing.T) {
	contentP := &contentmock.Provider{Err: errors.New("model down")}
	o, err := New(testCatalog(t), contentP, &imagemock.Provider{}, testGateway(t, &meshmock.Provider{}))
	if err != nil {
		t.Fatal(err)
	}

	_, err = o.Generate(context.Background(), "black holes")
	if !errors.Is(err, ErrContentGeneration) {
		t.Fatalf("error = %v, want ErrContentGeneration", err)
	}
}

func TestGenerate_NewerRunSupersedes(t *testing.T) {
	started := make(chan struct{})
	contentP := &contentmock.Provider{
		Fn: func(ctx context.Context, concept string) (*content.Lesson, error) {
			if concept == "slow concept" {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return contentmock.Lesson(concept), nil
		},
	}
	o, err := New(testCatalog(t), contentP, &imagemock.Provider{}, testGateway(t, &meshmock.Provider{}))
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Generate(context.Background(), "slow concept")
		errCh <- err
	}()
	<-started

	res, err := o.Generate(context.Background(), "fast concept")
	if err != nil {
		t.Fatalf("newer run failed: %v", err)
	}
	if res.Concept != "fast concept" {
		t.Errorf("concept = %q", res.Concept)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSuperseded) {
			t.Errorf("older run error = %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("older run never returned")
	}
}

func TestGenerate_FallbackSkipsMissingLocalAsset(t *testing.T) {
	// The catalog names a local file that is not on disk; handing that URL
	// out would 404, so the demo asset must win.
	v, err := NewVerifier(t.TempDir(), "/assets/")
	if err != nil {
		t.Fatal(err)
	}
	cat := testCatalog(t, catalog.Entry{
		ID: "solar_system", PrimaryAssetRef: "/assets/solar_system.glb", Tags: []string{"space"},
	})
	imageP := &imagemock.Provider{Err: errors.New("image api down")}
	o, err := New(cat, &contentmock.Provider{}, imageP, testGateway(t, &meshmock.Provider{}),
		WithVerifier(v),
		WithDemoAsset("https://cdn.example.com/flow/demo_scene.glb"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Generate(context.Background(), "solar system")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != SourceFallback {
		t.Errorf("source = %q, want fallback", res.Source)
	}
	if res.AssetURL != "https://cdn.example.com/flow/demo_scene.glb" {
		t.Errorf("asset url = %q, want demo asset", res.AssetURL)
	}
}

func TestGenerate_FallbackUsesRemoteSecondaryRef(t *testing.T) {
	v, err := NewVerifier(t.TempDir(), "/assets/")
	if err != nil {
		t.Fatal(err)
	}
	cat := testCatalog(t, catalog.Entry{
		ID:                "ancient_rome",
		PrimaryAssetRef:   "/assets/ancient_rome.glb",
		SecondaryAssetRef: "https://cdn.example.com/flow/ancient_rome_preview.glb",
		Tags:              []string{"rome"},
	})
	imageP := &imagemock.Provider{Err: errors.New("image api down")}
	o, err := New(cat, &contentmock.Provider{}, imageP, testGateway(t, &meshmock.Provider{}),
		WithVerifier(v),
		WithDemoAsset("https://cdn.example.com/flow/demo_scene.glb"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := o.Generate(context.Background(), "ancient rome")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The broken local primary is skipped but the hosted preview still beats
	// the generic demo asset.
	if res.AssetURL != "https://cdn.example.com/flow/ancient_rome_preview.glb" {
		t.Errorf("asset url = %q, want secondary ref", res.AssetURL)
	}
	if res.Source != SourceFallback {
		t.Errorf("source = %q, want fallback", res.Source)
	}
}

func TestGenerate_NoAssetAnywhere(t *testing.T) {
	v, err := NewVerifier(t.TempDir(), "/assets/")
	if err != nil {
		t.Fatal(err)
	}
	cat := testCatalog(t, catalog.Entry{
		ID: "solar_system", PrimaryAssetRef: "/assets/solar_system.glb", Tags: []string{"space"},
	})
	imageP := &imagemock.Provider{Err: errors.New("image api down")}
	o, err := New(cat, &contentmock.Provider{}, imageP, testGateway(t, &meshmock.Provider{}), WithVerifier(v))
	if err != nil {
		t.Fatal(err)
	}

	_, err = o.Generate(context.Background(), "solar system")
	if !errors.Is(err, ErrNoAsset) {
		t.Fatalf("error = %v, want ErrNoAsset", err)
	}
}

func histogramCount(t *testing.T, reader *sdkmetric.ManualReader, name string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total uint64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", name)
			}
			for _, dp := range hist.DataPoints {
				total += dp.Count
			}
		}
	}
	return total
}

func TestGenerate_RecordsStageLatencies(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	o, err := New(testCatalog(t), &contentmock.Provider{}, &imagemock.Provider{},
		testGateway(t, &meshmock.Provider{}), WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Generate(context.Background(), "black holes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := histogramCount(t, reader, "flow.orchestration.duration"); got != 1 {
		t.Errorf("orchestration samples = %d, want 1", got)
	}
	if got := histogramCount(t, reader, "flow.content.duration"); got != 1 {
		t.Errorf("content samples = %d, want 1", got)
	}
	if got := histogramCount(t, reader, "flow.image.duration"); got != 1 {
		t.Errorf("image samples = %d, want 1", got)
	}
}

func TestGenerate_EmptyConcept(t *testing.T) {
	o, err := New(testCatalog(t), &contentmock.Provider{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := o.Generate(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty concept")
	}
}
