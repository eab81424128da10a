// Command flowd is the Flow scene server: it turns a spoken or typed concept
// into lesson content plus a 3D asset, serving everything over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/stephenhungg/flow/internal/catalog"
	"github.com/stephenhungg/flow/internal/config"
	"github.com/stephenhungg/flow/internal/convert"
	"github.com/stephenhungg/flow/internal/health"
	"github.com/stephenhungg/flow/internal/observe"
	"github.com/stephenhungg/flow/internal/resilience"
	"github.com/stephenhungg/flow/internal/scene"
	"github.com/stephenhungg/flow/internal/scene/genstore"
	"github.com/stephenhungg/flow/internal/server"
	"github.com/stephenhungg/flow/pkg/provider/content"
	contentanyllm "github.com/stephenhungg/flow/pkg/provider/content/anyllm"
	contentopenai "github.com/stephenhungg/flow/pkg/provider/content/openai"
	"github.com/stephenhungg/flow/pkg/provider/image"
	imageopenai "github.com/stephenhungg/flow/pkg/provider/image/openai"
	"github.com/stephenhungg/flow/pkg/provider/mesh"
	"github.com/stephenhungg/flow/pkg/provider/mesh/meshy"
	"github.com/stephenhungg/flow/pkg/provider/stt"
	"github.com/stephenhungg/flow/pkg/provider/stt/deepgram"
)

func main() {
	os.Exit(run())
}

// logLevel is swapped at runtime when the config watcher sees a change.
var logLevel = new(slog.LevelVar)

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "flowd: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "flowd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("flowd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "flow"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Catalog ───────────────────────────────────────────────────────────────
	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		slog.Error("failed to load scene catalog", "path", cfg.Catalog.Path, "err", err)
		return 1
	}
	slog.Info("scene catalog loaded", "path", cfg.Catalog.Path, "entries", len(cat.Entries()))

	// ── Generated-asset registry ──────────────────────────────────────────────
	var (
		store genstore.Store
		pool  *pgxpool.Pool
	)
	if dsn := cfg.Registry.PostgresDSN; dsn != "" {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pg := genstore.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate generated-asset schema", "err", err)
			return 1
		}
		store = pg
		slog.Info("generated-asset registry using postgres")
	} else {
		store = genstore.NewMemStore()
		slog.Info("generated-asset registry in memory only")
	}

	// ── Conversion gateway ────────────────────────────────────────────────────
	var gateway *convert.Gateway
	if providers.Mesh != nil {
		var gwOpts []convert.Option
		if s := cfg.Conversion.PollIntervalSeconds; s > 0 {
			gwOpts = append(gwOpts, convert.WithPollInterval(time.Duration(s)*time.Second))
		}
		if n := cfg.Conversion.MaxPollAttempts; n > 0 {
			gwOpts = append(gwOpts, convert.WithMaxAttempts(n))
		}
		gateway, err = convert.NewGateway(providers.Mesh, gwOpts...)
		if err != nil {
			slog.Error("failed to build conversion gateway", "err", err)
			return 1
		}
	}

	// ── Scene orchestrator ────────────────────────────────────────────────────
	orcOpts := []scene.Option{
		scene.WithGenStore(store),
		scene.WithDemoAsset(cfg.Assets.DemoAssetURL),
	}
	if cfg.Assets.Root != "" {
		verifier, err := scene.NewVerifier(cfg.Assets.Root, cfg.Assets.URLPrefix)
		if err != nil {
			slog.Error("failed to build asset verifier", "err", err)
			return 1
		}
		orcOpts = append(orcOpts, scene.WithVerifier(verifier))
	}
	orc, err := scene.New(cat, providers.Content, providers.Image, gateway, orcOpts...)
	if err != nil {
		slog.Error("failed to build scene orchestrator", "err", err)
		return 1
	}

	// ── Health checks ─────────────────────────────────────────────────────────
	var checkers []health.Checker
	if cfg.Assets.Root != "" {
		checkers = append(checkers, health.AssetDirChecker(cfg.Assets.Root))
	}
	if pool != nil {
		checkers = append(checkers, health.PingChecker("database", pool.Ping))
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srvOpts := []server.Option{
		server.WithHealth(health.New(checkers...)),
	}
	if gateway != nil {
		srvOpts = append(srvOpts, server.WithConverter(gateway))
	}
	if providers.STT != nil {
		srvOpts = append(srvOpts, server.WithCapture(providers.STT))
	}
	if cfg.Assets.Root != "" {
		srvOpts = append(srvOpts, server.WithAssets(cfg.Assets.Root, cfg.Assets.URLPrefix))
	}
	srv, err := server.New(orc, srvOpts...)
	if err != nil {
		slog.Error("failed to build http server", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(orc, config.Diff(old, new))
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)

	// ── Run ───────────────────────────────────────────────────────────────────
	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	var certFile, keyFile string
	if cfg.Server.TLS != nil {
		certFile, keyFile = cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(addr, certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("server ready", "addr", addr)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends lists the any-llm provider names usable as content backends
// alongside the native openai implementation.
var anyllmBackends = []string{
	"anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Content ───────────────────────────────────────────────────────────────
	reg.RegisterContent("openai", func(entry config.ProviderEntry) (content.Provider, error) {
		var opts []contentopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, contentopenai.WithBaseURL(entry.BaseURL))
		}
		return contentopenai.New(entry.APIKey, entry.Model, opts...)
	})
	for _, providerName := range anyllmBackends {
		reg.RegisterContent(providerName, func(entry config.ProviderEntry) (content.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return contentanyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── Image ─────────────────────────────────────────────────────────────────
	reg.RegisterImage("openai", func(entry config.ProviderEntry) (image.Provider, error) {
		var opts []imageopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, imageopenai.WithBaseURL(entry.BaseURL))
		}
		return imageopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────
	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── Mesh ──────────────────────────────────────────────────────────────────
	reg.RegisterMesh("meshy", func(entry config.ProviderEntry) (mesh.Provider, error) {
		var opts []meshy.Option
		if entry.BaseURL != "" {
			opts = append(opts, meshy.WithBaseURL(entry.BaseURL))
		}
		return meshy.New(entry.APIKey, opts...)
	})
}

// providerSet holds the instantiated providers the pipeline runs on.
type providerSet struct {
	Content content.Provider
	Image   image.Provider
	STT     stt.Provider
	Mesh    mesh.Provider
}

// buildProviders instantiates the providers named in cfg. The content
// provider is wrapped in a circuit-breaking fallback group; extra content
// backends listed under options.fallbacks are tried in order when the
// primary fails.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	if name := cfg.Providers.Content.Name; name != "" {
		p, err := reg.CreateContent(cfg.Providers.Content)
		if err != nil {
			return nil, fmt.Errorf("create content provider %q: %w", name, err)
		}
		group := resilience.NewContentFallback(p, name, resilience.FallbackConfig{
			Kind: "content",
		})
		for _, fbName := range optStrings(cfg.Providers.Content.Options, "fallbacks") {
			fbEntry := cfg.Providers.Content
			fbEntry.Name = fbName
			fb, err := reg.CreateContent(fbEntry)
			if err != nil {
				slog.Warn("skipping content fallback", "name", fbName, "err", err)
				continue
			}
			group.AddFallback(fbName, fb)
			slog.Info("content fallback registered", "name", fbName)
		}
		ps.Content = group
		slog.Info("provider created", "kind", "content", "name", name)
	}

	if name := cfg.Providers.Image.Name; name != "" {
		p, err := reg.CreateImage(cfg.Providers.Image)
		if err != nil {
			return nil, fmt.Errorf("create image provider %q: %w", name, err)
		}
		ps.Image = resilience.NewImageFallback(p, name, resilience.FallbackConfig{
			Kind: "image",
		})
		slog.Info("provider created", "kind", "image", "name", name)
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	if name := cfg.Providers.Mesh.Name; name != "" {
		p, err := reg.CreateMesh(cfg.Providers.Mesh)
		if err != nil {
			return nil, fmt.Errorf("create mesh provider %q: %w", name, err)
		}
		ps.Mesh = p
		slog.Info("provider created", "kind", "mesh", "name", name)
	}

	return ps, nil
}

// applyConfigChange applies the hot-reloadable parts of a config diff.
func applyConfigChange(orc *scene.Orchestrator, d config.ConfigDiff) {
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.CatalogPathChanged {
		cat, err := catalog.LoadFile(d.NewCatalogPath)
		if err != nil {
			slog.Warn("catalog reload failed, keeping previous catalog", "path", d.NewCatalogPath, "err", err)
		} else {
			orc.SetCatalog(cat)
			slog.Info("scene catalog reloaded", "path", d.NewCatalogPath, "entries", len(cat.Entries()))
		}
	}
	if d.DemoAssetChanged || d.ConversionChanged {
		// These take effect on restart; flag them so operators know.
		slog.Warn("config change requires restart to take effect",
			"demo_asset", d.DemoAssetChanged, "conversion", d.ConversionChanged)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Flow startup summary         ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Content", cfg.Providers.Content.Name, cfg.Providers.Content.Model)
	printProvider("Image", cfg.Providers.Image.Name, cfg.Providers.Image.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Mesh", cfg.Providers.Mesh.Name, cfg.Providers.Mesh.Model)
	printRow("Catalog", cfg.Catalog.Path)
	printRow("Asset root", orDefault(cfg.Assets.Root, "(disabled)"))
	printRow("Registry", orDefault(truncateDSN(cfg.Registry.PostgresDSN), "(in-memory)"))
	printRow("Listen addr", orDefault(cfg.Server.ListenAddr, ":8080"))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// truncateDSN hides credentials when echoing a DSN at startup.
func truncateDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	return "postgres"
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optStrings extracts a list of strings from a provider Options map. YAML
// sequences decode as []any, so each element is asserted individually.
func optStrings(opts map[string]any, key string) []string {
	if opts == nil {
		return nil
	}
	raw, ok := opts[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
