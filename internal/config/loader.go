package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"content": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"image":   {"openai"},
	"stt":     {"deepgram"},
	"mesh":    {"meshy"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("content", cfg.Providers.Content.Name)
	validateProviderName("image", cfg.Providers.Image.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("mesh", cfg.Providers.Mesh.Name)

	// Provider availability warnings.
	if cfg.Providers.Content.Name == "" {
		slog.Warn("no content provider configured; scene requests will fail")
	}
	if cfg.Providers.Image.Name == "" || cfg.Providers.Mesh.Name == "" {
		slog.Warn("image or mesh provider missing; fresh asset generation is disabled, only cached and fallback assets will be served")
	}

	// Assets
	if cfg.Assets.URLPrefix != "" && !strings.HasPrefix(cfg.Assets.URLPrefix, "/") {
		errs = append(errs, fmt.Errorf("assets.url_prefix %q must start with /", cfg.Assets.URLPrefix))
	}
	if cfg.Assets.Root == "" {
		slog.Warn("assets.root is empty; catalog cache hits are disabled")
	}

	// Catalog
	if cfg.Catalog.Path == "" {
		errs = append(errs, fmt.Errorf("catalog.path is required"))
	}

	// Registry
	if cfg.Registry.PostgresDSN == "" {
		slog.Warn("registry.postgres_dsn is empty; generated assets will not survive restarts")
	}

	// Conversion
	if cfg.Conversion.PollIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("conversion.poll_interval_seconds %d must not be negative", cfg.Conversion.PollIntervalSeconds))
	}
	if cfg.Conversion.MaxPollAttempts < 0 {
		errs = append(errs, fmt.Errorf("conversion.max_poll_attempts %d must not be negative", cfg.Conversion.MaxPollAttempts))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
