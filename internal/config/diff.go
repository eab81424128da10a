package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CatalogPathChanged is true when the catalog file location moved; the
	// catalog should be reloaded from the new path.
	CatalogPathChanged bool
	NewCatalogPath     string

	// DemoAssetChanged is true when the fallback demo asset URL changed.
	DemoAssetChanged bool
	NewDemoAssetURL  string

	// ConversionChanged is true when the polling knobs changed. New gateways
	// pick the values up; in-flight jobs keep their old budget.
	ConversionChanged bool
	NewConversion     ConversionConfig
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Catalog.Path != new.Catalog.Path {
		d.CatalogPathChanged = true
		d.NewCatalogPath = new.Catalog.Path
	}

	if old.Assets.DemoAssetURL != new.Assets.DemoAssetURL {
		d.DemoAssetChanged = true
		d.NewDemoAssetURL = new.Assets.DemoAssetURL
	}

	if old.Conversion != new.Conversion {
		d.ConversionChanged = true
		d.NewConversion = new.Conversion
	}

	return d
}
