// Package scene turns a confirmed concept into a complete immersive scene:
// lesson content, narration, subtitle timeline and a 3D asset URL. It is the
// coordination layer between the catalog, the content and image providers
// and the conversion gateway.
package scene

import "github.com/stephenhungg/flow/pkg/provider/content"

// Source records how a scene's 3D asset was obtained.
type Source string

const (
	// SourceCache means the asset was already on hand before this run:
	// either a verified local catalog file or a model an earlier run
	// generated and registered, wherever that model is hosted.
	SourceCache Source = "cache"

	// SourceGenerated means a fresh asset was produced by the full
	// image-to-3D pipeline.
	SourceGenerated Source = "generated"

	// SourceFallback means the asset came from the fallback chain (catalog
	// entry or demo asset) after generation was unavailable.
	SourceFallback Source = "fallback"
)

// Result is a fully assembled scene ready for presentation.
type Result struct {
	// Concept is the confirmed concept the scene was built for.
	Concept string `json:"concept"`

	// Content is the generated lesson (objectives, facts, callouts).
	Content *content.Lesson `json:"content"`

	// NarrationScript is the text to speak over the scene.
	NarrationScript string `json:"narration_script"`

	// SubtitleTimeline holds timestamped subtitle cues sorted by time.
	SubtitleTimeline []content.SubtitleCue `json:"subtitle_timeline"`

	// AssetURL locates the 3D model to render.
	AssetURL string `json:"asset_url"`

	// Source records the asset provenance.
	Source Source `json:"source"`
}
