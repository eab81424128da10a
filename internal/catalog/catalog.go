// Package catalog maps free-text concept queries to pre-registered 3D scene
// assets. The catalog is loaded once at process start and is read-only at
// runtime, so it may be shared freely across concurrent orchestration runs.
package catalog

import (
	"fmt"
	"strings"
)

// Entry is one pre-registered concept-to-asset mapping.
type Entry struct {
	// ID is the snake_case identifier (e.g. "ancient_rome").
	ID string `yaml:"id"`

	// Title is the display name.
	Title string `yaml:"title"`

	// PrimaryAssetRef locates the 3D asset. Refs under the local asset
	// namespace (e.g. "/assets/rome.glb") may act as pipeline shortcuts;
	// externally-hosted refs are presentation fallbacks only.
	PrimaryAssetRef string `yaml:"asset"`

	// SecondaryAssetRef is an optional lower-fidelity or preview variant.
	SecondaryAssetRef string `yaml:"fallback_asset,omitempty"`

	// Tags are searchable labels used by fuzzy lookup.
	Tags []string `yaml:"tags"`
}

// Match is the result of a lookup.
type Match struct {
	Entry Entry

	// Score is the tag-overlap score. Zero for exact-id matches is never
	// reported; exact matches set Exact instead.
	Score int

	// Exact marks a normalized-id match (no scoring performed).
	Exact bool

	// Weak marks the default-entry fallback used when nothing scored above
	// zero. Callers must not treat a weak match as an authoritative hit.
	Weak bool
}

// Catalog is an immutable set of entries. The first-listed entry doubles as
// the designated default for queries nothing matches.
type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// New builds a Catalog. Entry IDs must be unique and non-empty; at least one
// entry is required since the first entry is the lookup default.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog: at least one entry is required")
	}
	byID := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog: entries[%d] has no id", i)
		}
		if prev, ok := byID[e.ID]; ok {
			return nil, fmt.Errorf("catalog: entries[%d] id %q duplicates entries[%d]", i, e.ID, prev)
		}
		if e.PrimaryAssetRef == "" {
			return nil, fmt.Errorf("catalog: entry %q has no asset ref", e.ID)
		}
		byID[e.ID] = i
	}
	c := &Catalog{
		entries: append([]Entry(nil), entries...),
		byID:    byID,
	}
	return c, nil
}

// Entries returns a copy of all entries in catalog order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Default returns the designated default entry (first-listed).
func (c *Catalog) Default() Entry {
	return c.entries[0]
}

// Normalize lowercases, trims, and collapses internal whitespace in a query.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// snakeCase converts a normalized query to snake_case for id comparison.
func snakeCase(normalized string) string {
	return strings.ReplaceAll(normalized, " ", "_")
}

// Lookup resolves a free-text query to the best catalog entry.
//
// Matching order: exact normalized-id match first; then tag-scored fuzzy
// matching (+2 per tag that is a substring of the query or vice versa, +1
// per query word that is a substring of a tag or vice versa, ties keeping
// the first entry in catalog order); finally, when nothing scores above
// zero, the designated default entry with Weak set. The no-floor default is
// kept for compatibility with the original matcher even though a weak
// default can be wildly unrelated to the query, so callers branch on Weak.
func (c *Catalog) Lookup(query string) Match {
	normalized := Normalize(query)

	// Stage 1: exact id match, no scoring.
	if i, ok := c.byID[snakeCase(normalized)]; ok {
		return Match{Entry: c.entries[i], Exact: true}
	}

	// Stage 2: tag-scored fuzzy match.
	words := strings.Fields(normalized)
	bestIdx := -1
	bestScore := 0
	for i, e := range c.entries {
		score := scoreEntry(e, normalized, words)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		return Match{Entry: c.entries[bestIdx], Score: bestScore}
	}

	// Stage 3: default entry, flagged weak.
	return Match{Entry: c.Default(), Weak: true}
}

// scoreEntry computes the tag-overlap score for one entry.
func scoreEntry(e Entry, query string, words []string) int {
	score := 0
	for _, tag := range e.Tags {
		t := strings.ToLower(tag)
		if t == "" {
			continue
		}
		if strings.Contains(query, t) || strings.Contains(t, query) {
			score += 2
		}
		for _, w := range words {
			if strings.Contains(t, w) || strings.Contains(w, t) {
				score++
			}
		}
	}
	return score
}
