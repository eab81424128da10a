package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of a Flow scene catalog YAML file.
//
// Example:
//
//	catalog:
//	  name: "core scenes"
//	entries:
//	  - id: ancient_rome
//	    title: "Ancient Rome"
//	    asset: /assets/ancient_rome.glb
//	    tags: [rome, roman, colosseum, history]
type File struct {
	Catalog Meta    `yaml:"catalog"`
	Entries []Entry `yaml:"entries"`
}

// Meta holds top-level metadata for a catalog file.
type Meta struct {
	// Name is the catalog's display name.
	Name string `yaml:"name"`

	// Description is a free-text summary.
	Description string `yaml:"description"`
}

// LoadFile reads and parses a scene catalog from disk, returning a ready
// [Catalog]. Returns a descriptive error if the file cannot be opened,
// parsed, or validated.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	return c, nil
}

// LoadFromReader parses catalog YAML from an [io.Reader]. The reader is
// consumed entirely; the caller is responsible for closing it.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	return New(file.Entries)
}
