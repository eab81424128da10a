package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stephenhungg/flow/pkg/provider/content"
	"github.com/stephenhungg/flow/pkg/provider/image"
	"github.com/stephenhungg/flow/pkg/provider/mesh"
	"github.com/stephenhungg/flow/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	content map[string]func(ProviderEntry) (content.Provider, error)
	image   map[string]func(ProviderEntry) (image.Provider, error)
	stt     map[string]func(ProviderEntry) (stt.Provider, error)
	mesh    map[string]func(ProviderEntry) (mesh.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		content: make(map[string]func(ProviderEntry) (content.Provider, error)),
		image:   make(map[string]func(ProviderEntry) (image.Provider, error)),
		stt:     make(map[string]func(ProviderEntry) (stt.Provider, error)),
		mesh:    make(map[string]func(ProviderEntry) (mesh.Provider, error)),
	}
}

// RegisterContent registers a content provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterContent(name string, factory func(ProviderEntry) (content.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content[name] = factory
}

// RegisterImage registers an image provider factory under name.
func (r *Registry) RegisterImage(name string, factory func(ProviderEntry) (image.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.image[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterMesh registers a mesh provider factory under name.
func (r *Registry) RegisterMesh(name string, factory func(ProviderEntry) (mesh.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mesh[name] = factory
}

// CreateContent instantiates a content provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateContent(entry ProviderEntry) (content.Provider, error) {
	r.mu.RLock()
	factory, ok := r.content[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: content/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateImage instantiates an image provider using the factory registered under entry.Name.
func (r *Registry) CreateImage(entry ProviderEntry) (image.Provider, error) {
	r.mu.RLock()
	factory, ok := r.image[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: image/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateMesh instantiates a mesh provider using the factory registered under entry.Name.
func (r *Registry) CreateMesh(entry ProviderEntry) (mesh.Provider, error) {
	r.mu.RLock()
	factory, ok := r.mesh[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: mesh/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
