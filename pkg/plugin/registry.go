// Package plugin is the provider registry. LLM, STT and TTS backends register
// a factory from init() and the worker builds them by name from config, so
// swapping OpenAI for Gemini or the fakes needs no code change.
package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Provider kinds.
const (
	KindLLM = "llm"
	KindSTT = "stt"
	KindTTS = "tts"
)

// ErrNotRegistered is returned when no factory exists for a kind/name pair.
var ErrNotRegistered = errors.New("plugin not registered")

// Factory creates a provider instance from configuration. The result is
// asserted to llm.LLM, stt.STT or tts.TTS by the typed builders.
type Factory func(cfg map[string]any) (any, error)

// Plugin is a registered factory and its metadata.
type Plugin struct {
	Kind        string
	Name        string
	Factory     Factory
	Description string
	Version     string
	Config      map[string]any // documented options and their defaults
}

// Registry maps kind and name to a plugin.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Plugin)}
}

var globalRegistry = NewRegistry()

// Register adds a factory to the global registry. It panics on duplicates.
func Register(kind, name string, factory Factory) {
	globalRegistry.Register(kind, name, factory)
}

// RegisterWithMetadata adds p to the global registry. It panics on
// duplicates.
func RegisterWithMetadata(p *Plugin) {
	globalRegistry.RegisterWithMetadata(p)
}

// Get looks up a factory in the global registry.
func Get(kind, name string) (Factory, bool) {
	return globalRegistry.Get(kind, name)
}

// List returns the global registry's plugins of kind, or all of them when
// kind is empty.
func List(kind string) []*Plugin {
	return globalRegistry.List(kind)
}

// ListKinds returns the kinds present in the global registry.
func ListKinds() []string {
	return globalRegistry.ListKinds()
}

func (r *Registry) Register(kind, name string, factory Factory) {
	r.RegisterWithMetadata(&Plugin{Kind: kind, Name: name, Factory: factory})
}

func (r *Registry) RegisterWithMetadata(p *Plugin) {
	switch {
	case p.Kind == "":
		panic("plugin kind cannot be empty")
	case p.Name == "":
		panic("plugin name cannot be empty")
	case p.Factory == nil:
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[p.Kind] == nil {
		r.plugins[p.Kind] = make(map[string]*Plugin)
	}
	if existing, ok := r.plugins[p.Kind][p.Name]; ok {
		panic(fmt.Sprintf("plugin %s/%s already registered (existing version: %s, new version: %s)",
			p.Kind, p.Name, existing.Version, p.Version))
	}
	r.plugins[p.Kind][p.Name] = p
}

func (r *Registry) Get(kind, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[kind][name]
	if !ok {
		return nil, false
	}
	return p.Factory, true
}

// List returns plugins sorted by kind, then name.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Plugin
	for k, byName := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, p := range byName {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.plugins))
	for k := range r.plugins {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Clear removes every plugin. Used by tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[string]map[string]*Plugin)
}

// build runs the named factory and asserts the result to T.
func build[T any](r *Registry, kind, name string, cfg map[string]any) (T, error) {
	var zero T
	factory, ok := r.Get(kind, name)
	if !ok {
		return zero, fmt.Errorf("%s/%s: %w", kind, name, ErrNotRegistered)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	instance, err := factory(cfg)
	if err != nil {
		return zero, fmt.Errorf("create %s/%s: %w", kind, name, err)
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%s/%s: factory returned %T", kind, name, instance)
	}
	return typed, nil
}
