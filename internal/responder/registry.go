package responder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Factory creates a fresh, uninitialised responder.
type Factory func() Responder

// Registry maps responder identifiers to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry knows every built-in responder.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("llm", func() Responder { return &LLM{} })
	r.Register("smalltalk", func() Responder { return &SmallTalk{} })
	r.Register("random", func() Responder { return &Random{} })
	r.Register("process", func() Responder { return &Process{} })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	r.factories[id] = f
	r.mu.Unlock()
}

// IDs lists registered identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Manifest is the ordered list of responders to load.
type Manifest struct {
	Responders []ManifestEntry `yaml:"responders"`
}

// ManifestEntry names one responder and its load parameters.
type ManifestEntry struct {
	ID       string            `yaml:"id"`
	Disabled bool              `yaml:"disabled,omitempty"`
	Params   map[string]string `yaml:"params,omitempty"`
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse responder manifest: %w", err)
	}
	for i, e := range m.Responders {
		if e.ID == "" {
			return nil, fmt.Errorf("responder manifest entry %d has no id", i)
		}
	}
	return &m, nil
}

// LoadManifest reads path. The returned error wraps os.ErrNotExist when
// the file is missing.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// ManifestFromIDs builds a manifest without parameters.
func ManifestFromIDs(ids []string) *Manifest {
	m := &Manifest{}
	for _, id := range ids {
		m.Responders = append(m.Responders, ManifestEntry{ID: id})
	}
	return m
}

// Load instantiates, initialises and starts every manifest entry.
// Responders that fail at any step are logged and left out of the chain.
func (r *Registry) Load(ctx context.Context, m *Manifest, base InitContext) *Chain {
	var loaded []Responder
	if m == nil {
		return NewChain()
	}
	for _, entry := range m.Responders {
		if entry.Disabled {
			continue
		}
		r.mu.RLock()
		factory, ok := r.factories[entry.ID]
		r.mu.RUnlock()
		if !ok {
			slog.Warn("Unknown responder in manifest", "id", entry.ID)
			continue
		}
		resp := factory()
		ic := base
		ic.Params = entry.Params
		if err := resp.Init(ic); err != nil {
			slog.Warn("Responder init failed", "id", entry.ID, "error", err)
			continue
		}
		if err := resp.Start(ctx); err != nil {
			slog.Warn("Responder start failed", "id", entry.ID, "error", err)
			continue
		}
		info := resp.Info()
		slog.Info("Loaded responder", "id", entry.ID, "name", info.Name, "intelligence", info.IntelligenceLevel)
		loaded = append(loaded, resp)
	}
	return NewChain(loaded...)
}
