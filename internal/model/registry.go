// Package model holds the catalog of named inference models and their
// routing metadata. The registry is read-mostly: routing reads it on every
// request, while availability is flipped only by the health-check routine.
package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/curax/triage/prompts"
)

// ErrNotFound is returned when a model id is not in the catalog.
var ErrNotFound = errors.New("model not found")

// Model describes one catalog entry.
type Model struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	Capabilities      []string `json:"capabilities"`
	MaxTokens         int      `json:"max_tokens"`
	Temperature       float32  `json:"temperature"`
	TopP              float32  `json:"top_p"`
	Available         bool     `json:"available"`
	CostPerToken      float64  `json:"cost_per_token"`
	AvgResponseTimeMs int      `json:"avg_response_time_ms"`
}

// HasCapability reports whether the model carries the given capability tag.
func (m *Model) HasCapability(tag string) bool {
	for _, c := range m.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Registry is a concurrency-safe model catalog. Reads observe a consistent
// snapshot per call; no stronger ordering is guaranteed across calls.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// FromSeeds populates a registry from the flow configuration's catalog.
func FromSeeds(seeds []prompts.ModelSeed) *Registry {
	r := NewRegistry()
	for _, s := range seeds {
		r.Put(&Model{
			ID:                s.ID,
			Name:              s.Name,
			Type:              s.Type,
			Capabilities:      s.Capabilities,
			MaxTokens:         s.MaxTokens,
			Temperature:       s.Temperature,
			TopP:              s.TopP,
			Available:         s.Available,
			CostPerToken:      s.CostPerToken,
			AvgResponseTimeMs: s.AvgResponseTimeMs,
		})
	}
	return r
}

// Put adds or replaces a catalog entry.
func (r *Registry) Put(m *Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[m.ID] = m
}

// Get returns a copy of the model with the given id.
func (r *Registry) Get(id string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *m
	return &copied, nil
}

// List returns every catalog entry, available or not, sorted by id.
func (r *Registry) List() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		copied := *m
		out = append(out, &copied)
	}
	sortByID(out)
	return out
}

// ListAvailable returns all available models, sorted by id.
func (r *Registry) ListAvailable() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Model
	for _, m := range r.models {
		if m.Available {
			copied := *m
			out = append(out, &copied)
		}
	}
	sortByID(out)
	return out
}

// ListByCapability returns all available models carrying the given tag,
// sorted by id.
func (r *Registry) ListByCapability(tag string) []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Model
	for _, m := range r.models {
		if m.Available && m.HasCapability(tag) {
			copied := *m
			out = append(out, &copied)
		}
	}
	sortByID(out)
	return out
}

// SetAvailable flips a model's availability flag. Used by health checks.
func (r *Registry) SetAvailable(id string, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.Available = available
	return nil
}

// Size returns the number of catalog entries.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

func sortByID(models []*Model) {
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
}
