package toolexecutor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// DescriptorLoader supplies the built-in descriptor table
type DescriptorLoader func() ([]*Descriptor, error)

// Registry is the read-through table of built-in tool descriptors.
// It is populated once on first use and never invalidated.
type Registry struct {
	loader DescriptorLoader
	logger zerolog.Logger

	once    sync.Once
	loadErr error

	mu      sync.RWMutex
	tools   map[string]*Descriptor
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry creates a registry backed by loader. A nil loader yields an
// empty table that can still be filled with Register.
func NewRegistry(loader DescriptorLoader, logger zerolog.Logger) *Registry {
	return &Registry{
		loader:  loader,
		logger:  logger.With().Str("component", "tool_registry").Logger(),
		tools:   make(map[string]*Descriptor),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

func (r *Registry) populate() {
	r.once.Do(func() {
		if r.loader == nil {
			return
		}
		defs, err := r.loader()
		if err != nil {
			r.loadErr = fmt.Errorf("failed to load built-in tools: %w", err)
			r.logger.Error().Err(err).Msg("Built-in tool table failed to load")
			return
		}
		for _, d := range defs {
			if err := r.Register(d); err != nil {
				r.logger.Warn().Err(err).Str("tool", d.ID).Msg("Skipping invalid built-in tool")
			}
		}
		r.logger.Info().Int("count", len(defs)).Msg("Built-in tool table loaded")
	})
}

// Register validates and adds a descriptor
func (r *Registry) Register(d *Descriptor) error {
	if err := validateDescriptor(d); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileTypeSchema(d)
	if err != nil {
		return fmt.Errorf("failed to generate schema for %s: %w", d.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[d.ID] = d
	r.schemas[d.ID] = schema

	r.logger.Debug().Str("tool", d.ID).Msg("Tool registered")

	return nil
}

// Get returns a built-in descriptor by id
func (r *Registry) Get(id string) (*Descriptor, bool) {
	r.populate()

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[id]
	return d, ok
}

func (r *Registry) schema(id string) *gojsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schemas[id]
}

// List returns all built-in descriptors sorted by id
func (r *Registry) List() []*Descriptor {
	r.populate()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadError reports why the loader failed, if it did
func (r *Registry) LoadError() error {
	r.populate()
	return r.loadErr
}

func validateDescriptor(d *Descriptor) error {
	if d == nil {
		return fmt.Errorf("descriptor is nil")
	}
	if d.ID == "" {
		return fmt.Errorf("tool id cannot be empty")
	}
	if d.Request.URL == nil {
		return fmt.Errorf("tool %s has no request url", d.ID)
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true, "object": true,
		"array": true, "integer": true, "json": true, "file": true, "any": true,
	}
	for _, p := range d.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if p.Type != "" && !validTypes[p.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", p.Type, p.Name)
		}
		switch p.Visibility {
		case "", VisibilityUserOnly, VisibilityUserOrLLM, VisibilityHidden:
		default:
			return fmt.Errorf("invalid visibility %s for %s", p.Visibility, p.Name)
		}
	}
	return nil
}
