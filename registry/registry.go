// Package registry implements the model registry from spec §4.12: a
// static resource_type -> metadata schema constructor map the version
// store consults to parse persisted records polymorphically, without
// resorting to runtime type dispatch over record subtypes (spec §8's
// redesign flag on "dynamic typing / polymorphic records").
//
// Narrowed down from teacher's lexicon/lexicon_registry.go
// LexiconRegistry, which additionally compiles IPLD schemas, tracks
// SemVer compatibility, and runs data migrations — none of which spec
// §4.12 asks for. What survives the narrowing is the shape that
// matters here: a definitions map guarded by a RWMutex, one-shot
// registration, and a typed lookup error on miss.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"lexicore/model"
)

// ErrUnknownResourceType is returned by New for a resource_type that was
// never registered.
var ErrUnknownResourceType = errors.New("registry: unknown resource type")

// ErrAlreadyRegistered is returned by Register when resource_type already
// has a constructor (spec §4.12: "duplicate registration for the same
// type is an error").
var ErrAlreadyRegistered = errors.New("registry: resource type already registered")

// SchemaConstructor builds a zero-value metadata payload for a
// resource_type, used by callers decoding a persisted record's Metadata
// field into its concrete shape before operating on it.
type SchemaConstructor func() any

// Registry is a process-wide, explicitly-initialized map from
// resource_type to its metadata schema constructor (spec §8: "global
// registries ... process-wide, initialized once at startup;
// initialization is explicit, not lazy").
type Registry struct {
	mu           sync.RWMutex
	constructors map[model.ResourceType]SchemaConstructor
}

// New builds an empty Registry. Registration happens via Register calls
// at startup, not lazily on first use.
func New() *Registry {
	return &Registry{constructors: make(map[model.ResourceType]SchemaConstructor)}
}

// Register associates resourceType with constructor. Registering the
// same resourceType twice is an error (spec §4.12).
func (r *Registry) Register(resourceType model.ResourceType, constructor SchemaConstructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[resourceType]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, resourceType)
	}
	r.constructors[resourceType] = constructor
	return nil
}

// MustRegister is Register, panicking on error. Intended for startup
// wiring where a duplicate registration is a programmer error, not a
// recoverable condition.
func (r *Registry) MustRegister(resourceType model.ResourceType, constructor SchemaConstructor) {
	if err := r.Register(resourceType, constructor); err != nil {
		panic(err)
	}
}

// New builds a fresh metadata payload for resourceType. It returns
// ErrUnknownResourceType if resourceType was never registered.
func (r *Registry) New(resourceType model.ResourceType) (any, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[resourceType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResourceType, resourceType)
	}
	return constructor(), nil
}

// Has reports whether resourceType has a registered constructor.
func (r *Registry) Has(resourceType model.ResourceType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[resourceType]
	return ok
}

// Types returns every registered resource_type, sorted for stable
// output (mirrors teacher's ListLexicons sorting its result set).
func (r *Registry) Types() []model.ResourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ResourceType, 0, len(r.constructors))
	for t := range r.constructors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
