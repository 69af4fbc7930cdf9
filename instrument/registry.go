package instrument

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/hardware"
)

// Dependencies carries everything a factory needs beyond its own params.
// The Manager fills this in at spawn time.
type Dependencies struct {
	Logger *slog.Logger

	// Adapter is the byte transport the instrument owns. Conn is the
	// connection configuration passed to Adapter.Connect during Initialize.
	Adapter hardware.Adapter
	Conn    hardware.Config
}

// Factory creates an instrument instance from raw JSON parameters. The
// factory parses its own params and returns an initialized but unconnected
// instrument. All I/O happens later in Initialize, never in the factory.
type Factory func(id string, params json.RawMessage, deps Dependencies) (Instrument, error)

// Registration holds the factory and metadata for one instrument type.
type Registration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     string  `json:"version"`
	Factory     Factory `json:"-"`
}

// Registry maps instrument type names to factories. Thread-safe.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]*Registration
}

// NewRegistry creates an empty instrument registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]*Registration)}
}

// Register adds a factory under its type name. Duplicate names are
// rejected.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.Name == "" {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "Register", "registration validation")
	}
	if reg.Factory == nil {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "Register", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reg.Name]; exists {
		return errors.WrapFatal(
			fmt.Errorf("instrument type %q already registered", reg.Name),
			"Registry", "Register", "duplicate type check")
	}
	r.factories[reg.Name] = reg
	return nil
}

// Create builds an instrument of the named type. Unknown types return
// ErrUnknownType.
func (r *Registry) Create(typ, id string, params json.RawMessage, deps Dependencies) (Instrument, error) {
	if id == "" {
		return nil, errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "Create", "instrument id validation")
	}

	r.mu.RLock()
	reg, exists := r.factories[typ]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Wrap(
			fmt.Errorf("instrument type %q: %w", typ, errors.ErrUnknownType),
			"Registry", "Create", "type lookup")
	}

	inst, err := reg.Factory(id, params, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "factory execution")
	}
	return inst, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the registration for a type name.
func (r *Registry) Lookup(typ string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.factories[typ]
	return reg, ok
}
