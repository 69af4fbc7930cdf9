package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/easternanemone/daqstreams/errors"
)

// Config is the flat key-value connection configuration an adapter receives
// at Connect time. Keys are adapter-specific (port, baud, host, timeout);
// adapters ignore keys they do not understand.
type Config map[string]string

// Get returns the value for key, or def when the key is absent or empty.
func (c Config) Get(key, def string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return def
}

// Duration parses the value for key as a time.Duration, falling back to def
// on absence or parse failure.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	v, ok := c[key]
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Adapter is a byte transport to one physical device. Implementations are
// not safe for concurrent use; the owning driver serializes access.
type Adapter interface {
	// Connect opens the underlying transport. Calling Connect on an
	// already connected adapter returns ErrAlreadyRunning.
	Connect(ctx context.Context, cfg Config) error

	// Write sends raw bytes to the device. Returns ErrNotConnected before
	// Connect and ErrAdapterClosed after Close.
	Write(ctx context.Context, data []byte) error

	// ReadLine reads one terminated response line, waiting at most timeout.
	// A device that stays silent yields ErrReadTimeout.
	ReadLine(ctx context.Context, timeout time.Duration) ([]byte, error)

	// Close releases the transport. Idempotent; a closed adapter fails all
	// further operations with ErrAdapterClosed.
	Close() error
}

// Factory creates an unconnected adapter of one transport kind.
type Factory func() Adapter

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes an adapter kind available by name. Duplicate names
// are a programming error and panic at startup.
func RegisterFactory(kind string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("hardware: adapter factory %q registered twice", kind))
	}
	factories[kind] = f
}

// NewAdapter creates an unconnected adapter of the named kind.
func NewAdapter(kind string) (Adapter, error) {
	factoriesMu.RLock()
	f, ok := factories[kind]
	factoriesMu.RUnlock()
	if !ok {
		return nil, errors.Wrap(
			fmt.Errorf("adapter kind %q: %w", kind, errors.ErrUnknownType),
			"hardware", "NewAdapter", "factory lookup")
	}
	return f(), nil
}

// Kinds returns the registered adapter kind names.
func Kinds() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

func init() {
	RegisterFactory("mock", func() Adapter { return NewMock() })
}
