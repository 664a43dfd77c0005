package network

import "fmt"

// Factory constructs a Network from a string-keyed option map, mirroring
// the weights-file/options pattern of lc0's NetworkFactory
// (original_source/src/neural/factory.cc) reduced to what this repo's two
// in-repo backends need.
type Factory func(opts map[string]string) (Network, error)

var registry = map[string]Factory{}

// RegisterBackend makes a Network implementation selectable by name via
// NewNetwork. Call from an init() in the backend's own file, the way
// database/sql drivers register themselves.
func RegisterBackend(name string, fn Factory) {
	registry[name] = fn
}

// NewNetwork constructs the named backend. Returns an error if name was
// never registered, and wraps the factory's own error if construction fails.
func NewNetwork(name string, opts map[string]string) (Network, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("network: unknown backend %q", name)
	}
	n, err := fn(opts)
	if err != nil {
		return nil, fmt.Errorf("network: backend %q construction failed: %w", name, err)
	}
	return n, nil
}

// Backends lists the names currently registered, for diagnostics.
func Backends() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
