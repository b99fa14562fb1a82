package utility

import (
	"fmt"
	"sync"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the utility providers based on flags.
func Configured() *Map {
	m := NewMap()
	name := lflag.String("utility-provider", "octopus", "Utility to fetch rates and dispatches from")
	m.SetProvider("octopus", configuredOctopus())
	lflag.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.selected = *name
	})
	return m
}

// Map manages multiple utility providers.
type Map struct {
	mu        sync.Mutex
	selected  string
	providers map[string]Provider
}

// NewMap creates a new utility Map.
func NewMap() *Map {
	return &Map{
		providers: make(map[string]Provider),
	}
}

// Provider returns the provider for the given name.
func (m *Map) Provider(name string) (Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prov, ok := m.providers[name]; ok {
		return prov, nil
	}
	return nil, fmt.Errorf("unknown utility provider: %s", name)
}

// Selected returns the provider chosen with the utility-provider flag.
func (m *Map) Selected() (Provider, error) {
	m.mu.Lock()
	name := m.selected
	m.mu.Unlock()
	return m.Provider(name)
}

// Select changes the selected provider. This is primarily used for testing.
func (m *Map) Select(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = name
}

// SetProvider sets the provider for the given name. This is primarily used for testing.
func (m *Map) SetProvider(name string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = provider
}
