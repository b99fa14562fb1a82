package ess

import (
	"fmt"
	"sync"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the ESS systems and selects one with the ess-provider
// flag.
func Configured() *Map {
	m := NewMap()
	name := lflag.String("ess-provider", "tesla", "Battery to push the tariff to (tesla or mock)")
	m.SetSystem("tesla", configuredTesla())
	m.SetSystem("mock", NewMock(nil, nil))
	lflag.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.selected = *name
	})
	return m
}

// Map manages multiple ESS systems.
type Map struct {
	mu       sync.Mutex
	selected string
	systems  map[string]System
}

// NewMap creates a new ESS Map.
func NewMap() *Map {
	return &Map{
		systems: make(map[string]System),
	}
}

// System returns the system registered under name.
func (m *Map) System(name string) (System, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sys, ok := m.systems[name]; ok {
		return sys, nil
	}
	return nil, fmt.Errorf("unknown ess provider: %s", name)
}

// Selected returns the system chosen with the ess-provider flag.
func (m *Map) Selected() (System, error) {
	m.mu.Lock()
	name := m.selected
	m.mu.Unlock()
	return m.System(name)
}

// Select changes the selected system. This is primarily used for testing.
func (m *Map) Select(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = name
}

// SetSystem sets the system for a name. This is primarily used for testing.
func (m *Map) SetSystem(name string, sys System) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systems[name] = sys
}
