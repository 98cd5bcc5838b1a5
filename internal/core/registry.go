package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]*Profile)
	registryMu sync.RWMutex
)

// Register adds an import profile to the registry.
// Panics if a profile with the same key is already registered.
func Register(p *Profile) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[p.Key]; exists {
		panic(fmt.Sprintf("profile already registered: %s", p.Key))
	}

	if len(p.Significant) == 0 {
		p.Significant = p.Headers()
	}

	registry[p.Key] = p
}

// Get returns a profile by key.
func Get(key string) (*Profile, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[key]
	return p, ok
}

// All returns all registered profiles sorted by key.
func All() []*Profile {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*Profile, 0, len(registry))
	for _, p := range registry {
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Catalogue maps profile key -> picklist field -> allowed values.
type Catalogue map[string]map[string][]string

// ApplyCatalogue replaces the allowed values of registered profiles.
// Profiles already handed out keep their old values.
func ApplyCatalogue(cat Catalogue) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	for key, fields := range cat {
		p, ok := registry[key]
		if !ok {
			return fmt.Errorf("picklist catalogue: %w: %s", ErrUnknownProfile, key)
		}
		for field := range fields {
			if !p.IsPicklist(field) {
				return fmt.Errorf("picklist catalogue: %s has no picklist field %q", key, field)
			}
		}
		registry[key] = p.withPicklists(fields)
	}
	return nil
}

// ProfileCount returns the number of registered profiles.
func ProfileCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered profiles.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]*Profile)
}
