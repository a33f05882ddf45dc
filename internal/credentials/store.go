// Package credentials holds provider API keys in memory. Keys are supplied
// by the host (config.set_keys) or the environment and are never persisted.
package credentials

import (
	"sort"
	"strings"
	"sync"

	"github.com/oukeidos/fictra/internal/llm"
)

// Store is safe for concurrent use. Pipeline runs read a Snapshot taken at
// run start, so a key update never changes a run in flight.
type Store struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewStore() *Store {
	return &Store{keys: make(map[string]string)}
}

// Set merges keys into the store and returns the sorted names now stored.
// Provider aliases (google, anthropic) are stored under the canonical name.
// An empty value removes the key.
func (s *Store) Set(keys map[string]string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, key := range keys {
		canonical := canonicalName(name)
		key = strings.TrimSpace(key)
		if key == "" {
			delete(s.keys, canonical)
			continue
		}
		s.keys[canonical] = key
	}

	stored := make([]string, 0, len(s.keys))
	for name := range s.keys {
		stored = append(stored, name)
	}
	sort.Strings(stored)
	return stored
}

// Status reports, for every supported provider, whether a key is present.
func (s *Store) Status() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := make(map[string]bool, len(llm.Providers()))
	for _, p := range llm.Providers() {
		status[string(p)] = s.keys[string(p)] != ""
	}
	return status
}

// Has reports whether a key for name (or its alias) is stored.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[canonicalName(name)] != ""
}

// Snapshot returns a copy of all keys.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.keys))
	for k, v := range s.keys {
		out[k] = v
	}
	return out
}

func canonicalName(name string) string {
	if p, err := llm.ParseProvider(name); err == nil {
		return string(p)
	}
	return strings.ToLower(strings.TrimSpace(name))
}
