package materialize

import (
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

// Record is the last materialized state of one logical path.
type Record struct {
	Path    string
	Content string
}

// Registry remembers what has been written during one generation run. Entries
// are only added or replaced by successful writes and are never removed.
type Registry struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]string)}
}

// Lookup returns the last content written to path, if any.
func (r *Registry) Lookup(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content, ok := r.entries[path]
	return content, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns all records sorted by path.
func (r *Registry) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := maps.Keys(r.entries)
	slices.Sort(paths)
	records := make([]Record, 0, len(paths))
	for _, p := range paths {
		records = append(records, Record{Path: p, Content: r.entries[p]})
	}
	return records
}
