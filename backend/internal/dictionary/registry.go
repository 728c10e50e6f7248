package dictionary

import (
	"sort"
	"sync"
)

// Registry owns one Dictionary per guild
type Registry struct {
	mu    sync.RWMutex
	dicts map[string]*Dictionary
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{dicts: make(map[string]*Dictionary)}
}

// Get returns the guild's dictionary, or nil when the guild has none
func (r *Registry) Get(guildID string) *Dictionary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dicts[guildID]
}

// Ensure returns the guild's dictionary, creating it if needed
func (r *Registry) Ensure(guildID string) *Dictionary {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, exists := r.dicts[guildID]; exists {
		return d
	}
	d := New()
	r.dicts[guildID] = d
	return d
}

// Load registers stored entries for a guild in order. Entries that fail
// validation or compilation are skipped; their errors are returned so the
// caller can report them.
func (r *Registry) Load(guildID string, entries []Entry) []error {
	d := r.Ensure(guildID)

	var errs []error
	for _, e := range entries {
		if err := d.Register(e.Key, e.Replacement); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Snapshot returns every guild's entries in registration order
func (r *Registry) Snapshot() map[string][]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]Entry, len(r.dicts))
	for guildID, d := range r.dicts {
		out[guildID] = d.Entries()
	}
	return out
}

// Guilds returns the guild IDs that have a dictionary, sorted
func (r *Registry) Guilds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.dicts))
	for id := range r.dicts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
