// Package prefix resolves the command prefixes a bot answers to in a guild.
// Guild prefixes live in an in-memory Table that is filled lazily from the
// store the first time a guild is seen.
package prefix

import "sync"

// Table maps guild IDs to their prefix. It is safe for concurrent use.
type Table struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{m: make(map[string]string)}
}

// Get returns the prefix of a guild and whether one is known.
func (t *Table) Get(guildID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.m[guildID]
	return p, ok
}

// Set stores a guild's prefix, replacing any previous value.
func (t *Table) Set(guildID, prefix string) {
	t.mu.Lock()
	t.m[guildID] = prefix
	t.mu.Unlock()
}

// Delete forgets a guild.
func (t *Table) Delete(guildID string) {
	t.mu.Lock()
	delete(t.m, guildID)
	t.mu.Unlock()
}

// Replace swaps the whole table for a copy of entries.
func (t *Table) Replace(entries map[string]string) {
	m := make(map[string]string, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	t.mu.Lock()
	t.m = m
	t.mu.Unlock()
}

// Len reports how many guilds have a known prefix.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
