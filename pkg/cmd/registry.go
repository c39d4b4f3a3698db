package cmd

import (
	"sort"
	"strings"
	"sync"
)

// DefaultRegistry is the registry command packages add themselves to from init().
var DefaultRegistry = NewRegistry()

// Registry stores commands by lower-cased name and alias. It does not perform
// dispatch; each adapter looks commands up and invokes them with its own context.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	names    map[string]Command
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		names:    make(map[string]Command),
	}
}

// Register adds a command under its name and aliases. A later registration
// with the same name replaces the earlier one.
func (r *Registry) Register(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(c.Name())
	r.commands[name] = c
	r.names[name] = c
	if a, ok := c.(Aliased); ok {
		for _, alias := range a.Aliases() {
			r.names[strings.ToLower(alias)] = c
		}
	}
}

// Get returns the command registered under name or alias, or nil.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[strings.ToLower(name)]
}

// GetAll returns all registered commands, sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Modules returns the names of all modules with at least one command, sorted.
func (r *Registry) Modules() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range r.GetAll() {
		m := c.Module()
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ByModule returns the commands of one module (exact module name), sorted by name.
func (r *Registry) ByModule(module string) []Command {
	var out []Command
	for _, c := range r.GetAll() {
		if c.Module() == module {
			out = append(out, c)
		}
	}
	return out
}
