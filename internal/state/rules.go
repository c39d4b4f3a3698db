package state

import (
	"context"
	"fmt"
	"sync"

	"aoi/internal/storage"
)

// Rules caches each guild's permission chain. Readers get an immutable
// snapshot; a mutation writes through to the store and then swaps in a new
// slice, so a reader sees either the old or the new chain in full.
type Rules struct {
	store storage.Store

	mu     sync.RWMutex
	chains map[string][]string
	locks  map[string]*sync.Mutex
}

func NewRules(store storage.Store) *Rules {
	return &Rules{
		store:  store,
		chains: make(map[string][]string),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Get returns the guild's chain, loading it from the store on first use.
// The returned slice must not be modified.
func (r *Rules) Get(ctx context.Context, guildID string) ([]string, error) {
	r.mu.RLock()
	rules, ok := r.chains[guildID]
	r.mu.RUnlock()
	if ok {
		return rules, nil
	}

	loaded, err := r.store.Permissions(ctx, guildID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A mutation that finished while we were loading wins.
	if rules, ok := r.chains[guildID]; ok {
		return rules, nil
	}
	r.chains[guildID] = loaded
	return loaded, nil
}

// Lookup returns the guild's chain without creating the guild. found is
// false for a guild that has never been stored.
func (r *Rules) Lookup(ctx context.Context, guildID string) (rules []string, found bool, err error) {
	r.mu.RLock()
	rules, ok := r.chains[guildID]
	r.mu.RUnlock()
	if ok {
		return rules, true, nil
	}

	loaded, found, err := r.store.LookupPermissions(ctx, guildID)
	if err != nil || !found {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rules, ok := r.chains[guildID]; ok {
		return rules, true, nil
	}
	r.chains[guildID] = loaded
	return loaded, true, nil
}

// Add appends a rule and returns its index.
func (r *Rules) Add(ctx context.Context, guildID, rule string) (int, error) {
	var index int
	err := r.mutate(ctx, guildID, func(cur []string) ([]string, error) {
		if err := r.store.AddPermission(ctx, guildID, rule); err != nil {
			return nil, err
		}
		index = len(cur)
		next := make([]string, 0, len(cur)+1)
		return append(append(next, cur...), rule), nil
	})
	return index, err
}

// Remove deletes the rule at index and returns it.
func (r *Rules) Remove(ctx context.Context, guildID string, index int) (string, error) {
	var removed string
	err := r.mutate(ctx, guildID, func(cur []string) ([]string, error) {
		if index < 0 || index >= len(cur) {
			return nil, fmt.Errorf("%w: %d (chain has %d rules)", storage.ErrRuleIndex, index, len(cur))
		}
		if err := r.store.RemovePermission(ctx, guildID, index); err != nil {
			return nil, err
		}
		removed = cur[index]
		next := make([]string, 0, len(cur)-1)
		next = append(next, cur[:index]...)
		return append(next, cur[index+1:]...), nil
	})
	return removed, err
}

// Reset restores the default chain.
func (r *Rules) Reset(ctx context.Context, guildID string) error {
	return r.mutate(ctx, guildID, func([]string) ([]string, error) {
		if err := r.store.ClearPermissions(ctx, guildID); err != nil {
			return nil, err
		}
		return r.store.Permissions(ctx, guildID)
	})
}

// Replace overwrites the whole chain.
func (r *Rules) Replace(ctx context.Context, guildID string, rules []string) error {
	next := append([]string{}, rules...)
	return r.mutate(ctx, guildID, func([]string) ([]string, error) {
		return next, r.store.SetPermissions(ctx, guildID, next)
	})
}

// Forget deletes the guild from the store and drops its cached chain. It
// waits for a mutation in flight, so nothing writes the guild back afterwards.
// The guild's lock entry is kept so later mutations still serialise with it.
func (r *Rules) Forget(ctx context.Context, guildID string) error {
	lock := r.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	delete(r.chains, guildID)
	r.mu.Unlock()

	if err := r.store.DeleteGuild(ctx, guildID); err != nil {
		return fmt.Errorf("delete guild %s: %w", guildID, err)
	}
	return nil
}

func (r *Rules) mutate(ctx context.Context, guildID string, fn func(cur []string) ([]string, error)) error {
	lock := r.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	cur, err := r.Get(ctx, guildID)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.chains[guildID] = next
	r.mu.Unlock()
	return nil
}

func (r *Rules) guildLock(guildID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[guildID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[guildID] = l
	}
	return l
}
