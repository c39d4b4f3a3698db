package prefix

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"aoi/pkg/jobmgr"

	"github.com/rs/zerolog"
)

// DefaultPrefix is answered to in direct messages and in guilds whose prefix
// has not been loaded yet.
const DefaultPrefix = ","

// Loader fetches a guild's stored prefix. Implementations create the default
// entry for unseen guilds.
type Loader interface {
	Prefix(ctx context.Context, guildID string) (string, error)
}

// LoadResult labels the outcome of a background prefix load.
type LoadResult string

const (
	LoadOK     LoadResult = "ok"
	LoadFailed LoadResult = "error"
)

// Resolver answers which prefixes apply to a message. Misses are filled in
// the background; until then the guild gets the fallback prefix set.
type Resolver struct {
	table    *Table
	loader   Loader
	jobs     *jobmgr.Manager
	fallback string
	log      zerolog.Logger
	onLoad   func(LoadResult)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallback overrides DefaultPrefix.
func WithFallback(p string) Option {
	return func(r *Resolver) {
		if p != "" {
			r.fallback = p
		}
	}
}

// WithLoadHook is called after every background load.
func WithLoadHook(fn func(LoadResult)) Option {
	return func(r *Resolver) { r.onLoad = fn }
}

// NewResolver builds a Resolver. Loads run as jobs on jobs so a guild is only
// loaded once at a time.
func NewResolver(table *Table, loader Loader, jobs *jobmgr.Manager, log zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		table:    table,
		loader:   loader,
		jobs:     jobs,
		fallback: DefaultPrefix,
		log:      log.With().Str("component", "prefix").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table exposes the backing table.
func (r *Resolver) Table() *Table { return r.table }

// Fallback returns the literal prefix used when no guild prefix is known.
func (r *Resolver) Fallback() string { return r.fallback }

// Resolve returns the prefixes for a message: the two mention forms of the
// bot followed by the guild's prefix, or the fallback when guildID is empty
// or the guild is not loaded yet. A miss schedules a load and returns
// without waiting for it.
func (r *Resolver) Resolve(botID, guildID string) []string {
	out := Mentions(botID)

	if guildID == "" {
		return append(out, r.fallback)
	}
	if p, ok := r.table.Get(guildID); ok {
		return append(out, p)
	}

	r.schedule(guildID)
	return append(out, r.fallback)
}

// Mentions returns both mention forms of a user, each followed by a space.
func Mentions(userID string) []string {
	if userID == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("<@%s> ", userID),
		fmt.Sprintf("<@!%s> ", userID),
	}
}

// JobName names the background load of a guild's prefix.
func JobName(guildID string) string { return "prefix:" + guildID }

// Forget cancels a pending load for the guild and drops its table entry.
func (r *Resolver) Forget(guildID string) {
	if name := JobName(guildID); r.jobs.Running(name) {
		// The job may finish between the two calls; Stop then has nothing to do.
		_ = r.jobs.Stop(name)
	}
	r.table.Delete(guildID)
}

func (r *Resolver) schedule(guildID string) {
	r.jobs.Go(JobName(guildID), func(ctx context.Context) error {
		p, err := r.loader.Prefix(ctx, guildID)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			r.log.Error().Err(err).Str("guild", guildID).Msg("loading prefix")
			r.report(LoadFailed)
			return err
		}
		r.table.Set(guildID, p)
		r.log.Debug().Str("guild", guildID).Str("prefix", p).Msg("prefix loaded")
		r.report(LoadOK)
		return nil
	})
}

func (r *Resolver) report(res LoadResult) {
	if r.onLoad != nil {
		r.onLoad(res)
	}
}

// Wait blocks until in-flight loads have finished.
func (r *Resolver) Wait() {
	r.jobs.Wait()
}

// Match finds the longest prefix that content starts with and returns the
// remainder. Empty prefixes never match.
func Match(content string, prefixes []string) (string, bool) {
	sorted := append([]string(nil), prefixes...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	for _, p := range sorted {
		if p != "" && strings.HasPrefix(content, p) {
			return content[len(p):], true
		}
	}
	return "", false
}
