// Package state owns the per-process guild state shared by every event
// handler: the permission chain cache, the prefix resolver and the rule
// evaluator. It is built once in main and handed to handlers explicitly.
package state

import (
	"context"
	"fmt"

	"aoi/internal/metrics"
	"aoi/internal/permission"
	"aoi/internal/prefix"
	"aoi/internal/storage"
	"aoi/pkg/jobmgr"

	"github.com/rs/zerolog"
)

type Options struct {
	DefaultPrefix string
	Metrics       *metrics.Metrics // may be nil
}

type State struct {
	Store     storage.Store
	Rules     *Rules
	Prefixes  *prefix.Resolver
	Evaluator *permission.Evaluator

	jobs    *jobmgr.Manager
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New wires the state around store. Background work is rooted in ctx.
func New(ctx context.Context, store storage.Store, log zerolog.Logger, opts Options) *State {
	log = log.With().Str("component", "state").Logger()

	jobs := jobmgr.NewManager(ctx, func(ev jobmgr.Event) {
		if ev.State == jobmgr.StateFailed {
			log.Warn().Err(ev.Err).Str("job", ev.Job).Msg("background job failed")
		}
	})

	m := opts.Metrics
	return &State{
		Store: store,
		Rules: NewRules(store),
		Prefixes: prefix.NewResolver(prefix.NewTable(), store, jobs, log,
			prefix.WithFallback(opts.DefaultPrefix),
			prefix.WithLoadHook(func(r prefix.LoadResult) { m.PrefixLoad(string(r)) }),
		),
		Evaluator: permission.NewEvaluator(log,
			permission.WithFaultHook(func(*permission.RuleParseFault) { m.ParseFault() }),
		),
		jobs:    jobs,
		metrics: m,
		log:     log,
	}
}

// Load fills the prefix table with every stored guild prefix.
func (s *State) Load(ctx context.Context) error {
	all, err := s.Store.Prefixes(ctx)
	if err != nil {
		return fmt.Errorf("preload prefixes: %w", err)
	}
	s.Prefixes.Table().Replace(all)
	s.log.Info().Int("guilds", len(all)).Msg("prefixes loaded")
	return nil
}

// Check evaluates inv against its guild's chain. Exempt and unguilded
// invocations never touch the store.
func (s *State) Check(ctx context.Context, inv permission.Invocation) (permission.Decision, error) {
	var rules []string
	if inv.GuildID != "" && inv.Command != "" && !permission.Exempt(inv) {
		var err error
		if rules, err = s.Rules.Get(ctx, inv.GuildID); err != nil {
			return permission.Decision{}, fmt.Errorf("load rules for %s: %w", inv.GuildID, err)
		}
	}
	d, err := s.Evaluator.Evaluate(rules, inv)
	if err == nil || d.RuleIndex != permission.NoRule {
		s.metrics.Decision(d.Allow)
	}
	return d, err
}

// SetPrefix stores a guild's prefix and updates the table.
func (s *State) SetPrefix(ctx context.Context, guildID, p string) error {
	if err := s.Store.SetPrefix(ctx, guildID, p); err != nil {
		return err
	}
	s.Prefixes.Table().Set(guildID, p)
	return nil
}

// ForgetGuild drops all cached and stored state of a guild the bot left.
func (s *State) ForgetGuild(ctx context.Context, guildID string) error {
	s.Prefixes.Forget(guildID)
	return s.Rules.Forget(ctx, guildID)
}

// Jobs exposes the background job manager.
func (s *State) Jobs() *jobmgr.Manager { return s.jobs }

// Close cancels and waits for background work. The store is closed by its owner.
func (s *State) Close() {
	s.jobs.Shutdown()
}
