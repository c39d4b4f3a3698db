// Package middleware holds the cmd.Middleware applied to Discord commands.
// Each middleware expects the invocation to carry a *command.Context.
package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"aoi/internal/command"
	"aoi/internal/storage"
	"aoi/pkg/cmd"

	"golang.org/x/time/rate"
)

// wrap is the shared shape of every middleware here: resolve the Discord
// context, then decide whether and how to run the inner command.
func wrap(run func(ctx context.Context, c *command.Context, next cmd.Command, inv *cmd.Invocation) error) cmd.Middleware {
	return func(next cmd.Command) cmd.Command {
		return cmd.Wrap(next, func(ctx context.Context, inv *cmd.Invocation) error {
			c, err := command.FromInvocation(inv)
			if err != nil {
				return err
			}
			return run(ctx, c, next, inv)
		})
	}
}

// WithGuildOnly rejects commands sent in direct messages.
func WithGuildOnly() cmd.Middleware {
	return wrap(func(ctx context.Context, c *command.Context, next cmd.Command, inv *cmd.Invocation) error {
		if c.GuildID() == "" {
			return command.ErrGuildOnly
		}
		return next.Run(ctx, inv)
	})
}

// WithRulePermissionCheck evaluates the guild's permission rule chain.
func WithRulePermissionCheck() cmd.Middleware {
	return wrap(func(ctx context.Context, c *command.Context, next cmd.Command, inv *cmd.Invocation) error {
		if _, err := c.State.Check(ctx, c.Invocation()); err != nil {
			return err
		}
		return next.Run(ctx, inv)
	})
}

// WithUserPermissionCheck requires the member to hold any one of the
// command's declared permissions. Administrators and the developer bypass.
func WithUserPermissionCheck() cmd.Middleware {
	return wrap(func(ctx context.Context, c *command.Context, next cmd.Command, inv *cmd.Invocation) error {
		required := command.Meta(next).UserPermissions()
		if len(required) == 0 || c.GuildID() == "" {
			return next.Run(ctx, inv)
		}

		ok, err := c.MemberHasAny(ctx, required...)
		if err != nil {
			return err
		}
		if ok {
			return next.Run(ctx, inv)
		}

		names := make([]string, 0, len(required))
		for _, p := range required {
			names = append(names, PermissionName(p))
		}
		return &command.MissingPermissionsError{Permissions: names}
	})
}

const cooldownPruneAt = 1024

// WithChannelCooldown allows the command once per period in each channel.
func WithChannelCooldown(per time.Duration) cmd.Middleware {
	var (
		mu       sync.Mutex
		limiters = map[string]*rate.Limiter{}
	)
	limiter := func(channelID string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if len(limiters) >= cooldownPruneAt {
			for id, l := range limiters {
				if l.Tokens() >= 1 {
					delete(limiters, id)
				}
			}
		}
		l, ok := limiters[channelID]
		if !ok {
			l = rate.NewLimiter(rate.Every(per), 1)
			limiters[channelID] = l
		}
		return l
	}

	return wrap(func(ctx context.Context, c *command.Context, next cmd.Command, inv *cmd.Invocation) error {
		res := limiter(c.ChannelID()).Reserve()
		if d := res.Delay(); d > 0 {
			res.Cancel()
			return &command.CooldownError{RetryAfter: d}
		}
		return next.Run(ctx, inv)
	})
}

// WithCommandLogger records the invocation in the guild's command history
// after the command ran. Recording failures are logged and never returned.
func WithCommandLogger() cmd.Middleware {
	return wrap(func(ctx context.Context, c *command.Context, next cmd.Command, inv *cmd.Invocation) error {
		err := next.Run(ctx, inv)

		c.Metrics.Command(next.Name(), next.Module())
		if c.GuildID() == "" {
			return err
		}

		author := c.Author()
		rec := storage.CommandHistory{
			ChannelID: c.ChannelID(),
			UserID:    author.ID,
			Username:  author.Username,
			Command:   next.Name(),
			Param:     strings.Join(inv.Args, " "),
			Datetime:  time.Now().UTC(),
		}
		if ch, e := c.Messenger.GuildChannel(ctx, c.GuildID(), c.ChannelID()); e == nil {
			rec.ChannelName = ch.Name
		}
		if g, e := c.Messenger.Guild(ctx, c.GuildID()); e == nil {
			rec.GuildName = g.Name
		}
		if e := c.State.Store.AppendCommandHistory(ctx, c.GuildID(), rec); e != nil {
			c.Logger.Warn().Err(e).Str("command", next.Name()).Msg("failed to record command history")
		}
		return err
	})
}
