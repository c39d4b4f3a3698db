// Package settings registers the GuildSettings module: the per-server prefix
// and a summary of the server's configuration.
package settings

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"aoi/internal/command"
	"aoi/internal/middleware"

	"github.com/bwmarrin/discordgo"
)

const Module = "GuildSettings"

// MaxPrefixLen bounds a custom prefix, in runes.
const MaxPrefixLen = 32

func init() {
	command.DescribeModule(Module, "Change and view the bot's configuration in your server")
	for _, c := range []command.DiscordCommand{&PrefixCommand{}, &ConfigCommand{}, &ConfigsCommand{}} {
		command.RegisterCommand(c,
			middleware.WithCommandLogger(),
			middleware.WithUserPermissionCheck(),
			middleware.WithRulePermissionCheck(),
			middleware.WithGuildOnly(),
		)
	}
}

// current returns the guild's prefix, reading it from the store when the
// table has not loaded it yet.
func current(ctx context.Context, c *command.Context) (string, error) {
	if p, ok := c.State.Prefixes.Table().Get(c.GuildID()); ok {
		return p, nil
	}
	p, err := c.State.Store.Prefix(ctx, c.GuildID())
	if err != nil {
		return "", err
	}
	c.State.Prefixes.Table().Set(c.GuildID(), p)
	return p, nil
}

func setPrefix(ctx context.Context, c *command.Context, p string) error {
	p = strings.TrimSpace(p)
	switch {
	case p == "":
		return command.Usagef("The prefix cannot be empty.")
	case utf8.RuneCountInString(p) > MaxPrefixLen:
		return command.Usagef("The prefix can be at most %d characters long.", MaxPrefixLen)
	}
	if err := c.State.SetPrefix(ctx, c.GuildID(), p); err != nil {
		return err
	}
	c.Logger.Info().Str("guild", c.GuildID()).Str("prefix", p).Msg("prefix changed")
	return c.SendOK(ctx, "Prefix set to `%s`", p)
}

type PrefixCommand struct{}

func (*PrefixCommand) Name() string        { return "prefix" }
func (*PrefixCommand) Module() string      { return Module }
func (*PrefixCommand) Description() string { return "Show or set the bot's prefix" }
func (*PrefixCommand) Usage() string       { return "prefix [new prefix]" }

func (*PrefixCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageGuild}
}

func (*PrefixCommand) Run(ctx context.Context, c *command.Context) error {
	if len(c.Args) == 0 {
		p, err := current(ctx, c)
		if err != nil {
			return err
		}
		return c.SendOK(ctx, "Prefix is set to `%s`", p)
	}
	return setPrefix(ctx, c, strings.Join(c.Args, " "))
}

// ConfigCommand changes one named setting.
type ConfigCommand struct{}

func (*ConfigCommand) Name() string        { return "config" }
func (*ConfigCommand) Module() string      { return Module }
func (*ConfigCommand) Description() string { return "Set a server setting" }
func (*ConfigCommand) Usage() string       { return "config <setting> <value>" }

func (*ConfigCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageGuild}
}

func (cc *ConfigCommand) Run(ctx context.Context, c *command.Context) error {
	if len(c.Args) < 2 {
		return command.Usagef("Usage: `%s%s`", c.Prefix, cc.Usage())
	}
	switch setting := strings.ToLower(c.Args[0]); setting {
	case "prefix":
		return setPrefix(ctx, c, strings.Join(c.Args[1:], " "))
	default:
		return command.Usagef("Unknown setting `%s`. Available: `prefix`.", setting)
	}
}

type ConfigsCommand struct{}

func (*ConfigsCommand) Name() string        { return "configs" }
func (*ConfigsCommand) Module() string      { return Module }
func (*ConfigsCommand) Description() string { return "List the server's current settings" }

func (*ConfigsCommand) Run(ctx context.Context, c *command.Context) error {
	rules, err := c.State.Rules.Get(ctx, c.GuildID())
	if err != nil {
		return err
	}
	p, err := current(ctx, c)
	if err != nil {
		return err
	}
	return c.SendEmbed(ctx, command.Info(c.BotName+" Configs", "",
		command.Field("Prefix", fmt.Sprintf("`%s`", p)),
		command.Field("Permission rules", fmt.Sprintf("%d (see `%sperms`)", len(rules), c.Prefix)),
	))
}
