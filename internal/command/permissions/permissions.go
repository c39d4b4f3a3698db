// Package permissions registers the Permissions module, which edits a
// guild's permission rule chain. Its commands are exempt from the chain so a
// guild cannot lock itself out.
package permissions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"aoi/internal/command"
	"aoi/internal/middleware"
	"aoi/internal/modules"
	"aoi/internal/permission"
	"aoi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

const Module = permission.PermissionsModule

var adminPerms = []int64{discordgo.PermissionAdministrator, discordgo.PermissionManageGuild}

func init() {
	command.DescribeModule(Module, "Enable and disable commands and modules per server and channel")

	for _, c := range []command.DiscordCommand{
		&ListCommand{},
		&RuleCommand{kind: permission.AllModules},
		&RuleCommand{kind: permission.AllChannelModules},
		&RuleCommand{kind: permission.ChannelModule},
		&RuleCommand{kind: permission.SingleCommand},
		&RuleCommand{kind: permission.SingleModule},
		&RemoveCommand{},
		&ResetCommand{},
	} {
		command.RegisterCommand(c,
			middleware.WithCommandLogger(),
			middleware.WithUserPermissionCheck(),
			middleware.WithRulePermissionCheck(),
			middleware.WithGuildOnly(),
		)
	}
}

type admin struct{}

func (admin) Module() string           { return Module }
func (admin) UserPermissions() []int64 { return adminPerms }

// ListCommand shows the chain with indices.
type ListCommand struct{ admin }

func (*ListCommand) Name() string { return "perms" }
func (*ListCommand) Description() string {
	return "List the server's permission rules in evaluation order"
}

func (*ListCommand) Run(ctx context.Context, c *command.Context) error {
	rules, err := c.State.Rules.Get(ctx, c.GuildID())
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return c.SendEmbed(ctx, command.Info("Permissions", "No rules. Every command is allowed."))
	}

	var b strings.Builder
	for i, raw := range rules {
		desc := "unparseable, ignored"
		if r, err := permission.ParseRule(raw); err == nil {
			desc = r.Describe()
		}
		fmt.Fprintf(&b, "`%d` `%s` %s\n", i, raw, desc)
	}
	b.WriteString("\nThe last matching rule decides.")
	return c.SendEmbed(ctx, command.Info("Permissions", b.String()))
}

// RuleCommand appends one rule of its kind.
type RuleCommand struct {
	admin
	kind permission.Kind
}

func (r *RuleCommand) Name() string { return string(r.kind) }

func (r *RuleCommand) Description() string {
	switch r.kind {
	case permission.AllModules:
		return "Enable or disable every command in the server"
	case permission.AllChannelModules:
		return "Enable or disable every command in a channel"
	case permission.ChannelModule:
		return "Enable or disable a module in a channel"
	case permission.SingleCommand:
		return "Enable or disable a command in the server"
	default:
		return "Enable or disable a module in the server"
	}
}

func (r *RuleCommand) Usage() string {
	switch r.kind {
	case permission.AllModules:
		return "asm <enable|disable>"
	case permission.AllChannelModules:
		return "acm [#channel] <enable|disable>"
	case permission.ChannelModule:
		return "cm [#channel] <enable|disable> <module>"
	case permission.SingleCommand:
		return "sc <enable|disable> <command>"
	default:
		return "sm <enable|disable> <module>"
	}
}

func (r *RuleCommand) Run(ctx context.Context, c *command.Context) error {
	rule, err := r.build(ctx, c)
	if err != nil {
		return err
	}

	// Canonical form, checked against the grammar before it is stored.
	raw := rule.String()
	if _, err := permission.ParseRule(raw); err != nil {
		return err
	}

	index, err := c.State.Rules.Add(ctx, c.GuildID(), raw)
	if err != nil {
		return err
	}
	c.Logger.Info().Str("guild", c.GuildID()).Str("rule", raw).Int("index", index).Msg("permission rule added")
	return c.SendOK(ctx, "Added permission `%d`: %s", index, rule.Describe())
}

func (r *RuleCommand) build(ctx context.Context, c *command.Context) (permission.Rule, error) {
	args := c.Args
	rule := permission.Rule{Kind: r.kind}

	if r.kind == permission.AllChannelModules || r.kind == permission.ChannelModule {
		rule.ChannelID = c.ChannelID()
		if len(args) > 0 && !isState(args[0]) {
			id, err := resolveChannel(ctx, c, args[0])
			if err != nil {
				return rule, err
			}
			rule.ChannelID = id
			args = args[1:]
		}
	}

	want := 1
	if r.kind == permission.ChannelModule || r.kind == permission.SingleCommand || r.kind == permission.SingleModule {
		want = 2
	}
	if len(args) != want || !isState(args[0]) {
		return rule, command.Usagef("Usage: `%s%s`", c.Prefix, r.Usage())
	}
	rule.Enable = strings.EqualFold(args[0], "enable")

	if want == 2 {
		name, err := r.resolveName(c, args[1])
		if err != nil {
			return rule, err
		}
		rule.Name = name
	}
	return rule, nil
}

func (r *RuleCommand) resolveName(c *command.Context, name string) (string, error) {
	if r.kind == permission.SingleCommand {
		target := c.Registry.Get(name)
		if target == nil {
			return "", command.Usagef("Command `%s` not found.", name)
		}
		return target.Name(), nil
	}
	return modules.FindOne(name, c.LoadedModules())
}

func isState(s string) bool {
	return strings.EqualFold(s, "enable") || strings.EqualFold(s, "disable")
}

func resolveChannel(ctx context.Context, c *command.Context, arg string) (string, error) {
	id := command.MentionID(arg)
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", command.Usagef("`%s` is not a channel.", arg)
	}
	if _, err := c.Messenger.GuildChannel(ctx, c.GuildID(), id); err != nil {
		return "", command.Usagef("Channel `%s` is not in this server.", arg)
	}
	return id, nil
}

// RemoveCommand deletes a rule by index.
type RemoveCommand struct{ admin }

func (*RemoveCommand) Name() string        { return "removeperm" }
func (*RemoveCommand) Description() string { return "Remove a permission rule by its index" }
func (*RemoveCommand) Usage() string       { return "removeperm <index>" }
func (*RemoveCommand) Aliases() []string   { return []string{"rp"} }

func (rc *RemoveCommand) Run(ctx context.Context, c *command.Context) error {
	if len(c.Args) != 1 {
		return command.Usagef("Usage: `%s%s`", c.Prefix, rc.Usage())
	}
	index, err := strconv.Atoi(c.Args[0])
	if err != nil {
		return command.Usagef("`%s` is not a rule index.", c.Args[0])
	}
	removed, err := c.State.Rules.Remove(ctx, c.GuildID(), index)
	if err != nil {
		return err
	}
	return c.SendOK(ctx, "Removed permission `%d`: `%s`", index, removed)
}

// ResetCommand restores the default chain.
type ResetCommand struct{ admin }

func (*ResetCommand) Name() string        { return "resetperms" }
func (*ResetCommand) Description() string { return "Reset the server's permissions to the default" }

func (*ResetCommand) Run(ctx context.Context, c *command.Context) error {
	if err := c.State.Rules.Reset(ctx, c.GuildID()); err != nil {
		return err
	}
	return c.SendOK(ctx, "Permissions reset to `%s`.", strings.Join(permission.DefaultChain, "; "))
}

var _ cmd.Aliased = (*RemoveCommand)(nil)
