// Package help registers the Help module: command and module listings.
package help

import (
	"context"
	"fmt"
	"strings"

	"aoi/internal/command"
	"aoi/internal/middleware"
	"aoi/internal/modules"
	"aoi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

const Module = "Help"

func init() {
	command.DescribeModule(Module, "Find out what the bot can do")
	command.RegisterCommand(&HelpCommand{}, middleware.WithCommandLogger(), middleware.WithRulePermissionCheck())
	command.RegisterCommand(&ModulesCommand{}, middleware.WithCommandLogger(), middleware.WithRulePermissionCheck())
}

type HelpCommand struct{}

func (*HelpCommand) Name() string        { return "help" }
func (*HelpCommand) Module() string      { return Module }
func (*HelpCommand) Description() string { return "Show help for a command or module" }
func (*HelpCommand) Usage() string       { return "help [command|module]" }

func (h *HelpCommand) Run(ctx context.Context, c *command.Context) error {
	if len(c.Args) == 0 {
		return c.SendEmbed(ctx, overview(c))
	}

	name := strings.Join(c.Args, " ")
	if target := c.Registry.Get(name); target != nil {
		return c.SendEmbed(ctx, commandHelp(c, target))
	}

	found, err := modules.Find(name, c.LoadedModules(), modules.Options{
		AllowNone:        true,
		CheckDescription: true,
		Descriptions:     command.ModuleDescriptions(),
	})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return command.Usagef("No command or module named `%s`.", name)
	}
	return c.SendEmbed(ctx, moduleHelp(c, found[0]))
}

func overview(c *command.Context) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, mod := range c.LoadedModules() {
		fmt.Fprintf(&b, "**%s** (%d)\n", mod, len(c.Registry.ByModule(mod)))
	}
	fmt.Fprintf(&b, "\nUse `%shelp <module>` to list its commands or `%shelp <command>` for details.", c.Prefix, c.Prefix)
	return command.Info(c.BotName+" Help", b.String())
}

func moduleHelp(c *command.Context, mod string) *discordgo.MessageEmbed {
	var b strings.Builder
	if desc := command.ModuleDescriptions()[mod]; desc != "" {
		b.WriteString(desc + "\n\n")
	}
	for _, cc := range c.Registry.ByModule(mod) {
		fmt.Fprintf(&b, "`%s%s` %s\n", c.Prefix, cc.Name(), cc.Description())
	}
	return command.Info(mod, b.String())
}

func commandHelp(c *command.Context, target cmd.Command) *discordgo.MessageEmbed {
	meta := command.Meta(target)

	usage := meta.Usage()
	if usage == "" {
		usage = target.Name()
	}
	fields := []*discordgo.MessageEmbedField{
		command.Field("Usage", fmt.Sprintf("`%s%s`", c.Prefix, usage)),
		command.Field("Module", target.Module()),
	}
	if a, ok := cmd.Root(target).(cmd.Aliased); ok && len(a.Aliases()) > 0 {
		fields = append(fields, command.Field("Aliases", "`"+strings.Join(a.Aliases(), "`, `")+"`"))
	}
	if flags := meta.Flags(); len(flags) > 0 {
		lines := make([]string, 0, len(flags))
		for _, f := range flags {
			arg := ""
			if f.TakesValue {
				arg = " <value>"
			}
			lines = append(lines, fmt.Sprintf("`--%s%s` %s", f.Name, arg, f.Help))
		}
		fields = append(fields, command.Field("Flags", strings.Join(lines, "\n")))
	}
	if perms := meta.UserPermissions(); len(perms) > 0 {
		names := make([]string, 0, len(perms))
		for _, p := range perms {
			names = append(names, middleware.PermissionName(p))
		}
		fields = append(fields, command.Field("Requires any of", strings.Join(names, ", ")))
	}
	return command.Info(target.Name(), target.Description(), fields...)
}

type ModulesCommand struct{}

func (*ModulesCommand) Name() string        { return "modules" }
func (*ModulesCommand) Module() string      { return Module }
func (*ModulesCommand) Description() string { return "List loaded modules" }

func (*ModulesCommand) Run(ctx context.Context, c *command.Context) error {
	descs := command.ModuleDescriptions()
	var b strings.Builder
	for _, mod := range c.LoadedModules() {
		fmt.Fprintf(&b, "**%s** %s\n", mod, descs[mod])
	}
	return c.SendEmbed(ctx, command.Info("Modules", b.String()))
}
