package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"aoi/internal/permission"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// guildDump is the YAML form used by export and import.
type guildDump struct {
	Guild  string   `yaml:"guild"`
	Prefix string   `yaml:"prefix,omitempty"`
	Rules  []string `yaml:"rules"`
}

var errUnknownGuild = errors.New("no stored state for guild")

// lookup reads a guild's chain and prefix without creating the guild.
func (a *app) lookup(ctx context.Context, guildID string) ([]string, string, error) {
	chain, found, err := a.store.LookupPermissions(ctx, guildID)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", fmt.Errorf("%w %s", errUnknownGuild, guildID)
	}
	p, _, err := a.store.LookupPrefix(ctx, guildID)
	return chain, p, err
}

func (a *app) rulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and edit a guild's permission rule chain",
	}
	rules.AddCommand(
		&cobra.Command{
			Use:   "list <guild>",
			Short: "List the chain with indices",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				chain, _, err := a.lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for i, raw := range chain {
					desc := "unparseable, ignored"
					if r, err := permission.ParseRule(raw); err == nil {
						desc = r.Describe()
					}
					a.printf("%3d  %-40s %s\n", i, raw, desc)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <guild> <rule...>",
			Short: "Append a rule, e.g. rules add 123 sm disable Chat",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := permission.ParseRule(strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				if err := a.store.AddPermission(cmd.Context(), args[0], r.String()); err != nil {
					return err
				}
				a.printf("added %q\n", r.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <guild> <index>",
			Short: "Remove the rule at index",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				index, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("index %q is not a number", args[1])
				}
				if err := a.store.RemovePermission(cmd.Context(), args[0], index); err != nil {
					return err
				}
				a.printf("removed rule %d\n", index)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear <guild>",
			Short: "Reset the chain to the default",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.store.ClearPermissions(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printf("reset to %q\n", permission.DefaultChain)
				return nil
			},
		},
		a.checkCmd(),
		a.exportCmd(),
		a.importCmd(),
	)
	return rules
}

func (a *app) checkCmd() *cobra.Command {
	var inv permission.Invocation
	c := &cobra.Command{
		Use:   "check <guild>",
		Short: "Evaluate the chain for an invocation without running the bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.GuildID = args[0]
			chain, found, err := a.store.LookupPermissions(cmd.Context(), inv.GuildID)
			if err != nil {
				return err
			}
			if !found {
				chain = permission.DefaultChain
			}
			d, err := permission.NewEvaluator(zerolog.Nop()).Evaluate(chain, inv)
			switch {
			case err == nil && d.Matched():
				a.printf("allowed by rule %d (%s)\n", d.RuleIndex, d.Rule)
			case err == nil:
				a.printf("allowed, no rule matched\n")
			case d.Matched():
				a.printf("denied by rule %d (%s)\n", d.RuleIndex, d.Rule)
			default:
				return err
			}
			return nil
		},
	}
	f := c.Flags()
	f.StringVar(&inv.ChannelID, "channel", "", "channel the command is used in")
	f.StringVar(&inv.Command, "command", "", "command name")
	f.StringVar(&inv.Module, "module", "", "module of the command")
	_ = c.MarkFlagRequired("command")
	return c
}

func (a *app) exportCmd() *cobra.Command {
	var file string
	c := &cobra.Command{
		Use:   "export <guild>...",
		Short: "Write the chain and prefix of guilds as YAML",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dumps := make([]guildDump, 0, len(args))
			for _, guildID := range args {
				chain, p, err := a.lookup(cmd.Context(), guildID)
				if err != nil {
					return err
				}
				dumps = append(dumps, guildDump{Guild: guildID, Prefix: p, Rules: chain})
			}

			data, err := yaml.Marshal(dumps)
			if err != nil {
				return err
			}
			if file == "" {
				_, err = a.out.Write(data)
				return err
			}
			return os.WriteFile(file, data, 0o644)
		},
	}
	c.Flags().StringVarP(&file, "file", "f", "", "output file, stdout when empty")
	return c
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the chain and prefix of every guild in a YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var dumps []guildDump
			if err := yaml.Unmarshal(data, &dumps); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			// Validate everything before writing anything.
			for _, d := range dumps {
				if d.Guild == "" {
					return fmt.Errorf("%s: entry without guild", args[0])
				}
				for i, raw := range d.Rules {
					if _, err := permission.ParseRule(raw); err != nil {
						return fmt.Errorf("guild %s rule %d: %w", d.Guild, i, err)
					}
				}
			}

			for _, d := range dumps {
				if err := a.store.SetPermissions(cmd.Context(), d.Guild, d.Rules); err != nil {
					return err
				}
				if d.Prefix != "" {
					if err := a.store.SetPrefix(cmd.Context(), d.Guild, d.Prefix); err != nil {
						return err
					}
				}
				a.printf("imported guild %s (%d rules)\n", d.Guild, len(d.Rules))
			}
			return nil
		},
	}
}
