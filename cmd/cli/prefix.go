package main

import (
	"strings"

	"aoi/pkg/util"

	"github.com/spf13/cobra"
)

func (a *app) prefixCmd() *cobra.Command {
	prefix := &cobra.Command{
		Use:   "prefix",
		Short: "Show or change a guild's command prefix",
	}
	prefix.AddCommand(
		&cobra.Command{
			Use:   "get <guild>",
			Short: "Print the guild's prefix",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, p, err := a.lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.printf("%s\n", p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <guild> <prefix>",
			Short: "Change the guild's prefix",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				p := strings.Join(args[1:], " ")
				if err := a.store.SetPrefix(cmd.Context(), args[0], p); err != nil {
					return err
				}
				a.printf("prefix of %s set to %q\n", args[0], p)
				return nil
			},
		},
	)
	return prefix
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <guild>",
		Short: "Print the guild's most recent commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.store.CommandHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, r := range recs {
				a.printf("%s  #%-20s %-20s %s %s\n",
					util.FormatDate(r.Datetime, "YYYY-MM-DD hh:mm:ss"), r.ChannelName, r.Username, r.Command, r.Param)
			}
			return nil
		},
	}
}
