package command

import (
	"context"
	"fmt"

	"aoi/internal/config"
	"aoi/internal/metrics"
	"aoi/internal/permission"
	"aoi/internal/state"
	"aoi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Context is what the Discord adapter hands a command: the triggering
// message, parsed arguments and the process services.
type Context struct {
	Messenger Messenger
	Message   *discordgo.Message
	BotID     string
	BotName   string
	Prefix    string // prefix the message was invoked with

	Command string // canonical command name
	Module  string
	Args    []string
	Flags   map[string]string

	State    *state.State
	Config   *config.Config
	Registry *cmd.Registry
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

func (c *Context) GuildID() string   { return c.Message.GuildID }
func (c *Context) ChannelID() string { return c.Message.ChannelID }

// Author returns the invoking user. It is never nil.
func (c *Context) Author() *discordgo.User {
	if c.Message.Author != nil {
		return c.Message.Author
	}
	return &discordgo.User{}
}

// Invocation returns the part of the context permission rules match on.
func (c *Context) Invocation() permission.Invocation {
	return permission.Invocation{
		GuildID:   c.Message.GuildID,
		ChannelID: c.Message.ChannelID,
		Command:   c.Command,
		Module:    c.Module,
		Flags:     c.Flags,
	}
}

// HasFlag reports whether the flag was given.
func (c *Context) HasFlag(name string) bool {
	_, ok := c.Flags[name]
	return ok
}

func (c *Context) SendOK(ctx context.Context, format string, a ...any) error {
	_, err := c.Messenger.SendEmbed(ctx, c.ChannelID(), OK(fmt.Sprintf(format, a...)))
	return err
}

func (c *Context) SendError(ctx context.Context, format string, a ...any) error {
	_, err := c.Messenger.SendEmbed(ctx, c.ChannelID(), Error(fmt.Sprintf(format, a...)))
	return err
}

func (c *Context) SendEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	_, err := c.Messenger.SendEmbed(ctx, c.ChannelID(), embed)
	return err
}

// FromInvocation extracts the Context the Discord adapter stored in inv.
func FromInvocation(inv *cmd.Invocation) (*Context, error) {
	c, ok := inv.Data.(*Context)
	if !ok || c == nil {
		return nil, fmt.Errorf("command %s: invocation carries %T, want *command.Context", inv.Name, inv.Data)
	}
	return c, nil
}
