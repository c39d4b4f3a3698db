package command

import (
	"context"

	"aoi/pkg/cmd"
)

// DiscordCommand is what individual message commands implement.
type DiscordCommand interface {
	Name() string
	Module() string
	Description() string
	Run(ctx context.Context, c *Context) error
}

// Usage is implemented by commands that document their arguments.
type Usage interface {
	Usage() string
}

// UserPermissioned lists the member permissions a command needs. Having any
// one of them is enough.
type UserPermissioned interface {
	UserPermissions() []int64
}

// Flagged declares the --flags a command accepts.
type Flagged interface {
	Flags() []FlagSpec
}

// DiscordMeta is exposed by the adapter so middleware can read command
// metadata without knowing the concrete command type.
type DiscordMeta interface {
	Usage() string
	UserPermissions() []int64
	Flags() []FlagSpec
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in
// the universal registry.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

var (
	_ cmd.Command = (*DiscordAdapter)(nil)
	_ DiscordMeta = (*DiscordAdapter)(nil)
)

func (a *DiscordAdapter) Name() string        { return a.Cmd.Name() }
func (a *DiscordAdapter) Module() string      { return a.Cmd.Module() }
func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }

func (a *DiscordAdapter) Aliases() []string {
	if al, ok := a.Cmd.(cmd.Aliased); ok {
		return al.Aliases()
	}
	return nil
}

func (a *DiscordAdapter) Usage() string {
	if u, ok := a.Cmd.(Usage); ok {
		return u.Usage()
	}
	return ""
}

func (a *DiscordAdapter) UserPermissions() []int64 {
	if p, ok := a.Cmd.(UserPermissioned); ok {
		return p.UserPermissions()
	}
	return nil
}

func (a *DiscordAdapter) Flags() []FlagSpec {
	if f, ok := a.Cmd.(Flagged); ok {
		return f.Flags()
	}
	return nil
}

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	c, err := FromInvocation(inv)
	if err != nil {
		return err
	}
	return a.Cmd.Run(ctx, c)
}

// Meta returns the metadata of a possibly wrapped command.
func Meta(c cmd.Command) DiscordMeta {
	if m, ok := cmd.Root(c).(DiscordMeta); ok {
		return m
	}
	return noMeta{}
}

type noMeta struct{}

func (noMeta) Usage() string            { return "" }
func (noMeta) UserPermissions() []int64 { return nil }
func (noMeta) Flags() []FlagSpec        { return nil }

// RegisterCommand wraps a command in the adapter, applies middlewares and
// registers it with the default registry.
func RegisterCommand(discordCmd DiscordCommand, mws ...cmd.Middleware) {
	cmd.DefaultRegistry.Register(Wrap(discordCmd, mws...))
}

// Wrap adapts discordCmd and applies middlewares without registering it.
func Wrap(discordCmd DiscordCommand, mws ...cmd.Middleware) cmd.Command {
	return cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...)
}
