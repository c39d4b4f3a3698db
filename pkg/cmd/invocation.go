// Package cmd provides a transport-agnostic command core: a command is something
// with a name, a module, a description and Run(ctx, invocation). How it is
// registered and dispatched (Discord messages, CLI) is defined by adapters that
// wrap this.
package cmd

import "context"

// Invocation carries the minimal input any command runner can pass: the name
// the command was called by, its arguments and an opaque payload. Adapters set
// Data to their own context (e.g. *command.Context for Discord messages).
type Invocation struct {
	Name string
	Args []string
	Data any
}

// Command is the universal contract: identity plus execution. Permissions,
// flags and transport-specific registration stay in adapters.
type Command interface {
	Name() string
	Module() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Aliased is implemented by commands reachable under more than one name.
type Aliased interface {
	Aliases() []string
}
