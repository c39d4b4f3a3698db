package command

import (
	"context"
	"sort"
	"sync"

	"github.com/bwmarrin/discordgo"
)

var (
	moduleMu    sync.RWMutex
	moduleDescs = map[string]string{}
)

// DescribeModule records the description shown for a module in help.
func DescribeModule(module, description string) {
	moduleMu.Lock()
	moduleDescs[module] = description
	moduleMu.Unlock()
}

// ModuleDescriptions returns a copy of every recorded module description.
func ModuleDescriptions() map[string]string {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	out := make(map[string]string, len(moduleDescs))
	for k, v := range moduleDescs {
		out[k] = v
	}
	return out
}

// LoadedModules returns the modules with at least one registered command.
func (c *Context) LoadedModules() []string {
	mods := c.Registry.Modules()
	sort.Strings(mods)
	return mods
}

// MemberHasAny reports whether the invoking member holds any of perms.
// Administrators and the configured developer always do.
func (c *Context) MemberHasAny(ctx context.Context, perms ...int64) (bool, error) {
	author := c.Author()
	if c.Config != nil && c.Config.IsDeveloper(author.ID) {
		return true, nil
	}
	if c.GuildID() == "" {
		return false, nil
	}
	have, err := c.Messenger.MemberPermissions(ctx, c.GuildID(), c.ChannelID(), author.ID)
	if err != nil {
		return false, err
	}
	if have&discordgo.PermissionAdministrator != 0 {
		return true, nil
	}
	for _, p := range perms {
		if have&p != 0 {
			return true, nil
		}
	}
	return false, nil
}
