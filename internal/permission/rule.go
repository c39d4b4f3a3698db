// Package permission parses per-guild permission rules and decides whether a
// command invocation is allowed by a guild's ordered rule chain.
//
// Rule grammar, one rule per string, whitespace separated:
//
//	asm <enable|disable>
//	acm <channel_id> <enable|disable>
//	cm  <channel_id> <enable|disable> <module>
//	sc  <enable|disable> <command>
//	sm  <enable|disable> <module>
package permission

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the leading keyword of a rule and selects its scope.
type Kind string

const (
	AllModules        Kind = "asm" // every command, guild-wide
	AllChannelModules Kind = "acm" // every command in one channel
	ChannelModule     Kind = "cm"  // one module in one channel
	SingleCommand     Kind = "sc"  // one command, guild-wide
	SingleModule      Kind = "sm"  // one module, guild-wide
)

const (
	stateEnable  = "enable"
	stateDisable = "disable"
)

// DefaultChain is the chain a guild starts with.
var DefaultChain = []string{"asm enable"}

// Rule is one parsed permission directive.
type Rule struct {
	Kind      Kind
	Enable    bool
	ChannelID string // acm, cm
	Name      string // module for cm/sm, command for sc
}

// ParseRule parses a rule string. The error is always a *RuleParseFault.
func ParseRule(raw string) (Rule, error) {
	tok := strings.Fields(raw)
	if len(tok) == 0 {
		return Rule{}, fault(raw, "empty rule")
	}

	r := Rule{Kind: Kind(tok[0])}
	var err error

	switch r.Kind {
	case AllModules:
		if len(tok) != 2 {
			return Rule{}, fault(raw, "asm takes 1 argument")
		}
		r.Enable, err = parseState(tok[1])
	case AllChannelModules:
		if len(tok) != 3 {
			return Rule{}, fault(raw, "acm takes 2 arguments")
		}
		if r.ChannelID, err = parseChannel(tok[1]); err == nil {
			r.Enable, err = parseState(tok[2])
		}
	case ChannelModule:
		if len(tok) != 4 {
			return Rule{}, fault(raw, "cm takes 3 arguments")
		}
		if r.ChannelID, err = parseChannel(tok[1]); err == nil {
			r.Enable, err = parseState(tok[2])
		}
		r.Name = tok[3]
	case SingleCommand, SingleModule:
		if len(tok) != 3 {
			return Rule{}, fault(raw, fmt.Sprintf("%s takes 2 arguments", r.Kind))
		}
		r.Enable, err = parseState(tok[1])
		r.Name = tok[2]
	default:
		return Rule{}, fault(raw, fmt.Sprintf("unknown rule kind %q", tok[0]))
	}

	if err != nil {
		return Rule{}, fault(raw, err.Error())
	}
	return r, nil
}

// String renders the rule in canonical form.
func (r Rule) String() string {
	state := stateDisable
	if r.Enable {
		state = stateEnable
	}
	switch r.Kind {
	case AllModules:
		return fmt.Sprintf("%s %s", r.Kind, state)
	case AllChannelModules:
		return fmt.Sprintf("%s %s %s", r.Kind, r.ChannelID, state)
	case ChannelModule:
		return fmt.Sprintf("%s %s %s %s", r.Kind, r.ChannelID, state, r.Name)
	default:
		return fmt.Sprintf("%s %s %s", r.Kind, state, r.Name)
	}
}

// Matches reports whether the rule applies to the invocation.
func (r Rule) Matches(inv Invocation) bool {
	switch r.Kind {
	case AllModules:
		return true
	case AllChannelModules:
		return inv.ChannelID == r.ChannelID
	case ChannelModule:
		return inv.ChannelID == r.ChannelID && strings.EqualFold(inv.Module, r.Name)
	case SingleCommand:
		return strings.EqualFold(inv.Command, r.Name)
	case SingleModule:
		return strings.EqualFold(inv.Module, r.Name)
	}
	return false
}

// Describe returns a short human-readable form, used when listing a chain.
func (r Rule) Describe() string {
	verb := "Disable"
	if r.Enable {
		verb = "Enable"
	}
	switch r.Kind {
	case AllModules:
		return verb + " all commands"
	case AllChannelModules:
		return fmt.Sprintf("%s all commands in <#%s>", verb, r.ChannelID)
	case ChannelModule:
		return fmt.Sprintf("%s module %s in <#%s>", verb, r.Name, r.ChannelID)
	case SingleCommand:
		return fmt.Sprintf("%s command %s", verb, r.Name)
	case SingleModule:
		return fmt.Sprintf("%s module %s", verb, r.Name)
	}
	return r.String()
}

func parseState(tok string) (bool, error) {
	switch tok {
	case stateEnable:
		return true, nil
	case stateDisable:
		return false, nil
	}
	return false, fmt.Errorf("state must be %q or %q, got %q", stateEnable, stateDisable, tok)
}

// parseChannel accepts a decimal snowflake and returns it normalised.
func parseChannel(tok string) (string, error) {
	id, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return "", fmt.Errorf("channel id %q is not an integer", tok)
	}
	return strconv.FormatUint(id, 10), nil
}
