package permission

import (
	"errors"
	"fmt"
)

// ErrInvalidInvocation is returned when Evaluate is called without a command name.
var ErrInvalidInvocation = errors.New("permission: invocation has no command")

// DeniedError is returned when the deciding rule of a chain disables the command.
type DeniedError struct {
	Index int
	Rule  string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("Permission #%d - %s is disallowing you from this command", e.Index, e.Rule)
}

// RuleParseFault describes a stored rule string that does not follow the grammar.
type RuleParseFault struct {
	Raw    string
	Reason string
}

func (e *RuleParseFault) Error() string {
	return fmt.Sprintf("unparseable rule %q: %s", e.Raw, e.Reason)
}

func fault(raw, reason string) *RuleParseFault {
	return &RuleParseFault{Raw: raw, Reason: reason}
}
