package permission

import (
	"strings"

	"github.com/rs/zerolog"
)

const (
	// NoRule is the RuleIndex of a decision no rule contributed to.
	NoRule = -1

	// HelpCommand is always allowed.
	HelpCommand = "help"
	// PermissionsModule owns the commands that edit rules; they are always
	// allowed so a guild can never lock itself out.
	PermissionsModule = "Permissions"
)

// Invocation is the part of a command attempt that rules can match on.
type Invocation struct {
	GuildID   string
	ChannelID string
	Command   string
	Module    string
	Flags     map[string]string
}

// Decision is the outcome of evaluating a chain.
type Decision struct {
	Allow     bool
	RuleIndex int
	Rule      string
}

// Matched reports whether a rule decided the outcome.
func (d Decision) Matched() bool { return d.RuleIndex != NoRule }

// Evaluator decides invocations against rule chains. The zero value is not
// usable; build one with NewEvaluator.
type Evaluator struct {
	log     zerolog.Logger
	onFault func(*RuleParseFault)
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithFaultHook registers a callback for every unparseable rule met during evaluation.
func WithFaultHook(fn func(*RuleParseFault)) Option {
	return func(e *Evaluator) { e.onFault = fn }
}

// NewEvaluator returns an Evaluator logging parse faults to log.
func NewEvaluator(log zerolog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{log: log.With().Str("component", "permission").Logger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scans rules in stored order. Every matching rule overwrites the
// running decision, so the last match in the chain decides. When the final
// decision denies, the returned error is a *DeniedError.
func (e *Evaluator) Evaluate(rules []string, inv Invocation) (Decision, error) {
	d := Decision{Allow: true, RuleIndex: NoRule}

	if inv.Command == "" {
		return d, ErrInvalidInvocation
	}
	if inv.GuildID == "" || Exempt(inv) {
		return d, nil
	}

	for i, raw := range rules {
		rule, err := ParseRule(raw)
		if err != nil {
			e.reportFault(inv.GuildID, i, err.(*RuleParseFault))
			continue
		}
		if rule.Matches(inv) {
			d.Allow = rule.Enable
			d.RuleIndex = i
			d.Rule = raw
		}
	}

	if !d.Allow {
		return d, &DeniedError{Index: d.RuleIndex, Rule: d.Rule}
	}
	return d, nil
}

// Exempt reports whether an invocation bypasses rule evaluation entirely.
func Exempt(inv Invocation) bool {
	return strings.EqualFold(inv.Command, HelpCommand) || inv.Module == PermissionsModule
}

func (e *Evaluator) reportFault(guildID string, index int, f *RuleParseFault) {
	e.log.Warn().
		Str("guild", guildID).
		Int("index", index).
		Str("rule", f.Raw).
		Str("reason", f.Reason).
		Msg("skipping unparseable permission rule")
	if e.onFault != nil {
		e.onFault(f)
	}
}
