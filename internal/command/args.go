package command

import (
	"strings"
	"unicode"
)

// FlagSpec describes one --flag a command accepts.
type FlagSpec struct {
	Name       string
	TakesValue bool
	Help       string
}

// Tokenize splits s on whitespace, keeping "double quoted" runs together.
func Tokenize(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case unicode.IsSpace(r) && !quoted:
			if pending {
				out = append(out, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if pending {
		out = append(out, cur.String())
	}
	return out
}

// ParseArgs separates positional arguments from --flags. A flag that takes
// a value consumes the next token; "--" ends flag parsing.
func ParseArgs(tokens []string, specs []FlagSpec) ([]string, map[string]string, error) {
	known := make(map[string]FlagSpec, len(specs))
	for _, s := range specs {
		known[s.Name] = s
	}

	args := []string{}
	flags := map[string]string{}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok == "--" {
			args = append(args, tokens[i+1:]...)
			break
		}
		if !strings.HasPrefix(tok, "--") || len(tok) == 2 {
			args = append(args, tok)
			continue
		}

		name := strings.ToLower(tok[2:])
		spec, ok := known[name]
		if !ok {
			return nil, nil, Usagef("unknown flag `--%s`", name)
		}
		if !spec.TakesValue {
			flags[name] = ""
			continue
		}
		if i+1 >= len(tokens) {
			return nil, nil, Usagef("flag `--%s` needs a value", name)
		}
		i++
		flags[name] = tokens[i]
	}
	return args, flags, nil
}

// MentionID extracts the ID from a user (<@id>, <@!id>), channel (<#id>) or
// role (<@&id>) mention. Plain IDs are returned unchanged.
func MentionID(s string) string {
	if !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
	for _, p := range []string{"@&", "@!", "@", "#"} {
		if strings.HasPrefix(s, p) {
			return s[len(p):]
		}
	}
	return s
}
