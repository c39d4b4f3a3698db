// Package modules resolves a user-typed module name fragment to the loaded
// command modules it refers to.
package modules

import (
	"fmt"
	"sort"
	"strings"
)

// NotFoundError is returned when no loaded module matches a fragment.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Could not find a module matching `%s`", e.Name)
}

// AmbiguousError is returned when a fragment matches more than one module.
type AmbiguousError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("`%s` matches more than one module: %s", e.Name, strings.Join(e.Candidates, ", "))
}

// Options tunes Find.
type Options struct {
	AllowAmbiguous bool
	AllowNone      bool

	// CheckDescription also matches modules whose description contains the
	// fragment. Descriptions is keyed by module name.
	CheckDescription bool
	Descriptions     map[string]string
}

// Find returns the loaded modules whose names start with name, ignoring case.
// An exact match wins outright and yields a single result.
func Find(name string, loaded []string, opts Options) ([]string, error) {
	needle := strings.ToLower(strings.TrimSpace(name))

	names := append([]string(nil), loaded...)
	sort.Strings(names)

	found := []string{}
	for _, mod := range names {
		lower := strings.ToLower(mod)
		if lower == needle {
			found = []string{mod}
			break
		}
		if strings.HasPrefix(lower, needle) || descriptionMatches(mod, needle, opts) {
			found = append(found, mod)
		}
	}

	switch {
	case len(found) == 0 && !opts.AllowNone:
		return nil, &NotFoundError{Name: name}
	case len(found) > 1 && !opts.AllowAmbiguous:
		return nil, &AmbiguousError{Name: name, Candidates: found}
	}
	return found, nil
}

// FindOne is Find with neither ambiguity nor absence permitted.
func FindOne(name string, loaded []string) (string, error) {
	found, err := Find(name, loaded, Options{})
	if err != nil {
		return "", err
	}
	return found[0], nil
}

func descriptionMatches(mod, needle string, opts Options) bool {
	if !opts.CheckDescription || needle == "" {
		return false
	}
	desc, ok := opts.Descriptions[mod]
	return ok && strings.Contains(strings.ToLower(desc), needle)
}
