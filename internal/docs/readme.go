// Package docs renders the command reference from the command registry.
package docs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"aoi/internal/command"
	"aoi/pkg/cmd"
)

const defaultTemplate = `# {{.AppName}}

A Discord bot with per-server permission rules, custom prefixes and chat tools.

## Commands

{{.CommandSections}}`

// CommandSections lists every command grouped by module, modules and
// commands in name order.
func CommandSections(registry *cmd.Registry, prefix string) string {
	descs := command.ModuleDescriptions()

	var buf bytes.Buffer
	for i, mod := range registry.Modules() {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "### %s\n\n", mod)
		if d := descs[mod]; d != "" {
			fmt.Fprintf(&buf, "%s\n\n", d)
		}
		for _, c := range registry.ByModule(mod) {
			usage := command.Meta(c).Usage()
			if usage == "" {
				usage = c.Name()
			}
			fmt.Fprintf(&buf, "- **`%s%s`** %s", prefix, usage, c.Description())
			if a, ok := cmd.Root(c).(cmd.Aliased); ok && len(a.Aliases()) > 0 {
				fmt.Fprintf(&buf, " (aliases: %s)", strings.Join(a.Aliases(), ", "))
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// UpdateReadme executes the template at tmplPath, or a built-in one when the
// file does not exist, and writes the result to outPath.
func UpdateReadme(registry *cmd.Registry, appName, prefix, tmplPath, outPath string) error {
	text := defaultTemplate
	switch data, err := os.ReadFile(tmplPath); {
	case err == nil:
		text = string(data)
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	tmpl, err := template.New("readme").Parse(text)
	if err != nil {
		return fmt.Errorf("parse %s: %w", tmplPath, err)
	}

	var out bytes.Buffer
	err = tmpl.Execute(&out, struct {
		AppName         string
		CommandSections string
	}{appName, CommandSections(registry, prefix)})
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, out.Bytes(), 0o644)
}
