package docs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aoi/internal/command"
	"aoi/pkg/cmd"
)

type doc struct{ name, module, usage string }

func (d doc) Name() string                                { return d.name }
func (d doc) Module() string                              { return d.module }
func (d doc) Description() string                         { return "does " + d.name }
func (d doc) Usage() string                               { return d.usage }
func (d doc) Run(context.Context, *command.Context) error { return nil }

func registry() *cmd.Registry {
	command.DescribeModule("Beta", "Second module")
	r := cmd.NewRegistry()
	r.Register(command.Wrap(doc{"zeta", "Beta", ""}))
	r.Register(command.Wrap(doc{"alpha", "Beta", "alpha <n>"}))
	r.Register(command.Wrap(doc{"one", "Alpha", ""}))
	return r
}

func TestCommandSections(t *testing.T) {
	got := CommandSections(registry(), ",")
	want := "### Alpha\n\n" +
		"- **`,one`** does one\n" +
		"\n### Beta\n\nSecond module\n\n" +
		"- **`,alpha <n>`** does alpha\n" +
		"- **`,zeta`** does zeta\n"
	if got != want {
		t.Errorf("CommandSections() =\n%s\nwant\n%s", got, want)
	}
}

func TestUpdateReadme(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "README.md")

	if err := UpdateReadme(registry(), "Aoi", ",", filepath.Join(dir, "missing.tmpl"), out); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(out)
	if !strings.HasPrefix(string(data), "# Aoi\n") || !strings.Contains(string(data), "### Beta") {
		t.Errorf("default template output:\n%s", data)
	}

	tmpl := filepath.Join(dir, "README.md.tmpl")
	if err := os.WriteFile(tmpl, []byte("{{.AppName}} has:\n{{.CommandSections}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := UpdateReadme(registry(), "Aoi", "!", tmpl, out); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(out)
	if !strings.HasPrefix(string(data), "Aoi has:\n### Alpha") || !strings.Contains(string(data), "`!one`") {
		t.Errorf("custom template output:\n%s", data)
	}
}
