package help

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aoi/internal/command"
	"aoi/internal/command/commandtest"

	"github.com/bwmarrin/discordgo"
)

type clearStub struct{}

func (clearStub) Name() string             { return "clear" }
func (clearStub) Module() string           { return "Chat" }
func (clearStub) Description() string      { return "Delete messages" }
func (clearStub) Usage() string            { return "clear <n>" }
func (clearStub) Aliases() []string        { return []string{"purge"} }
func (clearStub) UserPermissions() []int64 { return []int64{discordgo.PermissionManageMessages} }

func (clearStub) Run(context.Context, *command.Context) error { return nil }

func (clearStub) Flags() []command.FlagSpec {
	return []command.FlagSpec{{Name: "from", TakesValue: true, Help: "only this user"}}
}

func setup(t *testing.T) *commandtest.Env {
	t.Helper()
	command.DescribeModule("Chat", "Tools for managing chat channels")
	env := commandtest.NewEnv(t)
	env.Registry.Register(command.Wrap(clearStub{}))
	env.Registry.Register(command.Wrap(&HelpCommand{}))
	env.Registry.Register(command.Wrap(&ModulesCommand{}))
	return env
}

func TestHelp_Overview(t *testing.T) {
	env := setup(t)
	if _, err := env.Run(command.Wrap(&HelpCommand{}), nil); err != nil {
		t.Fatal(err)
	}
	e := env.Messenger.Last().Embed
	if e.Title != "Aoi Help" {
		t.Errorf("title = %q", e.Title)
	}
	for _, want := range []string{"**Chat** (1)", "**Help** (2)"} {
		if !strings.Contains(e.Description, want) {
			t.Errorf("overview missing %q:\n%s", want, e.Description)
		}
	}
}

func TestHelp_Command(t *testing.T) {
	env := setup(t)
	if _, err := env.Run(command.Wrap(&HelpCommand{}), nil, "purge"); err != nil {
		t.Fatal(err)
	}
	e := env.Messenger.Last().Embed
	if e.Title != "clear" {
		t.Fatalf("title = %q", e.Title)
	}
	fields := map[string]string{}
	for _, f := range e.Fields {
		fields[f.Name] = f.Value
	}
	want := map[string]string{
		"Usage":           "`,clear <n>`",
		"Module":          "Chat",
		"Aliases":         "`purge`",
		"Flags":           "`--from <value>` only this user",
		"Requires any of": "Manage Messages",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %q = %q, want %q", k, fields[k], v)
		}
	}
}

func TestHelp_Module(t *testing.T) {
	env := setup(t)
	for _, arg := range []string{"chat", "channels"} {
		if _, err := env.Run(command.Wrap(&HelpCommand{}), nil, arg); err != nil {
			t.Fatalf("help %s: %v", arg, err)
		}
		e := env.Messenger.Last().Embed
		if e.Title != "Chat" || !strings.Contains(e.Description, "`,clear` Delete messages") {
			t.Errorf("help %s = %q / %q", arg, e.Title, e.Description)
		}
	}
}

func TestHelp_Unknown(t *testing.T) {
	env := setup(t)
	_, err := env.Run(command.Wrap(&HelpCommand{}), nil, "nothing")
	var u *command.UsageError
	if !errors.As(err, &u) {
		t.Fatalf("err = %v, want UsageError", err)
	}
}

func TestModules(t *testing.T) {
	env := setup(t)
	if _, err := env.Run(command.Wrap(&ModulesCommand{}), nil); err != nil {
		t.Fatal(err)
	}
	desc := env.Messenger.Last().Embed.Description
	if !strings.Contains(desc, "**Chat** Tools for managing chat channels") {
		t.Errorf("modules = %q", desc)
	}
}
