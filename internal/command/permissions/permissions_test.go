package permissions

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"aoi/internal/command"
	"aoi/internal/command/commandtest"
	"aoi/internal/modules"
	"aoi/internal/permission"
	"aoi/internal/storage"

	"github.com/bwmarrin/discordgo"
)

type stub struct{ name, module string }

func (s stub) Name() string                                { return s.name }
func (s stub) Module() string                              { return s.module }
func (s stub) Description() string                         { return "" }
func (s stub) Run(context.Context, *command.Context) error { return nil }

func newEnv(t *testing.T) *commandtest.Env {
	t.Helper()
	env := commandtest.NewEnv(t)
	for _, s := range []stub{
		{"clear", "Chat"},
		{"prefix", "GuildSettings"},
		{"roll", "Permutations"},
	} {
		env.Registry.Register(command.Wrap(s))
	}
	env.Registry.Register(command.Wrap(&ListCommand{}))
	env.Messenger.Channels["201"] = &discordgo.Channel{ID: "201", GuildID: commandtest.GuildID}
	env.Messenger.Channels["999"] = &discordgo.Channel{ID: "999", GuildID: "elsewhere"}
	return env
}

func chain(t *testing.T, env *commandtest.Env) []string {
	t.Helper()
	rules, err := env.Store.Permissions(context.Background(), commandtest.GuildID)
	if err != nil {
		t.Fatal(err)
	}
	return rules
}

func TestRuleCommand_AddsCanonicalRules(t *testing.T) {
	tests := []struct {
		kind permission.Kind
		args []string
		want string
	}{
		{permission.AllModules, []string{"disable"}, "asm disable"},
		{permission.AllChannelModules, []string{"enable"}, "acm 200 enable"},
		{permission.AllChannelModules, []string{"<#201>", "DISABLE"}, "acm 201 disable"},
		{permission.ChannelModule, []string{"disable", "chat"}, "cm 200 disable Chat"},
		{permission.ChannelModule, []string{"201", "enable", "guild"}, "cm 201 enable GuildSettings"},
		{permission.SingleCommand, []string{"disable", "CLEAR"}, "sc disable clear"},
		{permission.SingleModule, []string{"enable", "Chat"}, "sm enable Chat"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			env := newEnv(t)
			c := command.Wrap(&RuleCommand{kind: tt.kind})
			if _, err := env.Run(c, nil, tt.args...); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			want := []string{"asm enable", tt.want}
			if got := chain(t, env); !reflect.DeepEqual(got, want) {
				t.Errorf("chain = %v, want %v", got, want)
			}
			if !strings.Contains(env.Messenger.Last().Embed.Description, "Added permission `1`") {
				t.Errorf("reply = %q", env.Messenger.Last().Embed.Description)
			}
		})
	}
}

func TestRuleCommand_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		kind  permission.Kind
		args  []string
		check func(error) bool
	}{
		{"missing state", permission.AllModules, nil, isUsage},
		{"bad state", permission.AllModules, []string{"maybe"}, isUsage},
		{"foreign channel", permission.AllChannelModules, []string{"999", "enable"}, isUsage},
		{"not a channel", permission.AllChannelModules, []string{"general", "enable"}, isUsage},
		{"unknown command", permission.SingleCommand, []string{"disable", "nope"}, isUsage},
		{"ambiguous module", permission.SingleModule, []string{"disable", "perm"}, func(err error) bool {
			var amb *modules.AmbiguousError
			return errors.As(err, &amb)
		}},
		{"unknown module", permission.ChannelModule, []string{"disable", "zzz"}, func(err error) bool {
			var nf *modules.NotFoundError
			return errors.As(err, &nf)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			_, err := env.Run(command.Wrap(&RuleCommand{kind: tt.kind}), nil, tt.args...)
			if !tt.check(err) {
				t.Fatalf("Run() error = %v", err)
			}
			if got := chain(t, env); len(got) != 1 {
				t.Errorf("chain changed on error: %v", got)
			}
		})
	}
}

func isUsage(err error) bool {
	var u *command.UsageError
	return errors.As(err, &u)
}

func TestRemoveAndReset(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	for _, r := range []string{"sm disable Chat", "sc disable prefix"} {
		if _, err := env.State.Rules.Add(ctx, commandtest.GuildID, r); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := env.Run(command.Wrap(&RemoveCommand{}), nil, "1"); err != nil {
		t.Fatal(err)
	}
	if got := chain(t, env); !reflect.DeepEqual(got, []string{"asm enable", "sc disable prefix"}) {
		t.Errorf("after remove chain = %v", got)
	}

	_, err := env.Run(command.Wrap(&RemoveCommand{}), nil, "7")
	if !errors.Is(err, storage.ErrRuleIndex) {
		t.Errorf("remove 7 error = %v, want ErrRuleIndex", err)
	}
	if _, err := env.Run(command.Wrap(&RemoveCommand{}), nil, "x"); !isUsage(err) {
		t.Errorf("remove x error = %v", err)
	}

	if _, err := env.Run(command.Wrap(&ResetCommand{}), nil); err != nil {
		t.Fatal(err)
	}
	if got := chain(t, env); !reflect.DeepEqual(got, permission.DefaultChain) {
		t.Errorf("after reset chain = %v", got)
	}
}

func TestListCommand(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	if err := env.State.Rules.Replace(ctx, commandtest.GuildID, []string{"asm enable", "bogus rule", "sc disable clear"}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.Run(command.Wrap(&ListCommand{}), nil); err != nil {
		t.Fatal(err)
	}
	desc := env.Messenger.Last().Embed.Description
	for _, want := range []string{"`0` `asm enable` Enable all commands", "`1` `bogus rule` unparseable", "`2` `sc disable clear` Disable command clear"} {
		if !strings.Contains(desc, want) {
			t.Errorf("listing missing %q:\n%s", want, desc)
		}
	}
}
