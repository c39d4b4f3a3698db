package cmd

import (
	"context"
	"reflect"
	"testing"
)

type stubCommand struct {
	name    string
	module  string
	aliases []string
	ran     int
}

func (s *stubCommand) Name() string        { return s.name }
func (s *stubCommand) Module() string      { return s.module }
func (s *stubCommand) Description() string { return s.name + " command" }
func (s *stubCommand) Aliases() []string   { return s.aliases }
func (s *stubCommand) Run(ctx context.Context, inv *Invocation) error {
	s.ran++
	return nil
}

func TestRegistry_GetIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	clearCmd := &stubCommand{name: "clear", module: "Chat", aliases: []string{"purge"}}
	r.Register(clearCmd)

	for _, name := range []string{"clear", "CLEAR", "Purge"} {
		if got := r.Get(name); got != clearCmd {
			t.Errorf("Get(%q) = %v, want clear", name, got)
		}
	}
	if got := r.Get("missing"); got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}
	if n := len(r.GetAll()); n != 1 {
		t.Errorf("GetAll() returned %d commands, want 1 (aliases must not duplicate)", n)
	}
}

func TestRegistry_Modules(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubCommand{name: "prefix", module: "GuildSettings"})
	r.Register(&stubCommand{name: "clear", module: "Chat"})
	r.Register(&stubCommand{name: "configs", module: "GuildSettings"})
	r.Register(&stubCommand{name: "orphan"})

	want := []string{"Chat", "GuildSettings"}
	if got := r.Modules(); !reflect.DeepEqual(got, want) {
		t.Errorf("Modules() = %v, want %v", got, want)
	}

	var names []string
	for _, c := range r.ByModule("GuildSettings") {
		names = append(names, c.Name())
	}
	if want := []string{"configs", "prefix"}; !reflect.DeepEqual(names, want) {
		t.Errorf("ByModule() = %v, want %v", names, want)
	}
}

func TestApply_OrderAndRoot(t *testing.T) {
	var order []string
	mark := func(tag string) Middleware {
		return func(c Command) Command {
			return Wrap(c, func(ctx context.Context, inv *Invocation) error {
				order = append(order, tag)
				return c.Run(ctx, inv)
			})
		}
	}

	inner := &stubCommand{name: "ping", module: "Help", aliases: []string{"p"}}
	wrapped := Apply(inner, mark("inner"), mark("outer"))

	if err := wrapped.Run(context.Background(), &Invocation{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := []string{"outer", "inner"}; !reflect.DeepEqual(order, want) {
		t.Errorf("middleware order = %v, want %v", order, want)
	}
	if inner.ran != 1 {
		t.Errorf("inner ran %d times, want 1", inner.ran)
	}
	if Root(wrapped) != inner {
		t.Error("Root() did not return the inner command")
	}
	if wrapped.Module() != "Help" {
		t.Errorf("Module() = %q, want Help", wrapped.Module())
	}
	if a, ok := wrapped.(Aliased); !ok || !reflect.DeepEqual(a.Aliases(), []string{"p"}) {
		t.Error("wrapped command lost its aliases")
	}
}
