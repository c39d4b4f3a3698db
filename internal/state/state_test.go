package state

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"aoi/internal/metrics"
	"aoi/internal/permission"
	"aoi/internal/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newState(t *testing.T) (*State, *metrics.Metrics) {
	t.Helper()
	store, err := storage.NewJSON(filepath.Join(t.TempDir(), "data.json"), ",", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	s := New(context.Background(), store, zerolog.Nop(), Options{DefaultPrefix: ",", Metrics: m})
	t.Cleanup(func() {
		s.Close()
		store.Close()
	})
	return s, m
}

func TestRules_WriteThrough(t *testing.T) {
	ctx := context.Background()
	s, _ := newState(t)

	idx, err := s.Rules.Add(ctx, "1", "sm disable Chat")
	if err != nil || idx != 1 {
		t.Fatalf("Add() = %d, %v; want index 1", idx, err)
	}
	removed, err := s.Rules.Remove(ctx, "1", 0)
	if err != nil || removed != "asm enable" {
		t.Fatalf("Remove() = %q, %v", removed, err)
	}

	cached, _ := s.Rules.Get(ctx, "1")
	stored, _ := s.Store.Permissions(ctx, "1")
	if !reflect.DeepEqual(cached, stored) || !reflect.DeepEqual(cached, []string{"sm disable Chat"}) {
		t.Errorf("cache %v and store %v diverged", cached, stored)
	}

	if _, err := s.Rules.Remove(ctx, "1", 5); !errors.Is(err, storage.ErrRuleIndex) {
		t.Errorf("Remove(5) error = %v, want ErrRuleIndex", err)
	}

	if err := s.Rules.Reset(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Rules.Get(ctx, "1"); !reflect.DeepEqual(got, permission.DefaultChain) {
		t.Errorf("after Reset chain = %v", got)
	}
}

func TestRules_SnapshotIsStable(t *testing.T) {
	ctx := context.Background()
	s, _ := newState(t)

	before, _ := s.Rules.Get(ctx, "1")
	if _, err := s.Rules.Add(ctx, "1", "asm disable"); err != nil {
		t.Fatal(err)
	}
	if len(before) != 1 {
		t.Errorf("earlier snapshot changed: %v", before)
	}
}

func TestRules_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s, _ := newState(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Rules.Add(ctx, "9", "sc disable clear"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Rules.Get(ctx, "9")
	stored, _ := s.Store.Permissions(ctx, "9")
	if len(got) != 21 || len(stored) != 21 {
		t.Errorf("cached %d, stored %d rules; want 21", len(got), len(stored))
	}
}

func TestState_Check(t *testing.T) {
	ctx := context.Background()
	s, m := newState(t)
	_, _ = s.Rules.Add(ctx, "1", "sm disable Chat")

	inv := permission.Invocation{GuildID: "1", ChannelID: "2", Command: "clear", Module: "Chat"}
	d, err := s.Check(ctx, inv)
	var denied *permission.DeniedError
	if !errors.As(err, &denied) || d.RuleIndex != 1 {
		t.Fatalf("Check() = %+v, %v; want denial by rule 1", d, err)
	}

	inv.Command, inv.Module = "prefix", "GuildSettings"
	if d, err := s.Check(ctx, inv); err != nil || !d.Allow || d.RuleIndex != 0 {
		t.Errorf("Check() = %+v, %v; want allow by rule 0", d, err)
	}

	// Direct messages never create guild state.
	if _, err := s.Check(ctx, permission.Invocation{Command: "clear"}); err != nil {
		t.Errorf("unguilded Check() error = %v", err)
	}

	if got := testutil.ToFloat64(m.PermissionDecisions.WithLabelValues("deny")); got != 1 {
		t.Errorf("deny metric = %v, want 1", got)
	}
}

func TestState_LoadAndForget(t *testing.T) {
	ctx := context.Background()
	s, _ := newState(t)
	_ = s.Store.SetPrefix(ctx, "5", "!")

	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if got := s.Prefixes.Resolve("bot", "5"); got[len(got)-1] != "!" {
		t.Errorf("Resolve() = %q, want preloaded prefix", got)
	}

	if err := s.SetPrefix(ctx, "5", "?"); err != nil {
		t.Fatal(err)
	}
	if p, _ := s.Prefixes.Table().Get("5"); p != "?" {
		t.Errorf("table prefix = %q, want ?", p)
	}

	if err := s.ForgetGuild(ctx, "5"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Prefixes.Table().Get("5"); ok {
		t.Error("forgotten guild still in prefix table")
	}
	all, _ := s.Store.Prefixes(ctx)
	if _, ok := all["5"]; ok {
		t.Error("forgotten guild still stored")
	}
}

func TestRules_ForgetWaitsForMutation(t *testing.T) {
	ctx := context.Background()
	s, _ := newState(t)

	// Hold the guild lock the way an Add in flight would.
	lock := s.Rules.guildLock("7")
	lock.Lock()

	done := make(chan error, 1)
	go func() { done <- s.ForgetGuild(ctx, "7") }()

	select {
	case err := <-done:
		t.Fatalf("ForgetGuild() returned %v while a mutation held the lock", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := s.Store.AddPermission(ctx, "7", "sc disable clear"); err != nil {
		t.Fatal(err)
	}
	lock.Unlock()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if _, found, _ := s.Store.LookupPermissions(ctx, "7"); found {
		t.Error("guild written by the in-flight mutation survived ForgetGuild")
	}
	if s.Rules.guildLock("7") != lock {
		t.Error("ForgetGuild replaced the guild lock")
	}
}

func TestRules_LookupDoesNotCreate(t *testing.T) {
	ctx := context.Background()
	s, _ := newState(t)

	if rules, found, err := s.Rules.Lookup(ctx, "8"); err != nil || found || rules != nil {
		t.Fatalf("Lookup(unknown) = %v, %v, %v", rules, found, err)
	}
	if all, _ := s.Store.Prefixes(ctx); len(all) != 0 {
		t.Errorf("Lookup stored guilds: %v", all)
	}

	if _, err := s.Rules.Add(ctx, "8", "sm disable Chat"); err != nil {
		t.Fatal(err)
	}
	rules, found, err := s.Rules.Lookup(ctx, "8")
	if err != nil || !found || !reflect.DeepEqual(rules, []string{"asm enable", "sm disable Chat"}) {
		t.Errorf("Lookup(known) = %v, %v, %v", rules, found, err)
	}
}
