package prefix

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"aoi/pkg/jobmgr"

	"github.com/rs/zerolog"
)

type fakeLoader struct {
	mu       sync.Mutex
	prefixes map[string]string
	calls    atomic.Int32
	gate     chan struct{}
	err      error
}

func (f *fakeLoader) Prefix(ctx context.Context, guildID string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.prefixes[guildID]; ok {
		return p, nil
	}
	return DefaultPrefix, nil
}

func newResolver(t *testing.T, loader Loader, opts ...Option) *Resolver {
	t.Helper()
	jobs := jobmgr.NewManager(context.Background(), nil)
	t.Cleanup(jobs.Shutdown)
	return NewResolver(NewTable(), loader, jobs, zerolog.Nop(), opts...)
}

func TestResolve_NoGuild(t *testing.T) {
	loader := &fakeLoader{}
	r := newResolver(t, loader)

	got := r.Resolve("99", "")
	want := []string{"<@99> ", "<@!99> ", ","}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
	r.Wait()
	if r.Table().Len() != 0 || loader.calls.Load() != 0 {
		t.Errorf("unguilded resolve touched the table or loader")
	}
}

func TestResolve_KnownGuild(t *testing.T) {
	r := newResolver(t, &fakeLoader{})
	r.Table().Set("42", "!")

	got := r.Resolve("99", "42")
	want := []string{"<@99> ", "<@!99> ", "!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolve_MissLoadsInBackground(t *testing.T) {
	gate := make(chan struct{})
	loader := &fakeLoader{prefixes: map[string]string{"42": "?"}, gate: gate}
	var results []LoadResult
	var mu sync.Mutex
	r := newResolver(t, loader, WithLoadHook(func(res LoadResult) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}))

	got := r.Resolve("99", "42")
	if got[2] != DefaultPrefix {
		t.Fatalf("first Resolve() prefix = %q, want fallback", got[2])
	}
	if _, ok := r.Table().Get("42"); ok {
		t.Fatal("table populated before the load finished")
	}

	// A second miss while the load is pending does not start another.
	r.Resolve("99", "42")

	close(gate)
	r.Wait()

	if p, ok := r.Table().Get("42"); !ok || p != "?" {
		t.Errorf("table entry = %q, %v; want ?", p, ok)
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	if got := r.Resolve("99", "42"); got[2] != "?" {
		t.Errorf("Resolve() after load = %q, want ?", got[2])
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(results, []LoadResult{LoadOK}) {
		t.Errorf("load results = %v", results)
	}
}

func TestResolve_LoadFailureRetries(t *testing.T) {
	loader := &fakeLoader{err: errors.New("db down")}
	r := newResolver(t, loader, WithFallback("$"))

	if got := r.Resolve("1", "7"); got[2] != "$" {
		t.Errorf("fallback = %q, want $", got[2])
	}
	r.Wait()
	if _, ok := r.Table().Get("7"); ok {
		t.Fatal("failed load populated the table")
	}

	r.Resolve("1", "7")
	r.Wait()
	if n := loader.calls.Load(); n != 2 {
		t.Errorf("loader called %d times, want 2", n)
	}
}

func TestResolve_Concurrent(t *testing.T) {
	loader := &fakeLoader{prefixes: map[string]string{"1": "a", "2": "b", "3": "c"}}
	r := newResolver(t, loader)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, g := range []string{"1", "2", "3", ""} {
			wg.Add(1)
			go func(g string) {
				defer wg.Done()
				if got := r.Resolve("9", g); len(got) != 3 {
					t.Errorf("Resolve(%q) returned %d prefixes", g, len(got))
				}
			}(g)
		}
	}
	wg.Wait()
	r.Wait()

	for g, want := range map[string]string{"1": "a", "2": "b", "3": "c"} {
		if p, _ := r.Table().Get(g); p != want {
			t.Errorf("guild %s prefix = %q, want %q", g, p, want)
		}
	}
}

func TestMatch(t *testing.T) {
	prefixes := []string{"<@9> ", "<@!9> ", "!", "!!"}
	tests := []struct {
		content string
		rest    string
		ok      bool
	}{
		{"!help", "help", true},
		{"!!help", "help", true},
		{"<@9> help", "help", true},
		{"<@!9> perms", "perms", true},
		{"help", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		rest, ok := Match(tt.content, prefixes)
		if rest != tt.rest || ok != tt.ok {
			t.Errorf("Match(%q) = %q, %v; want %q, %v", tt.content, rest, ok, tt.rest, tt.ok)
		}
	}
	if _, ok := Match("x", []string{""}); ok {
		t.Error("empty prefix matched")
	}
}

func TestTable_Replace(t *testing.T) {
	tbl := NewTable()
	tbl.Set("1", "a")
	src := map[string]string{"2": "b"}
	tbl.Replace(src)
	src["3"] = "c"

	if _, ok := tbl.Get("1"); ok {
		t.Error("Replace kept old entry")
	}
	if tbl.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tbl.Len())
	}
	tbl.Delete("2")
	if tbl.Len() != 0 {
		t.Error("Delete did not remove entry")
	}
}

func TestResolver_ForgetCancelsPendingLoad(t *testing.T) {
	loader := &fakeLoader{prefixes: map[string]string{"42": "?"}, gate: make(chan struct{})}
	var results []LoadResult
	var mu sync.Mutex
	r := newResolver(t, loader, WithLoadHook(func(res LoadResult) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}))

	if got := r.Resolve("99", "42"); got[2] != r.Fallback() {
		t.Fatalf("Resolve() = %q, want fallback while loading", got)
	}
	r.Forget("42")
	r.Wait()

	if p, ok := r.Table().Get("42"); ok {
		t.Errorf("cancelled load stored prefix %q", p)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(results) != 1 || results[0] != LoadFailed {
		t.Errorf("load results = %v, want one failure", results)
	}
}
