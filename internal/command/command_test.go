package command

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"aoi/internal/modules"
	"aoi/internal/permission"
	"aoi/internal/storage"
)

func TestTokenize(t *testing.T) {
	tests := map[string][]string{
		`clear 50 --safe`:           {"clear", "50", "--safe"},
		`  prefix   "a b"  `:        {"prefix", "a b"},
		`sm disable ""`:             {"sm", "disable", ""},
		"":                          nil,
		`cm #general enable "Chat"`: {"cm", "#general", "enable", "Chat"},
	}
	for in, want := range tests {
		if got := Tokenize(in); !reflect.DeepEqual(got, want) {
			t.Errorf("Tokenize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	specs := []FlagSpec{{Name: "safe"}, {Name: "from", TakesValue: true}}

	args, flags, err := ParseArgs([]string{"50", "--safe", "--FROM", "<@1>", "--", "--raw"}, specs)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(args, []string{"50", "--raw"}) {
		t.Errorf("args = %q", args)
	}
	if !reflect.DeepEqual(flags, map[string]string{"safe": "", "from": "<@1>"}) {
		t.Errorf("flags = %v", flags)
	}

	for _, bad := range [][]string{{"--nope"}, {"--from"}} {
		_, _, err := ParseArgs(bad, specs)
		var usage *UsageError
		if !errors.As(err, &usage) {
			t.Errorf("ParseArgs(%q) error = %v, want *UsageError", bad, err)
		}
	}
}

func TestMentionID(t *testing.T) {
	for in, want := range map[string]string{
		"<@123>":  "123",
		"<@!123>": "123",
		"<#55>":   "55",
		"<@&9>":   "9",
		"77":      "77",
		"<oops":   "<oops",
	} {
		if got := MentionID(in); got != want {
			t.Errorf("MentionID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		show bool
	}{
		{Usagef("bad"), true},
		{fmt.Errorf("wrapped: %w", &permission.DeniedError{Index: 1, Rule: "asm disable"}), true},
		{&modules.AmbiguousError{Name: "p", Candidates: []string{"A", "B"}}, true},
		{&modules.NotFoundError{Name: "x"}, true},
		{&MissingPermissionsError{Permissions: []string{"Manage Messages"}}, true},
		{ErrGuildOnly, true},
		{fmt.Errorf("remove: %w", storage.ErrRuleIndex), true},
		{&permission.RuleParseFault{Raw: "x", Reason: "y"}, true},
		{errors.New("database is on fire"), false},
	}
	for _, tt := range tests {
		msg, show := UserMessage(tt.err)
		if show != tt.show || (show && msg == "") {
			t.Errorf("UserMessage(%v) = %q, %v", tt.err, msg, show)
		}
	}
	if msg, _ := UserMessage(&permission.DeniedError{Index: 2, Rule: "sm disable Chat"}); msg != "Permission #2 - sm disable Chat is disallowing you from this command" {
		t.Errorf("denied message = %q", msg)
	}
}
