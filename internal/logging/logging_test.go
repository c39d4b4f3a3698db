package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"":       zerolog.InfoLevel,
		"nope":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_WritesConsoleAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "aoi.log")

	log, closer := New(Options{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 1, Console: &buf})
	log.Debug().Msg("hidden")
	log.Info().Str("guild", "1").Msg("ready")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if out := buf.String(); !strings.Contains(out, "ready") || strings.Contains(out, "hidden") {
		t.Errorf("console output = %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"guild":"1"`) {
		t.Errorf("file output = %q", data)
	}
}
