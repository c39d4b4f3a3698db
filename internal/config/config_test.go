package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("DEFAULT_PREFIX", "")
	os.Unsetenv("STORAGE_DRIVER")
	os.Unsetenv("DEFAULT_PREFIX")

	cfg, loaded, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded {
		t.Error("loaded = true for a missing file")
	}
	if cfg.DefaultPrefix != "," || cfg.StorageDriver != "json" || cfg.ClearMaxMessages != 1000 {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_DotEnvAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "DEVELOPER_ID=77\nDISCORD_GUILD_BLACKLIST=1, 2,,3\nLOG_MAX_BACKUPS=9\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STORAGE_DRIVER", " SQLite ")
	// godotenv does not override variables that are already set.
	t.Setenv("LOG_MAX_BACKUPS", "4")
	t.Cleanup(func() {
		os.Unsetenv("DEVELOPER_ID")
		os.Unsetenv("DISCORD_GUILD_BLACKLIST")
	})

	cfg, loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded {
		t.Error("loaded = false")
	}
	if cfg.StorageDriver != "sqlite" {
		t.Errorf("StorageDriver = %q", cfg.StorageDriver)
	}
	if cfg.LogMaxBackups != 4 {
		t.Errorf("LogMaxBackups = %d, want environment value 4", cfg.LogMaxBackups)
	}
	if !cfg.IsDeveloper("77") || cfg.IsDeveloper("") {
		t.Error("IsDeveloper mismatch")
	}
	if strings.Join(cfg.GuildBlacklist, "|") != "1|2|3" || !cfg.IsBlacklisted("2") {
		t.Errorf("GuildBlacklist = %q", cfg.GuildBlacklist)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"ok json", Config{StorageDriver: "json", StoragePath: "x.json", DefaultPrefix: ",", ClearMaxMessages: 1}, ""},
		{"postgres without dsn", Config{StorageDriver: "postgres", DefaultPrefix: ",", ClearMaxMessages: 1}, "DATABASE_URL"},
		{"unknown driver", Config{StorageDriver: "mongo", DefaultPrefix: ",", ClearMaxMessages: 1}, "STORAGE_DRIVER"},
		{"blank prefix", Config{StorageDriver: "json", StoragePath: "x", DefaultPrefix: " ", ClearMaxMessages: 1}, "DEFAULT_PREFIX"},
		{"clear limit", Config{StorageDriver: "json", StoragePath: "x", DefaultPrefix: ","}, "CLEAR_MAX_MESSAGES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
