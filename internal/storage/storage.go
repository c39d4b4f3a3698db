// Package storage persists per-guild bot state: the ordered permission rule
// chain, the command prefix and a short command history. Two backends are
// provided, a JSON file store and a SQL store for sqlite or postgres.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aoi/internal/permission"

	"github.com/rs/zerolog"
)

const (
	commandHistoryLimit = 20

	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrRuleIndex is returned when a rule index is outside the chain.
	ErrRuleIndex = errors.New("rule index out of range")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

type CommandHistory struct {
	ChannelID   string    `json:"channel_id" yaml:"channel_id"`
	ChannelName string    `json:"channel_name" yaml:"channel_name"`
	GuildName   string    `json:"guild_name" yaml:"guild_name"`
	UserID      string    `json:"user_id" yaml:"user_id"`
	Username    string    `json:"username" yaml:"username"`
	Command     string    `json:"command" yaml:"command"`
	Param       string    `json:"param" yaml:"param"`
	Datetime    time.Time `json:"datetime" yaml:"datetime"`
}

// Store is the persistence boundary. A guild that has never been written is
// created on first access with the default chain and the default prefix.
// The Lookup methods are the exception: they report found=false for an
// unknown guild and never write.
type Store interface {
	Permissions(ctx context.Context, guildID string) ([]string, error)
	LookupPermissions(ctx context.Context, guildID string) (rules []string, found bool, err error)
	SetPermissions(ctx context.Context, guildID string, rules []string) error
	AddPermission(ctx context.Context, guildID, rule string) error
	RemovePermission(ctx context.Context, guildID string, index int) error
	ClearPermissions(ctx context.Context, guildID string) error

	Prefix(ctx context.Context, guildID string) (string, error)
	LookupPrefix(ctx context.Context, guildID string) (prefix string, found bool, err error)
	SetPrefix(ctx context.Context, guildID, prefix string) error
	Prefixes(ctx context.Context) (map[string]string, error)

	AppendCommandHistory(ctx context.Context, guildID string, rec CommandHistory) error
	CommandHistory(ctx context.Context, guildID string) ([]CommandHistory, error)

	DeleteGuild(ctx context.Context, guildID string) error
	Close() error
}

// StatsReporter is implemented by backends that can describe themselves for
// health output.
type StatsReporter interface {
	Stats() map[string]any
}

// Options selects and configures a backend.
type Options struct {
	Driver        string
	Path          string // JSON file or sqlite database
	DSN           string // postgres
	DefaultPrefix string
	Logger        zerolog.Logger
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.DefaultPrefix == "" {
		opts.DefaultPrefix = ","
	}
	switch opts.Driver {
	case DriverJSON, "":
		return NewJSON(opts.Path, opts.DefaultPrefix, opts.Logger)
	case DriverSQLite:
		return NewSQL(ctx, DriverSQLite, opts.Path, opts.DefaultPrefix, opts.Logger)
	case DriverPostgres:
		return NewSQL(ctx, DriverPostgres, opts.DSN, opts.DefaultPrefix, opts.Logger)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
}

func defaultChain() []string {
	return append([]string(nil), permission.DefaultChain...)
}

func removeAt(rules []string, index int) ([]string, error) {
	if index < 0 || index >= len(rules) {
		return nil, fmt.Errorf("%w: %d (chain has %d rules)", ErrRuleIndex, index, len(rules))
	}
	out := make([]string, 0, len(rules)-1)
	out = append(out, rules[:index]...)
	return append(out, rules[index+1:]...), nil
}
