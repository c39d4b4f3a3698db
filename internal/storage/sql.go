package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed migrations
var migrationsFS embed.FS

// SQLStore keeps guild state in sqlite or postgres. Rules are stored one row
// per rule with an explicit position.
type SQLStore struct {
	db            *sql.DB
	driver        string
	defaultPrefix string
	log           zerolog.Logger
}

var (
	_ Store         = (*SQLStore)(nil)
	_ StatsReporter = (*SQLStore)(nil)
)

// NewSQL opens the database, applies the embedded migrations and returns a
// ready store. driver is DriverSQLite or DriverPostgres.
func NewSQL(ctx context.Context, driver, dsn, defaultPrefix string, log zerolog.Logger) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s store: empty data source", driver)
	}

	sqlDriver := "postgres"
	if driver == DriverSQLite {
		sqlDriver = "sqlite3"
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// One writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStore{
		db:            db,
		driver:        driver,
		defaultPrefix: defaultPrefix,
		log:           log.With().Str("component", "storage").Str("driver", driver).Logger(),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	var (
		drv  database.Driver
		name string
		err  error
	)
	switch s.driver {
	case DriverSQLite:
		name = "sqlite3"
		drv, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	case DriverPostgres:
		name = "postgres"
		drv, err = migratepg.WithInstance(s.db, &migratepg.Config{})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, s.driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+s.driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, drv)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	v, _, _ := m.Version()
	s.log.Debug().Uint("version", v).Msg("schema up to date")
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// q rewrites ? placeholders to $n for postgres.
func (s *SQLStore) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ensureGuild creates the guild row with its default chain when missing.
func (s *SQLStore) ensureGuild(ctx context.Context, tx *sql.Tx, guildID string) error {
	res, err := tx.ExecContext(ctx,
		s.q(`INSERT INTO guilds (guild_id, prefix) VALUES (?, ?) ON CONFLICT (guild_id) DO NOTHING`),
		guildID, s.defaultPrefix)
	if err != nil {
		return fmt.Errorf("create guild %s: %w", guildID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return err
	}
	return s.writeRules(ctx, tx, guildID, defaultChain())
}

func (s *SQLStore) readRules(ctx context.Context, tx *sql.Tx, guildID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		s.q(`SELECT rule FROM permission_rules WHERE guild_id = ? ORDER BY position`), guildID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := []string{}
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *SQLStore) writeRules(ctx context.Context, tx *sql.Tx, guildID string, rules []string) error {
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM permission_rules WHERE guild_id = ?`), guildID); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	for i, r := range rules {
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO permission_rules (guild_id, position, rule) VALUES (?, ?, ?)`),
			guildID, i, r); err != nil {
			return fmt.Errorf("insert rule %d: %w", i, err)
		}
	}
	return nil
}

// mutateRules runs fn over the current chain and stores its result.
func (s *SQLStore) mutateRules(ctx context.Context, guildID string, fn func([]string) ([]string, error)) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureGuild(ctx, tx, guildID); err != nil {
			return err
		}
		rules, err := s.readRules(ctx, tx, guildID)
		if err != nil {
			return err
		}
		next, err := fn(rules)
		if err != nil {
			return err
		}
		return s.writeRules(ctx, tx, guildID, next)
	})
}

func (s *SQLStore) Permissions(ctx context.Context, guildID string) ([]string, error) {
	var rules []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureGuild(ctx, tx, guildID); err != nil {
			return err
		}
		var err error
		rules, err = s.readRules(ctx, tx, guildID)
		return err
	})
	return rules, err
}

func (s *SQLStore) LookupPermissions(ctx context.Context, guildID string) ([]string, bool, error) {
	var (
		rules []string
		found bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM guilds WHERE guild_id = ?`), guildID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		rules, err = s.readRules(ctx, tx, guildID)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("rules for %s: %w", guildID, err)
	}
	return rules, found, nil
}

func (s *SQLStore) SetPermissions(ctx context.Context, guildID string, rules []string) error {
	return s.mutateRules(ctx, guildID, func([]string) ([]string, error) { return rules, nil })
}

func (s *SQLStore) AddPermission(ctx context.Context, guildID, rule string) error {
	return s.mutateRules(ctx, guildID, func(cur []string) ([]string, error) {
		return append(cur, rule), nil
	})
}

func (s *SQLStore) RemovePermission(ctx context.Context, guildID string, index int) error {
	return s.mutateRules(ctx, guildID, func(cur []string) ([]string, error) {
		return removeAt(cur, index)
	})
}

func (s *SQLStore) ClearPermissions(ctx context.Context, guildID string) error {
	return s.mutateRules(ctx, guildID, func([]string) ([]string, error) { return defaultChain(), nil })
}

func (s *SQLStore) Prefix(ctx context.Context, guildID string) (string, error) {
	var p string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureGuild(ctx, tx, guildID); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, s.q(`SELECT prefix FROM guilds WHERE guild_id = ?`), guildID).Scan(&p)
	})
	if err != nil {
		return "", fmt.Errorf("prefix for %s: %w", guildID, err)
	}
	return p, nil
}

func (s *SQLStore) LookupPrefix(ctx context.Context, guildID string) (string, bool, error) {
	var p string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT prefix FROM guilds WHERE guild_id = ?`), guildID).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("prefix for %s: %w", guildID, err)
	}
	return p, true, nil
}

func (s *SQLStore) SetPrefix(ctx context.Context, guildID, prefix string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureGuild(ctx, tx, guildID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q(`UPDATE guilds SET prefix = ? WHERE guild_id = ?`), prefix, guildID)
		return err
	})
}

func (s *SQLStore) Prefixes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guild_id, prefix FROM guilds`)
	if err != nil {
		return nil, fmt.Errorf("query prefixes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, p string
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendCommandHistory(ctx context.Context, guildID string, h CommandHistory) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureGuild(ctx, tx, guildID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO command_history
				(guild_id, channel_id, channel_name, guild_name, user_id, username, command, param, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			guildID, h.ChannelID, h.ChannelName, h.GuildName, h.UserID, h.Username, h.Command, h.Param, h.Datetime.UTC(),
		); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		_, err := tx.ExecContext(ctx, s.q(`
			DELETE FROM command_history
			WHERE guild_id = ? AND id NOT IN (
				SELECT id FROM command_history WHERE guild_id = ? ORDER BY id DESC LIMIT ?
			)`), guildID, guildID, commandHistoryLimit)
		return err
	})
}

func (s *SQLStore) CommandHistory(ctx context.Context, guildID string) ([]CommandHistory, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT channel_id, channel_name, guild_name, user_id, username, command, param, created_at
		FROM command_history WHERE guild_id = ? ORDER BY id`), guildID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []CommandHistory{}
	for rows.Next() {
		var h CommandHistory
		if err := rows.Scan(&h.ChannelID, &h.ChannelName, &h.GuildName, &h.UserID, &h.Username,
			&h.Command, &h.Param, &h.Datetime); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLStore) Stats() map[string]any {
	st := s.db.Stats()
	return map[string]any{
		"driver":           s.driver,
		"open_connections": st.OpenConnections,
		"in_use":           st.InUse,
		"idle":             st.Idle,
	}
}

func (s *SQLStore) DeleteGuild(ctx context.Context, guildID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"command_history", "permission_rules", "guilds"} {
			if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE guild_id = ?`), guildID); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		return nil
	})
}
