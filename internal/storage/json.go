package storage

import (
	"context"
	"fmt"

	"aoi/datastore"

	"github.com/rs/zerolog"
)

// guildRecord is the JSON document stored per guild.
type guildRecord struct {
	Prefix         string           `json:"prefix"`
	Permissions    []string         `json:"permissions"`
	CommandHistory []CommandHistory `json:"cmd_history"`
}

// JSONStore keeps every guild as one document in a datastore file.
type JSONStore struct {
	ds            *datastore.DataStore
	defaultPrefix string
}

var (
	_ Store         = (*JSONStore)(nil)
	_ StatsReporter = (*JSONStore)(nil)
)

func NewJSON(path, defaultPrefix string, log zerolog.Logger) (*JSONStore, error) {
	if path == "" {
		path = "datastore.json"
	}
	cfg := datastore.DefaultConfig(path)
	cfg.Logger = log
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open json store: %w", err)
	}
	return &JSONStore{ds: ds, defaultPrefix: defaultPrefix}, nil
}

func (s *JSONStore) Close() error {
	return s.ds.Close()
}

// update applies fn to a guild's record, creating it with defaults first.
func (s *JSONStore) update(guildID string, fn func(*guildRecord) error) error {
	var rec guildRecord
	return s.ds.Update(guildID, &rec, func(found bool) error {
		s.fill(&rec, found)
		return fn(&rec)
	})
}

// record reads a guild's record, creating and storing it when missing.
func (s *JSONStore) record(guildID string) (guildRecord, error) {
	var out guildRecord
	err := s.update(guildID, func(rec *guildRecord) error {
		out = *rec
		return nil
	})
	return out, err
}

// peek reads a guild's record without creating it.
func (s *JSONStore) peek(guildID string) (guildRecord, bool, error) {
	var rec guildRecord
	found, err := s.ds.Get(guildID, &rec)
	if err != nil || !found {
		return guildRecord{}, false, err
	}
	s.fill(&rec, true)
	return rec, true, nil
}

func (s *JSONStore) fill(rec *guildRecord, found bool) {
	if !found {
		rec.Permissions = defaultChain()
	}
	if rec.Permissions == nil {
		rec.Permissions = []string{}
	}
	if rec.Prefix == "" {
		rec.Prefix = s.defaultPrefix
	}
	if rec.CommandHistory == nil {
		rec.CommandHistory = []CommandHistory{}
	}
}

func (s *JSONStore) Permissions(_ context.Context, guildID string) ([]string, error) {
	rec, err := s.record(guildID)
	if err != nil {
		return nil, err
	}
	return rec.Permissions, nil
}

func (s *JSONStore) LookupPermissions(_ context.Context, guildID string) ([]string, bool, error) {
	rec, found, err := s.peek(guildID)
	return rec.Permissions, found, err
}

func (s *JSONStore) SetPermissions(_ context.Context, guildID string, rules []string) error {
	return s.update(guildID, func(rec *guildRecord) error {
		rec.Permissions = append([]string{}, rules...)
		return nil
	})
}

func (s *JSONStore) AddPermission(_ context.Context, guildID, rule string) error {
	return s.update(guildID, func(rec *guildRecord) error {
		rec.Permissions = append(rec.Permissions, rule)
		return nil
	})
}

func (s *JSONStore) RemovePermission(_ context.Context, guildID string, index int) error {
	return s.update(guildID, func(rec *guildRecord) error {
		rules, err := removeAt(rec.Permissions, index)
		if err != nil {
			return err
		}
		rec.Permissions = rules
		return nil
	})
}

func (s *JSONStore) ClearPermissions(_ context.Context, guildID string) error {
	return s.update(guildID, func(rec *guildRecord) error {
		rec.Permissions = defaultChain()
		return nil
	})
}

func (s *JSONStore) Prefix(_ context.Context, guildID string) (string, error) {
	rec, err := s.record(guildID)
	if err != nil {
		return "", err
	}
	return rec.Prefix, nil
}

func (s *JSONStore) LookupPrefix(_ context.Context, guildID string) (string, bool, error) {
	rec, found, err := s.peek(guildID)
	return rec.Prefix, found, err
}

func (s *JSONStore) SetPrefix(_ context.Context, guildID, prefix string) error {
	return s.update(guildID, func(rec *guildRecord) error {
		rec.Prefix = prefix
		return nil
	})
}

// Prefixes returns the prefix of every stored guild. Guilds are not created.
func (s *JSONStore) Prefixes(_ context.Context) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range s.ds.Keys() {
		rec, found, err := s.peek(id)
		if err != nil {
			return nil, err
		}
		if found {
			out[id] = rec.Prefix
		}
	}
	return out, nil
}

func (s *JSONStore) AppendCommandHistory(_ context.Context, guildID string, h CommandHistory) error {
	return s.update(guildID, func(rec *guildRecord) error {
		rec.CommandHistory = append(rec.CommandHistory, h)
		if n := len(rec.CommandHistory); n > commandHistoryLimit {
			rec.CommandHistory = rec.CommandHistory[n-commandHistoryLimit:]
		}
		return nil
	})
}

func (s *JSONStore) CommandHistory(_ context.Context, guildID string) ([]CommandHistory, error) {
	rec, found, err := s.peek(guildID)
	if err != nil || !found {
		return []CommandHistory{}, err
	}
	return rec.CommandHistory, nil
}

func (s *JSONStore) Stats() map[string]any {
	st := s.ds.Stats()
	st["driver"] = DriverJSON
	return st
}

func (s *JSONStore) DeleteGuild(_ context.Context, guildID string) error {
	return s.ds.Delete(guildID)
}
