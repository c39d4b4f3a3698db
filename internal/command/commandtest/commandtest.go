// Package commandtest provides an in-memory Messenger and Context builder
// for command tests.
package commandtest

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"aoi/internal/command"
	"aoi/internal/config"
	"aoi/internal/state"
	"aoi/internal/storage"
	"aoi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Sent is one message the fake sent or edited.
type Sent struct {
	ChannelID string
	MessageID string
	Content   string
	Embed     *discordgo.MessageEmbed
}

// Messenger records everything commands do. Histories are stored newest first.
type Messenger struct {
	mu sync.Mutex

	Sent         []Sent
	Edits        []Sent
	Deleted      []string
	BulkDeleted  [][]string
	HistoryPages int

	History  map[string][]*discordgo.Message
	Perms    map[string]int64 // by user ID
	Channels map[string]*discordgo.Channel
	Guilds   map[string]*discordgo.Guild

	nextID int
}

var _ command.Messenger = (*Messenger)(nil)

func NewMessenger() *Messenger {
	return &Messenger{
		History:  map[string][]*discordgo.Message{},
		Perms:    map[string]int64{},
		Channels: map[string]*discordgo.Channel{},
		Guilds:   map[string]*discordgo.Guild{},
		nextID:   1_000_000,
	}
}

func (m *Messenger) id() string {
	m.nextID++
	return strconv.Itoa(m.nextID)
}

func (m *Messenger) Send(_ context.Context, channelID, content string) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.Sent = append(m.Sent, Sent{ChannelID: channelID, MessageID: id, Content: content})
	return &discordgo.Message{ID: id, ChannelID: channelID, Content: content}, nil
}

func (m *Messenger) SendEmbed(_ context.Context, channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.Sent = append(m.Sent, Sent{ChannelID: channelID, MessageID: id, Embed: embed})
	return &discordgo.Message{ID: id, ChannelID: channelID}, nil
}

func (m *Messenger) EditEmbed(_ context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, Sent{ChannelID: channelID, MessageID: messageID, Embed: embed})
	return nil
}

func (m *Messenger) Delete(_ context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, messageID)
	m.remove(channelID, map[string]bool{messageID: true})
	return nil
}

func (m *Messenger) FetchHistory(_ context.Context, channelID, beforeID string, limit int) ([]*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryPages++

	msgs := m.History[channelID]
	start := 0
	if beforeID != "" {
		start = len(msgs)
		for i, msg := range msgs {
			if msg.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(msgs))
	return append([]*discordgo.Message(nil), msgs[start:end]...), nil
}

func (m *Messenger) DeleteMessages(_ context.Context, channelID string, ids []string) error {
	if len(ids) < 2 || len(ids) > 100 {
		return fmt.Errorf("bulk delete needs 2..100 messages, got %d", len(ids))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BulkDeleted = append(m.BulkDeleted, append([]string(nil), ids...))
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	m.remove(channelID, set)
	return nil
}

func (m *Messenger) remove(channelID string, ids map[string]bool) {
	kept := m.History[channelID][:0]
	for _, msg := range m.History[channelID] {
		if !ids[msg.ID] {
			kept = append(kept, msg)
		}
	}
	m.History[channelID] = kept
}

func (m *Messenger) MemberPermissions(_ context.Context, _, _, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Perms[userID], nil
}

func (m *Messenger) GuildChannel(_ context.Context, guildID, channelID string) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.Channels[channelID]
	if !ok || ch.GuildID != guildID {
		return nil, fmt.Errorf("unknown channel %s", channelID)
	}
	return ch, nil
}

func (m *Messenger) Guild(_ context.Context, guildID string) (*discordgo.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.Guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("unknown guild %s", guildID)
	}
	return g, nil
}

// Last returns the most recent sent message.
func (m *Messenger) Last() Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return Sent{}
	}
	return m.Sent[len(m.Sent)-1]
}

// Fill seeds a channel with n messages by author, one minute apart ending at
// newest. IDs count down from the newest.
func (m *Messenger) Fill(channelID, authorID string, n int, newest time.Time) []*discordgo.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*discordgo.Message, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &discordgo.Message{
			ID:        strconv.Itoa(500_000 + len(m.History[channelID]) + n - i),
			ChannelID: channelID,
			Author:    &discordgo.User{ID: authorID},
			Timestamp: newest.Add(-time.Duration(i) * time.Minute),
		})
	}
	m.History[channelID] = append(m.History[channelID], out...)
	return out
}

// Env is a ready-to-use command environment backed by a JSON store in a
// temporary directory.
type Env struct {
	Messenger *Messenger
	State     *state.State
	Store     storage.Store
	Config    *config.Config
	Registry  *cmd.Registry
}

const (
	GuildID   = "100"
	ChannelID = "200"
	UserID    = "300"
	BotID     = "400"
)

func NewEnv(t testing.TB) *Env {
	t.Helper()
	store, err := storage.NewJSON(filepath.Join(t.TempDir(), "data.json"), ",", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	st := state.New(context.Background(), store, zerolog.Nop(), state.Options{DefaultPrefix: ","})
	t.Cleanup(func() {
		st.Close()
		store.Close()
	})

	m := NewMessenger()
	m.Channels[ChannelID] = &discordgo.Channel{ID: ChannelID, GuildID: GuildID, Name: "general"}
	m.Guilds[GuildID] = &discordgo.Guild{ID: GuildID, Name: "Test Guild"}

	return &Env{
		Messenger: m,
		State:     st,
		Store:     store,
		Config: &config.Config{
			DefaultPrefix:    ",",
			StorageDriver:    "json",
			ClearMaxMessages: 1000,
		},
		Registry: cmd.NewRegistry(),
	}
}

// Context builds a guild message context for the given command invocation.
func (e *Env) Context(c cmd.Command, args ...string) *command.Context {
	return &command.Context{
		Messenger: e.Messenger,
		Message: &discordgo.Message{
			ID:        "900",
			GuildID:   GuildID,
			ChannelID: ChannelID,
			Author:    &discordgo.User{ID: UserID, Username: "tester"},
		},
		BotID:    BotID,
		BotName:  "Aoi",
		Prefix:   ",",
		Command:  c.Name(),
		Module:   c.Module(),
		Args:     args,
		Flags:    map[string]string{},
		State:    e.State,
		Config:   e.Config,
		Registry: e.Registry,
		Logger:   zerolog.Nop(),
	}
}

// Run invokes c with a fresh context built from args and flags.
func (e *Env) Run(c cmd.Command, flags map[string]string, args ...string) (*command.Context, error) {
	ctx := e.Context(c, args...)
	if flags != nil {
		ctx.Flags = flags
	}
	err := c.Run(context.Background(), &cmd.Invocation{Name: c.Name(), Args: args, Data: ctx})
	return ctx, err
}
