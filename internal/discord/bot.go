// Package discord connects the command layer to a Discord gateway session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aoi/internal/command"
	"aoi/internal/config"
	"aoi/internal/metrics"
	"aoi/internal/state"
	"aoi/pkg/cmd"
	"aoi/pkg/retrylimit"
	"aoi/pkg/util"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const warmWorkers = 4

// Bot owns the gateway session and routes its events.
type Bot struct {
	cfg        *config.Config
	state      *state.State
	dispatcher *Dispatcher
	log        zerolog.Logger

	dg        *discordgo.Session
	messenger command.Messenger
	connect   retrylimit.RetryConfig

	// ctx is the Run context, shared by event handlers.
	ctx context.Context
}

func New(cfg *config.Config, st *state.State, registry *cmd.Registry, m *metrics.Metrics, log zerolog.Logger) (*Bot, error) {
	if cfg.DiscordToken == "" {
		return nil, errors.New("DISCORD_TOKEN is not set")
	}
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	log = log.With().Str("component", "discord").Logger()

	// Six attempts doubling from two seconds, as login retries always did.
	connect := retrylimit.DefaultRetryConfig()
	connect.MaxAttempts = 6
	connect.InitialDelay = 2 * time.Second
	connect.MaxDelay = time.Minute
	connect.Jitter = false
	connect.Logger = log

	return &Bot{
		cfg:        cfg,
		state:      st,
		dispatcher: NewDispatcher(registry, st, cfg, m, log),
		log:        log,
		dg:         dg,
		messenger:  NewMessenger(dg),
		connect:    connect,
		ctx:        context.Background(),
	}, nil
}

// Run opens the session and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onMessageCreate)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onGuildDelete)

	err := retrylimit.WithRetryConfig(ctx, func() error {
		if err := b.dg.Open(); err != nil {
			var rest *discordgo.RESTError
			if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == 401 {
				return &retrylimit.FatalError{Err: err}
			}
			return err
		}
		return nil
	}, nil, b.connect)
	if err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	guilds := make([]string, 0, len(r.Guilds))
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		guilds = append(guilds, g.ID)
	}

	// Warm the rule caches so the first command per guild skips the store.
	err := util.Parallel(b.ctx, guilds, warmWorkers, func(ctx context.Context, guildID string) error {
		_, err := b.state.Rules.Get(ctx, guildID)
		return err
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to warm permission rules")
	}

	b.log.Info().Str("user", r.User.Username).Int("guilds", len(guilds)).Msg("discord bot is running")
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID != "" && b.cfg.IsBlacklisted(m.GuildID) {
		return
	}
	b.dispatcher.Dispatch(b.ctx, b.messenger, s.State.User, m.Message)
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	b.log.Info().Str("guild", g.ID).Str("name", g.Name).Msg("guild available")
	// Starts the prefix load without waiting for the first message.
	b.state.Prefixes.Resolve("", g.ID)
}

func (b *Bot) onGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	// Unavailable means an outage, not a removal.
	if g.Unavailable {
		return
	}
	b.log.Info().Str("guild", g.ID).Msg("removed from guild")
	if err := b.state.ForgetGuild(b.ctx, g.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to forget guild")
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.cfg.IsBlacklisted(guildID) {
		return false
	}
	b.log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
	return true
}
