package discord

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"unicode"

	"aoi/internal/command"
	"aoi/internal/config"
	"aoi/internal/metrics"
	"aoi/internal/prefix"
	"aoi/internal/state"
	"aoi/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const genericFailure = "Something went wrong while running that command."

// Dispatcher turns prefixed messages into command invocations. It holds no
// session so it can be driven by any command.Messenger.
type Dispatcher struct {
	registry *cmd.Registry
	state    *state.State
	cfg      *config.Config
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewDispatcher(registry *cmd.Registry, st *state.State, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		state:    st,
		cfg:      cfg,
		metrics:  m,
		log:      log.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch runs the command msg invokes, if any, and reports whether msg was
// a command. Command errors are answered in the channel, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, msgr command.Messenger, self *discordgo.User, msg *discordgo.Message) (handled bool) {
	if msg.Author == nil || msg.Author.Bot || self == nil || msg.Author.ID == self.ID {
		return false
	}

	rest, ok := prefix.Match(msg.Content, d.state.Prefixes.Resolve(self.ID, msg.GuildID))
	if !ok {
		return false
	}
	used := msg.Content[:len(msg.Content)-len(rest)]
	// The command name must follow a text prefix directly.
	if !isMention(used, self.ID) && strings.TrimLeftFunc(rest, unicode.IsSpace) != rest {
		return false
	}

	tokens := command.Tokenize(rest)
	if len(tokens) == 0 {
		return false
	}
	target := d.registry.Get(tokens[0])
	if target == nil {
		return false
	}

	log := d.log.With().
		Str("guild", msg.GuildID).
		Str("channel", msg.ChannelID).
		Str("user", msg.Author.ID).
		Str("command", target.Name()).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("command panicked")
			d.reply(ctx, msgr, msg.ChannelID, genericFailure)
			handled = true
		}
	}()

	args, flags, err := command.ParseArgs(tokens[1:], command.Meta(target).Flags())
	if err != nil {
		d.fail(ctx, msgr, msg.ChannelID, log, err)
		return true
	}

	c := &command.Context{
		Messenger: msgr,
		Message:   msg,
		BotID:     self.ID,
		BotName:   self.Username,
		Prefix:    displayPrefix(used, self.ID),
		Command:   target.Name(),
		Module:    target.Module(),
		Args:      args,
		Flags:     flags,
		State:     d.state,
		Config:    d.cfg,
		Registry:  d.registry,
		Metrics:   d.metrics,
		Logger:    log,
	}
	if err := target.Run(ctx, &cmd.Invocation{Name: target.Name(), Args: args, Data: c}); err != nil {
		d.fail(ctx, msgr, msg.ChannelID, log, err)
	}
	return true
}

func (d *Dispatcher) fail(ctx context.Context, msgr command.Messenger, channelID string, log zerolog.Logger, err error) {
	text, ok := command.UserMessage(err)
	if !ok {
		log.Error().Err(err).Msg("command failed")
		text = genericFailure
	} else {
		log.Debug().Err(err).Msg("command rejected")
	}
	d.reply(ctx, msgr, channelID, text)
}

func (d *Dispatcher) reply(ctx context.Context, msgr command.Messenger, channelID, text string) {
	if _, err := msgr.SendEmbed(ctx, channelID, command.Error(text)); err != nil {
		d.log.Warn().Err(err).Str("channel", channelID).Msg("failed to send error reply")
	}
}

// displayPrefix renders the prefix for usage hints. A mention prefix is
// shown in its canonical form.
func displayPrefix(used, botID string) string {
	if isMention(used, botID) {
		return fmt.Sprintf("<@%s> ", botID)
	}
	return used
}

func isMention(used, botID string) bool {
	for _, m := range prefix.Mentions(botID) {
		if used == m {
			return true
		}
	}
	return false
}
