package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"aoi/internal/command"

	"github.com/bwmarrin/discordgo"
)

// sessionMessenger implements command.Messenger over a discordgo session.
// Lookups prefer the state cache and fall back to REST.
type sessionMessenger struct {
	s *discordgo.Session
}

var _ command.Messenger = (*sessionMessenger)(nil)

func NewMessenger(s *discordgo.Session) command.Messenger {
	return &sessionMessenger{s: s}
}

func (m *sessionMessenger) Send(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	msg, err := m.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return msg, restErr(err)
}

func (m *sessionMessenger) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	msg, err := m.s.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return msg, restErr(err)
}

func (m *sessionMessenger) EditEmbed(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error {
	_, err := m.s.ChannelMessageEditEmbed(channelID, messageID, embed, discordgo.WithContext(ctx))
	return restErr(err)
}

func (m *sessionMessenger) Delete(ctx context.Context, channelID, messageID string) error {
	return restErr(m.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (m *sessionMessenger) FetchHistory(ctx context.Context, channelID, beforeID string, limit int) ([]*discordgo.Message, error) {
	msgs, err := m.s.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	return msgs, restErr(err)
}

func (m *sessionMessenger) DeleteMessages(ctx context.Context, channelID string, ids []string) error {
	return restErr(m.s.ChannelMessagesBulkDelete(channelID, ids, discordgo.WithContext(ctx)))
}

func (m *sessionMessenger) MemberPermissions(ctx context.Context, guildID, channelID, userID string) (int64, error) {
	if perms, err := m.s.State.UserChannelPermissions(userID, channelID); err == nil {
		return perms, nil
	}
	perms, err := m.s.UserChannelPermissions(userID, channelID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("permissions of %s in %s/%s: %w", userID, guildID, channelID, restErr(err))
	}
	return perms, nil
}

func (m *sessionMessenger) GuildChannel(ctx context.Context, guildID, channelID string) (*discordgo.Channel, error) {
	ch, err := m.s.State.Channel(channelID)
	if err != nil {
		if ch, err = m.s.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
			return nil, restErr(err)
		}
	}
	if ch.GuildID != guildID {
		return nil, fmt.Errorf("channel %s is not in guild %s", channelID, guildID)
	}
	return ch, nil
}

func (m *sessionMessenger) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if g, err := m.s.State.Guild(guildID); err == nil {
		return g, nil
	}
	g, err := m.s.Guild(guildID, discordgo.WithContext(ctx))
	return g, restErr(err)
}

// statusError exposes the HTTP status of a discordgo REST failure so the
// retry helpers can classify it.
type statusError struct {
	err  error
	code int
}

func (e *statusError) Error() string   { return e.err.Error() }
func (e *statusError) Unwrap() error   { return e.err }
func (e *statusError) StatusCode() int { return e.code }

func restErr(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return &statusError{err: err, code: rest.Response.StatusCode}
	}
	var limited *discordgo.RateLimitError
	if errors.As(err, &limited) {
		return &statusError{err: err, code: http.StatusTooManyRequests}
	}
	return err
}
