package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Messenger is everything commands need from the chat platform. The Discord
// session implements it in internal/discord; tests use an in-memory fake.
type Messenger interface {
	Send(ctx context.Context, channelID, content string) (*discordgo.Message, error)
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	EditEmbed(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error
	Delete(ctx context.Context, channelID, messageID string) error

	// FetchHistory returns up to limit messages older than beforeID, newest
	// first. An empty beforeID starts at the latest message.
	FetchHistory(ctx context.Context, channelID, beforeID string, limit int) ([]*discordgo.Message, error)
	// DeleteMessages bulk deletes between 2 and 100 messages.
	DeleteMessages(ctx context.Context, channelID string, ids []string) error

	MemberPermissions(ctx context.Context, guildID, channelID, userID string) (int64, error)
	GuildChannel(ctx context.Context, guildID, channelID string) (*discordgo.Channel, error)
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
}
