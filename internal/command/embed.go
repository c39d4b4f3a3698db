package command

import "github.com/bwmarrin/discordgo"

const (
	ColorOK    = 0x00aa00
	ColorError = 0xaa0000
	ColorInfo  = 0x2b7bd1
)

func OK(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: description, Color: ColorOK}
}

func Error(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: description, Color: ColorError}
}

func Info(title, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: ColorInfo, Fields: fields}
}

// Field builds a non-inline embed field.
func Field(name, value string) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value}
}
