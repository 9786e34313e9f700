package utils

import (
	"github.com/bwmarrin/discordgo"
)

// EmbedSender is the part of *discordgo.Session used to post and refresh embeds.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// TruncateField trims a value to Discord's embed field limit.
func TruncateField(value string) string {
	const maxFieldLength = 1024
	if value == "" {
		return "-"
	}
	runes := []rune(value)
	if len(runes) > maxFieldLength {
		return string(runes[:maxFieldLength-3]) + "..."
	}
	return value
}
