// Package middleware holds cmd.Middleware used by the Discord commands.
package middleware

import (
	"github.com/keshon/jukebox/internal/command"

	"github.com/bwmarrin/discordgo"
)

// deny replies to a rejected interaction. Replaced in tests.
var deny = func(s *discordgo.Session, e *discordgo.InteractionCreate, msg string) {
	_ = command.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Description: msg,
		Color:       command.EmbedColor,
	})
}
