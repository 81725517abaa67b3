package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// WithCommandLogger logs every slash command and appends it to the guild's
// command history.
func WithCommandLogger(log *zap.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			started := time.Now()
			err := c.Run(ctx, inv)

			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return err
			}
			e := v.Event
			user := command.InteractionUser(e)
			name := commandLine(e)

			fields := []zap.Field{
				zap.String("command", name),
				zap.String("guild", e.GuildID),
				zap.String("user", user.Username),
				zap.Duration("took", time.Since(started)),
			}
			if err != nil {
				log.Warn("Command failed", append(fields, zap.Error(err))...)
			} else {
				log.Info("Command executed", fields...)
			}

			if v.Storage != nil && e.GuildID != "" {
				entry := storage.CommandHistory{
					ChannelID: e.ChannelID,
					UserID:    user.ID,
					Username:  user.Username,
					Command:   name,
					Datetime:  time.Now(),
				}
				entry.ChannelName, entry.GuildName = names(v.Session, e)
				if herr := v.Storage.AppendCommandToHistory(e.GuildID, entry); herr != nil {
					log.Warn("Failed to record command history", zap.String("command", name), zap.Error(herr))
				}
			}
			return err
		})
	}
}

// commandLine renders "music play" style names including the subcommand.
func commandLine(e *discordgo.InteractionCreate) string {
	if e.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	data := e.ApplicationCommandData()
	parts := []string{data.Name}
	for _, o := range data.Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			parts = append(parts, o.Name)
		}
	}
	return strings.Join(parts, " ")
}

// names looks up channel and guild names in the state cache only.
func names(s *discordgo.Session, e *discordgo.InteractionCreate) (channel, guild string) {
	if s == nil || s.State == nil {
		return "", ""
	}
	if ch, err := s.State.Channel(e.ChannelID); err == nil {
		channel = ch.Name
	}
	if g, err := s.State.Guild(e.GuildID); err == nil {
		guild = g.Name
	}
	return channel, guild
}
