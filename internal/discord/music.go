package discord

import (
	"context"
	"errors"

	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/track"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var _ music.Service = (*Bot)(nil)

func (b *Bot) Player(guildID string) (*player.Player, bool) {
	return b.manager.Get(guildID)
}

func (b *Bot) Join(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*player.Player, error) {
	return b.manager.Join(ctx, guildID, voiceChannelID, textChannelID)
}

func (b *Bot) Leave(guildID string) error {
	return b.manager.Destroy(guildID)
}

func (b *Bot) Search(ctx context.Context, query string) (track.SearchResult, error) {
	return b.resolver.Search(ctx, query)
}

func (b *Bot) UserVoiceChannel(guildID, userID string) (string, error) {
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil {
		if errors.Is(err, discordgo.ErrStateNotFound) {
			return "", nil
		}
		return "", err
	}
	return vs.ChannelID, nil
}

// Listeners counts the users in a voice channel, leaving out bots.
func (b *Bot) Listeners(guildID, voiceChannelID string) int {
	state := b.session.State
	g, err := state.Guild(guildID)
	if err != nil {
		return 0
	}
	self := ""
	if state.User != nil {
		self = state.User.ID
	}

	state.RLock()
	var users []string
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != voiceChannelID || vs.UserID == self {
			continue
		}
		if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
			continue
		}
		users = append(users, vs.UserID)
	}
	state.RUnlock()

	n := 0
	for _, id := range users {
		if m, err := state.Member(guildID, id); err == nil && m.User != nil && m.User.Bot {
			continue
		}
		n++
	}
	return n
}

// guildOptions applies the guild's stored music settings to new sessions.
func (b *Bot) guildOptions(guildID string, base player.Options) player.Options {
	settings, err := b.storage.GetMusicSettings(guildID)
	if err != nil {
		b.log.Warn("Failed to read music settings", zap.String("guild", guildID), zap.Error(err))
		return base
	}
	if settings.EmbedSize != "" {
		base.EmbedSize = player.ParseEmbedSize(settings.EmbedSize)
	}
	if settings.DefaultVolume > 0 {
		base.Volume = settings.DefaultVolume
	}
	return base
}
