// Package music implements the /music slash command.
package music

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/track"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Service is what the command needs from the bot.
type Service interface {
	Player(guildID string) (*player.Player, bool)
	Join(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*player.Player, error)
	Leave(guildID string) error
	Search(ctx context.Context, query string) (track.SearchResult, error)
	// UserVoiceChannel returns the voice channel the user is in.
	UserVoiceChannel(guildID, userID string) (string, error)
	// Listeners counts the people, not bots, in a voice channel.
	Listeners(guildID, voiceChannelID string) int
}

type MusicCommand struct {
	Music Service
	Log   *zap.Logger
}

func New(svc Service, log *zap.Logger) *MusicCommand {
	if log == nil {
		log = zap.NewNop()
	}
	return &MusicCommand{Music: svc, Log: log.Named("music")}
}

func (c *MusicCommand) Name() string             { return "music" }
func (c *MusicCommand) Description() string      { return "Control music playback" }
func (c *MusicCommand) Group() string            { return "music" }
func (c *MusicCommand) Category() string         { return "🎵 Music" }
func (c *MusicCommand) UserPermissions() []int64 { return []int64{} }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minVolume := 0.0
	minPos := 1.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a link or search for a track",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "input", Description: "Link or search query", Required: true},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "next", Description: "Put it at the front of the queue"},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "now", Description: "Skip the current track and play it right away"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "soundcloud",
				Description: "Search SoundCloud for a track",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "input", Description: "SoundCloud link or search query", Required: true},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "next", Description: "Put it at the front of the queue"},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "now", Description: "Skip the current track and play it right away"},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "join", Description: "Join your voice channel"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "disconnect", Description: "Leave the voice channel"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track, or vote to skip it",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Tracks to skip (moderators only)", MinValue: &minPos},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "stop", Description: "Stop playback, clear the queue and leave"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "pause", Description: "Pause playback"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "resume", Description: "Resume playback"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "seek",
				Description: "Jump to a position in the current track",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "position", Description: "e.g. 90, 1:30 or 1m30s", Required: true},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "forward",
				Description: "Fast-forward the current track",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "amount", Description: "e.g. 30, 1:00 or 45s", Required: true},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "rewind",
				Description: "Rewind the current track",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "amount", Description: "e.g. 30, 1:00 or 45s", Required: true},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "replay", Description: "Restart the current track"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Show or change the volume",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "level", Description: "0 to 200", MinValue: &minVolume, MaxValue: player.MaxVolume},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "loop",
				Description: "Toggle queue looping",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Turn looping on or off"},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "shuffle", Description: "Shuffle the queue"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "reverse", Description: "Reverse the queue"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "clear", Description: "Remove every queued track"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a track from the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "position", Description: "Queue position", Required: true, MinValue: &minPos},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "move",
				Description: "Move a track within the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "from", Description: "Current position", Required: true, MinValue: &minPos},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "to", Description: "New position", Required: true, MinValue: &minPos},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "page", Description: "Page number", MinValue: &minPos},
				},
			},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "history", Description: "Show recently played tracks"},
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "nowplaying", Description: "Show the current track"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "settings",
				Description: "Show or change the server's music settings",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "embed-size",
						Description: "How much the now playing message shows",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Small", Value: string(player.EmbedSmall)},
							{Name: "Medium", Value: string(player.EmbedMedium)},
							{Name: "Large", Value: string(player.EmbedLarge)},
						},
					},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "default-volume", Description: "Volume new sessions start at", MinValue: &minPos, MaxValue: player.MaxVolume},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "reset", Description: "Forget the server's overrides"},
				},
			},
		},
	}
}

func (c *MusicCommand) Run(ctx context.Context, data interface{}) error {
	v, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := v.Session, v.Event

	opts := e.ApplicationCommandData().Options
	if len(opts) == 0 {
		return command.RespondEmbedEphemeral(s, e, errorEmbed("Missing subcommand."))
	}
	sub := opts[0]
	user := command.InteractionUser(e)
	var perms int64
	if e.Member != nil {
		perms = e.Member.Permissions
	}

	req := request{
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		User:      track.Requester{ID: user.ID, Name: user.Username},
		Sub:       sub.Name,
		Opts:      command.Options(sub.Options),
		Perms:     perms,
		Store:     v.Storage,
	}

	// Lookups and voice joins can take longer than the interaction deadline.
	if sub.Name == "play" || sub.Name == "soundcloud" || sub.Name == "join" {
		if err := command.RespondDeferred(s, e, false); err != nil {
			return fmt.Errorf("failed to send deferred response: %w", err)
		}
		r := c.handle(ctx, req)
		return command.EditResponseEmbed(s, e, r.Embed, r.Components...)
	}

	return respond(s, e, c.handle(ctx, req))
}

// Component pages through the queue message.
func (c *MusicCommand) Component(ctx context.Context, v *command.ComponentInteractionContext) error {
	s, e := v.Session, v.Event
	id := e.MessageComponentData().CustomID

	page, ok := parseQueueButton(id)
	if !ok {
		c.Log.Warn("Unknown component", zap.String("custom_id", id))
		return nil
	}
	p, exists := c.Music.Player(e.GuildID)
	if !exists {
		return command.UpdateMessage(s, e, errorEmbed(message(player.ErrNotConnected)), nil)
	}
	embed, components := queuePage(p, page)
	return command.UpdateMessage(s, e, embed, components)
}

func respond(s *discordgo.Session, e *discordgo.InteractionCreate, r reply) error {
	data := &discordgo.InteractionResponseData{
		Embeds:     []*discordgo.MessageEmbed{r.Embed},
		Components: r.Components,
	}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

const queueButtonPrefix = "music:queue:"

func queueButtonID(page int) string {
	return queueButtonPrefix + strconv.Itoa(page)
}

func parseQueueButton(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, queueButtonPrefix)
	if !ok {
		return 0, false
	}
	page, err := strconv.Atoi(rest)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}
