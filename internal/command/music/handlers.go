package music

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/soundcloud"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	errNotInVoice       = errors.New("join a voice channel first")
	errOtherChannel     = errors.New("the player is in another voice channel")
	errAlreadyConnected = errors.New("already connected to a voice channel")
	errSkipAmount       = errors.New("only moderators can skip more than one track")
)

// Share of the listeners whose votes skip a track.
const (
	skipVoteNum = 3
	skipVoteDen = 4
)

type request struct {
	GuildID   string
	ChannelID string
	User      track.Requester
	Sub       string
	Opts      map[string]*discordgo.ApplicationCommandInteractionDataOption
	// Perms are the invoking member's permissions in the channel.
	Perms int64
	Store *storage.Storage
}

func (r request) moderator() bool {
	return r.Perms&(discordgo.PermissionManageServer|discordgo.PermissionAdministrator) != 0
}

func (r request) str(name string) string {
	if o, ok := r.Opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionString {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

func (r request) integer(name string) (int, bool) {
	if o, ok := r.Opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionInteger {
		return int(o.IntValue()), true
	}
	return 0, false
}

func (r request) boolean(name string) (bool, bool) {
	if o, ok := r.Opts[name]; ok && o.Type == discordgo.ApplicationCommandOptionBoolean {
		return o.BoolValue(), true
	}
	return false, false
}

type reply struct {
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Ephemeral  bool
}

func show(embed *discordgo.MessageEmbed) reply { return reply{Embed: embed} }

func (c *MusicCommand) fail(req request, err error) reply {
	if !isUserError(err) {
		c.Log.Error("Music command failed",
			zap.String("guild", req.GuildID),
			zap.String("subcommand", req.Sub),
			zap.Error(err))
	}
	return reply{Embed: errorEmbed(message(err)), Ephemeral: true}
}

func (c *MusicCommand) handle(ctx context.Context, req request) reply {
	var (
		r   reply
		err error
	)
	switch req.Sub {
	case "play":
		r, err = c.play(ctx, req, "")
	case "soundcloud":
		r, err = c.play(ctx, req, soundcloud.SearchPrefix)
	case "join":
		r, err = c.join(ctx, req)
	case "settings":
		r, err = c.settings(req)
	default:
		p, exists := c.Music.Player(req.GuildID)
		if !exists {
			return c.fail(req, player.ErrNotConnected)
		}
		r, err = c.control(req, p)
	}
	if err != nil {
		return c.fail(req, err)
	}
	return r
}

// play queues a link or the first search hit. With a prefix, plain text is
// only searched on that prefix's source.
func (c *MusicCommand) play(ctx context.Context, req request, prefix string) (reply, error) {
	input := req.str("input")
	if input == "" {
		return reply{}, errors.New("input is required")
	}
	query := input
	if prefix != "" && !sources.IsURL(input) {
		query = prefix + ":" + input
	}

	voiceChannel, err := c.Music.UserVoiceChannel(req.GuildID, req.User.ID)
	if err != nil || voiceChannel == "" {
		return reply{}, errNotInVoice
	}
	if p, exists := c.Music.Player(req.GuildID); exists && p.IsConnected() && p.VoiceChannelID() != voiceChannel {
		return reply{}, fmt.Errorf("%w: <#%s>", errOtherChannel, p.VoiceChannelID())
	}

	res, err := c.Music.Search(ctx, query)
	if err != nil {
		return reply{}, err
	}
	tracks := res.Tracks
	if res.Kind != track.ResultPlaylist && len(tracks) > 1 {
		tracks = tracks[:1]
	}
	if len(tracks) == 0 {
		return reply{}, player.ErrNoMatches
	}
	for i := range tracks {
		tracks[i] = tracks[i].WithRequester(req.User)
	}

	p, err := c.Music.Join(ctx, req.GuildID, voiceChannel, req.ChannelID)
	if err != nil {
		return reply{}, err
	}

	now, _ := req.boolean("now")
	next, _ := req.boolean("next")
	switch {
	case now:
		err = p.PlayNow(tracks...)
	case next:
		err = p.EnqueueAt(0, tracks...)
	default:
		err = p.Enqueue(tracks...)
	}
	if err != nil {
		return reply{}, err
	}

	c.Log.Info("Tracks queued",
		zap.String("guild", req.GuildID),
		zap.Stringer("kind", res.Kind),
		zap.Int("count", len(tracks)),
		zap.String("query", input))
	return show(queuedEmbed(res, tracks, now, next)), nil
}

func (c *MusicCommand) control(req request, p *player.Player) (reply, error) {
	q := p.Queue()

	switch req.Sub {
	case "skip":
		return c.skip(req, p)

	case "disconnect":
		channel := p.VoiceChannelID()
		if err := c.Music.Leave(req.GuildID); err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Disconnected", fmt.Sprintf("Left <#%s>.", channel))), nil

	case "stop":
		if err := c.Music.Leave(req.GuildID); err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Stopped", "Playback stopped and the queue was cleared.")), nil

	case "pause":
		if err := p.Pause(); err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Paused", "Use `/music resume` to continue.")), nil

	case "resume":
		if err := p.Resume(); err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Resumed", "")), nil

	case "seek":
		pos, err := parsePosition(req.str("position"))
		if err != nil {
			return reply{}, err
		}
		if err := p.Seek(pos); err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Seeked", "Jumped to `"+track.FormatDuration(pos)+"`.")), nil

	case "forward", "rewind":
		return seekBy(req, p)

	case "replay":
		t, ok := p.Current()
		if !ok {
			return reply{}, player.ErrNoTrackPlaying
		}
		if err := p.Seek(0); err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Replaying", t.DisplayShort(titleLimit*2))), nil

	case "volume":
		level, set := req.integer("level")
		if !set {
			return show(infoEmbed("Volume", fmt.Sprintf("The volume is `%d%%`.", p.Volume()))), nil
		}
		if err := p.SetVolume(level); err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Volume", fmt.Sprintf("Volume set to `%d%%`.", level))), nil

	case "loop":
		enabled, set := req.boolean("enabled")
		if !set {
			enabled = !p.Loop()
		}
		p.SetLoop(enabled)
		return show(infoEmbed("Loop", "Queue looping is now `"+onOff(enabled)+"`.")), nil

	case "shuffle":
		if q.IsEmpty() {
			return reply{}, player.ErrQueueEmpty
		}
		q.Shuffle()
		return show(infoEmbed("Shuffled", fmt.Sprintf("Shuffled %d tracks.", q.Len()))), nil

	case "reverse":
		if q.IsEmpty() {
			return reply{}, player.ErrQueueEmpty
		}
		q.Reverse()
		return show(infoEmbed("Reversed", "The queue order was reversed.")), nil

	case "clear":
		n := q.Len()
		if n == 0 {
			return reply{}, player.ErrQueueEmpty
		}
		q.Clear()
		return show(infoEmbed("Cleared", fmt.Sprintf("Removed %d tracks from the queue.", n))), nil

	case "remove":
		pos, _ := req.integer("position")
		t, err := q.Remove(pos - 1)
		if err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Removed", t.Display())), nil

	case "move":
		from, _ := req.integer("from")
		to, _ := req.integer("to")
		if err := q.Move(from-1, to-1); err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Moved", fmt.Sprintf("Moved track %d to position %d.", from, to))), nil

	case "queue":
		page, set := req.integer("page")
		if !set {
			page = 1
		}
		embed, components := queuePage(p, page)
		return reply{Embed: embed, Components: components}, nil

	case "history":
		return show(historyEmbed(q.History())), nil

	case "nowplaying":
		if _, playing := p.Current(); !playing {
			return reply{}, player.ErrNoTrackPlaying
		}
		return show(player.Controller(p.Status(), p.Options().EmbedSize)), nil

	default:
		return reply{}, fmt.Errorf("unknown subcommand %q", req.Sub)
	}
}

// join connects to the caller's voice channel without queueing anything.
func (c *MusicCommand) join(ctx context.Context, req request) (reply, error) {
	voiceChannel, err := c.Music.UserVoiceChannel(req.GuildID, req.User.ID)
	if err != nil || voiceChannel == "" {
		return reply{}, errNotInVoice
	}
	if p, exists := c.Music.Player(req.GuildID); exists && p.IsConnected() {
		return reply{}, fmt.Errorf("%w: <#%s>", errAlreadyConnected, p.VoiceChannelID())
	}
	if _, err := c.Music.Join(ctx, req.GuildID, voiceChannel, req.ChannelID); err != nil {
		return reply{}, err
	}
	return show(infoEmbed("Joined", fmt.Sprintf("Joined <#%s>. Use `/music play` to queue something.", voiceChannel))), nil
}

// skip lets moderators and whoever queued the track skip outright.
// Everyone else in the channel votes, and three quarters of the listeners
// carry it. Voting twice withdraws the vote.
func (c *MusicCommand) skip(req request, p *player.Player) (reply, error) {
	cur, ok := p.Current()
	if !ok {
		return reply{}, player.ErrNoTrackPlaying
	}
	amount, set := req.integer("amount")
	if !set || amount < 1 {
		amount = 1
	}

	if req.moderator() {
		t, err := p.SkipN(amount)
		if err != nil {
			return reply{}, err
		}
		desc := t.DisplayShort(titleLimit * 2)
		if amount > 1 {
			desc += fmt.Sprintf(" and up to %d queued tracks", amount-1)
		}
		return show(infoEmbed("Skipped", desc)), nil
	}
	if amount > 1 {
		return reply{}, errSkipAmount
	}
	if cur.Requester.ID != "" && cur.Requester.ID == req.User.ID {
		t, err := p.Skip()
		if err != nil {
			return reply{}, err
		}
		return show(infoEmbed("Skipped", t.DisplayShort(titleLimit*2))), nil
	}

	voiceChannel, err := c.Music.UserVoiceChannel(req.GuildID, req.User.ID)
	if err != nil || voiceChannel == "" {
		return reply{}, errNotInVoice
	}
	if voiceChannel != p.VoiceChannelID() {
		return reply{}, fmt.Errorf("%w: <#%s>", errOtherChannel, p.VoiceChannelID())
	}

	v, err := p.VoteSkip(req.User.ID, votesNeeded(c.Music.Listeners(req.GuildID, voiceChannel)))
	if err != nil {
		return reply{}, err
	}
	title := v.Track.DisplayShort(titleLimit * 2)
	switch {
	case v.Skipped:
		return show(infoEmbed("Skipped", fmt.Sprintf("Vote passed, skipped %s.", title))), nil
	case !v.Counted:
		return show(infoEmbed("Vote withdrawn", fmt.Sprintf("`%d/%d` votes to skip %s.", v.Votes, v.Needed, title))), nil
	default:
		return show(infoEmbed("Vote to skip", fmt.Sprintf("`%d/%d` votes to skip %s.", v.Votes, v.Needed, title))), nil
	}
}

func votesNeeded(listeners int) int {
	return max(1, listeners*skipVoteNum/skipVoteDen)
}

// seekBy moves the playhead relative to where it is now. Forward must land
// before the end of the track and rewind no earlier than its start.
func seekBy(req request, p *player.Player) (reply, error) {
	amount, err := parsePosition(req.str("amount"))
	if err != nil {
		return reply{}, err
	}
	cur, ok := p.Current()
	if !ok {
		return reply{}, player.ErrNoTrackPlaying
	}
	if cur.IsStream || !cur.IsSeekable {
		return reply{}, player.ErrNotSeekable
	}

	pos := p.Position()
	title, target := "Rewound", pos-amount
	if req.Sub == "forward" {
		title, target = "Fast-forwarded", pos+amount
		if target >= cur.Length {
			return reply{}, player.ErrInvalidPosition
		}
	} else if target < 0 {
		return reply{}, player.ErrInvalidPosition
	}
	if err := p.Seek(target); err != nil {
		return reply{}, err
	}
	return show(infoEmbed(title, fmt.Sprintf("Now at `%s` of `%s`.", track.FormatDuration(target), track.FormatDuration(cur.Length)))), nil
}

// settings shows or changes the guild's stored player defaults. They apply
// to the next session.
func (c *MusicCommand) settings(req request) (reply, error) {
	if req.Store == nil {
		return reply{}, errors.New("settings storage is unavailable")
	}

	if reset, _ := req.boolean("reset"); reset {
		if err := req.Store.ResetMusicSettings(req.GuildID); err != nil {
			return reply{}, err
		}
	}
	if size := req.str("embed-size"); size != "" {
		if err := req.Store.SetEmbedSize(req.GuildID, size); err != nil {
			return reply{}, err
		}
	}
	if vol, set := req.integer("default-volume"); set {
		if err := req.Store.SetDefaultVolume(req.GuildID, vol); err != nil {
			return reply{}, err
		}
	}

	current, err := req.Store.GetMusicSettings(req.GuildID)
	if err != nil {
		return reply{}, err
	}
	return reply{Embed: settingsEmbed(current), Ephemeral: true}, nil
}

// parsePosition accepts plain seconds, m:ss, h:mm:ss or a Go duration.
func parsePosition(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, player.ErrInvalidPosition
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, player.ErrInvalidPosition
	}
	var total int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (i > 0 && n > 59) {
			return 0, player.ErrInvalidPosition
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

func isUserError(err error) bool {
	for _, target := range []error{
		errNotInVoice,
		errOtherChannel,
		errAlreadyConnected,
		errSkipAmount,
		player.ErrNoTrackPlaying,
		player.ErrQueueEmpty,
		player.ErrNotSeekable,
		player.ErrInvalidPosition,
		player.ErrInvalidVolume,
		player.ErrNoMatches,
		player.ErrSessionClosed,
		player.ErrNotConnected,
		storage.ErrInvalidEmbedSize,
		storage.ErrInvalidVolume,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func message(err error) string {
	switch {
	case errors.Is(err, player.ErrNotConnected):
		return "Nothing is playing here. Use `/music play` to start."
	case errors.Is(err, player.ErrNoMatches):
		return "No matches found."
	case errors.Is(err, player.ErrInvalidPosition):
		return "That position is out of range."
	case isUserError(err):
		return capitalize(err.Error()) + "."
	default:
		return "Something went wrong: " + err.Error()
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
