package player

import (
	"fmt"
	"strconv"

	"github.com/keshon/jukebox/internal/music/track"

	"github.com/bwmarrin/discordgo"
)

const (
	colorPlaying  = 0xb01e66
	colorFinished = 0x5c5c5c
	colorWarning  = 0xf1c40f
	colorError    = 0xe74c3c

	upNextLimit = 5
	titleLimit  = 60
)

// Controller renders the "now playing" embed for s.
func Controller(s Status, size EmbedSize) *discordgo.MessageEmbed {
	t := s.Track
	embed := &discordgo.MessageEmbed{
		Title:       "Now playing",
		Description: fmt.Sprintf("**%s**\n%s", t.DisplayShort(track.DescriptionLimit/2), progress(s)),
		Color:       colorPlaying,
	}

	if size == EmbedSmall {
		return embed
	}

	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}

	if size == EmbedMedium {
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Requester", Value: t.Requester.Mention(), Inline: true},
			{Name: "Queue", Value: queueSummary(s), Inline: true},
		}
		return embed
	}

	embed.Fields = []*discordgo.MessageEmbedField{
		{
			Name: "Player info",
			Value: fmt.Sprintf("Paused: `%s`\nLoop mode: `%s`\nVolume: `%d%%`\nQueue entries: `%d`\nQueue time: `%s`",
				yesNo(s.Paused), onOff(s.Loop), s.Volume, s.QueueLen, track.FormatDuration(s.QueueTime)),
			Inline: true,
		},
		{
			Name: "Track info",
			Value: fmt.Sprintf("Time: `%s`\nAuthor: `%s`\nSource: `%s`\nRequester: %s\nSeekable: `%s`",
				timeField(s), track.Truncate(orUnknown(t.Author), 200), orUnknown(t.Source), t.Requester.Mention(), yesNo(t.IsSeekable && !t.IsStream)),
			Inline: true,
		},
	}
	if len(s.Upcoming) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Up next",
			Value: upNext(s.Upcoming),
		})
	}
	return embed
}

// Finished replaces the controller once a track is over.
func Finished(t track.Track) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: fmt.Sprintf("Finished playing %s", t.Display()),
		Color:       colorFinished,
	}
}

func noticeEmbed(color int, title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
	}
}

func progress(s Status) string {
	state := "▶️"
	if s.Paused {
		state = "⏸"
	}
	return fmt.Sprintf("%s `%s`", state, timeField(s))
}

func timeField(s Status) string {
	if s.Track.IsStream {
		return "live"
	}
	return track.FormatDuration(s.Position) + " / " + track.FormatDuration(s.Track.Length)
}

func queueSummary(s Status) string {
	if s.QueueLen == 0 {
		return "empty"
	}
	entries := "entries"
	if s.QueueLen == 1 {
		entries = "entry"
	}
	return fmt.Sprintf("%d %s, %s", s.QueueLen, entries, track.FormatDuration(s.QueueTime))
}

// upNext lists the first few pending tracks and, when the queue is longer,
// the last one.
func upNext(tracks []track.Track) string {
	var lines []string
	for i, t := range tracks {
		if i == upNextLimit {
			break
		}
		lines = append(lines, upNextLine(i+1, t))
	}
	if len(tracks) > upNextLimit {
		if len(tracks) > upNextLimit+1 {
			lines = append(lines, "...")
		}
		lines = append(lines, upNextLine(len(tracks), tracks[len(tracks)-1]))
	}
	return track.FitLines(lines, track.FieldLimit)
}

func upNextLine(n int, t track.Track) string {
	return "**" + strconv.Itoa(n) + ".** " + t.DisplayShort(titleLimit) + " | `" + t.FormatLength() + "` | " + t.Requester.Mention()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
