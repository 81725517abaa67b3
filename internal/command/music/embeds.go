package music

import (
	"fmt"
	"time"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/internal/storage"

	"github.com/bwmarrin/discordgo"
)

const (
	queuePageSize = 10
	historyLimit  = 10
	titleLimit    = 60
	colorError    = 0xe74c3c
)

func errorEmbed(msg string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "🎵 Error", Description: msg, Color: colorError}
}

func infoEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "🎵 " + title, Description: description, Color: command.EmbedColor}
}

func queuedEmbed(res track.SearchResult, tracks []track.Track, now, next bool) *discordgo.MessageEmbed {
	where := "Added to queue"
	switch {
	case now:
		where = "Playing now"
	case next:
		where = "Playing next"
	}

	if res.Kind == track.ResultPlaylist {
		name := res.Name
		if name == "" {
			name = "playlist"
		}
		if res.URL != "" {
			name = fmt.Sprintf("[%s](%s)", name, res.URL)
		}
		return infoEmbed(where, fmt.Sprintf("Queued **%d** tracks from %s (`%s`).",
			len(tracks), name, track.FormatDuration(sum(tracks))))
	}

	t := tracks[0]
	embed := infoEmbed(where, fmt.Sprintf("**%s**\n`%s` | requested by %s", t.DisplayShort(titleLimit*2), t.FormatLength(), t.Requester.Mention()))
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	return embed
}

// queuePage renders one page of pending tracks with navigation buttons.
// Out-of-range pages are clamped.
func queuePage(p *player.Player, page int) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	tracks := p.Queue().Tracks()
	pages := max(1, (len(tracks)+queuePageSize-1)/queuePageSize)
	page = max(1, min(page, pages))

	var lines []string
	if cur, playing := p.Current(); playing {
		lines = append(lines, fmt.Sprintf("**Now:** %s | `%s`", cur.DisplayShort(titleLimit), cur.FormatLength()), "")
	}
	if len(tracks) == 0 {
		lines = append(lines, "The queue is empty.")
	}
	start := (page - 1) * queuePageSize
	for i, t := range tracks[start:min(start+queuePageSize, len(tracks))] {
		lines = append(lines, trackLine(start+i+1, t))
	}

	embed := infoEmbed("Queue", track.FitLines(lines, track.DescriptionLimit))
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Page %d/%d | %d tracks | %s | loop %s",
			page, pages, len(tracks), track.FormatDuration(sum(tracks)), onOff(p.Loop())),
	}

	if pages == 1 {
		return embed, nil
	}
	return embed, []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Previous", Style: discordgo.SecondaryButton, CustomID: queueButtonID(page - 1), Disabled: page == 1},
			discordgo.Button{Label: "Next", Style: discordgo.SecondaryButton, CustomID: queueButtonID(page + 1), Disabled: page == pages},
		}},
	}
}

// historyEmbed lists the most recent tracks first.
func historyEmbed(history []track.Track) *discordgo.MessageEmbed {
	if len(history) == 0 {
		return infoEmbed("History", "Nothing has been played yet.")
	}
	var lines []string
	for i := 0; i < len(history) && i < historyLimit; i++ {
		lines = append(lines, trackLine(i+1, history[len(history)-1-i]))
	}
	return infoEmbed("History", track.FitLines(lines, track.DescriptionLimit))
}

func trackLine(n int, t track.Track) string {
	return fmt.Sprintf("**%d.** %s | `%s` | %s", n, t.DisplayShort(titleLimit), t.FormatLength(), t.Requester.Mention())
}

func settingsEmbed(s storage.MusicSettings) *discordgo.MessageEmbed {
	size := s.EmbedSize
	if size == "" {
		size = "default"
	}
	volume := "default"
	if s.DefaultVolume > 0 {
		volume = fmt.Sprintf("%d%%", s.DefaultVolume)
	}
	embed := infoEmbed("Music settings", "Changes apply to the next session.")
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Embed size", Value: "`" + size + "`", Inline: true},
		{Name: "Default volume", Value: "`" + volume + "`", Inline: true},
	}
	return embed
}

func sum(tracks []track.Track) (total time.Duration) {
	for _, t := range tracks {
		if !t.IsStream {
			total += t.Length
		}
	}
	return total
}
