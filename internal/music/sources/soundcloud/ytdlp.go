package soundcloud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/track"

	"github.com/lrstanley/go-ytdlp"
)

// infoTemplate prints one tab separated line per track.
const infoTemplate = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(webpage_url)s\t%(thumbnail)s"

var errEmptyURL = errors.New("empty URL returned from yt-dlp")

type entry struct {
	id, title, uploader string
	length              time.Duration
	url, thumbnail      string
}

func (e entry) track() track.Track {
	t := linkTrack(e.url)
	if e.id != "" {
		t.ID = e.id
	}
	if e.title != "" {
		t.Title = e.title
	}
	if e.uploader != "" {
		t.Author = e.uploader
	}
	t.Length = e.length
	t.IsSeekable = e.length > 0
	t.Thumbnail = e.thumbnail
	return t
}

func ytdlpInfo(ctx context.Context, link string) ([]entry, error) {
	cmd := ytdlp.New().
		Print(infoTemplate).
		NoWarnings().
		IgnoreConfig()
	if !isSet(link) {
		cmd.NoPlaylist()
	}
	res, err := cmd.Run(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp: %w", err)
	}
	return parseInfo(res.Stdout), nil
}

func parseInfo(out string) []entry {
	var entries []entry
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		f := strings.Split(strings.TrimSpace(line), "\t")
		if len(f) < 6 {
			continue
		}
		for i := range f {
			if f[i] == "NA" {
				f[i] = ""
			}
		}
		e := entry{id: f[0], title: f[1], uploader: f[2], url: f[4], thumbnail: f[5]}
		if secs, err := strconv.ParseFloat(f[3], 64); err == nil && secs > 0 {
			e.length = time.Duration(secs * float64(time.Second))
		}
		entries = append(entries, e)
	}
	return entries
}

func ytdlpStreamURL(ctx context.Context, link string) (string, error) {
	res, err := ytdlp.New().
		Format("bestaudio/best").
		Print("urls").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig().
		Run(ctx, link)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", errEmptyURL
}
