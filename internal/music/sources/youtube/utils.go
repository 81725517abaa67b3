package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var youtubeRegex = regexp.MustCompile(`^(?:https?:\/\/)?(?:www\.|music\.|m\.)?(youtube\.com|youtu\.be)\/\S+`)

func isYouTubeURL(input string) bool {
	return youtubeRegex.MatchString(input)
}

// playlistID returns the list parameter of a playlist URL. Mixes (RD...)
// are generated per viewer and cannot be fetched, so they are ignored.
func playlistID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	list := u.Query().Get("list")
	if list == "" || strings.HasPrefix(list, "RD") {
		return ""
	}
	return list
}

// videoID extracts the 11 character video ID from the common URL shapes.
func videoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com", "m.youtube.com":
		if u.Path == "/watch" {
			return u.Query().Get("v")
		}
		for _, prefix := range []string{"/shorts/", "/live/", "/embed/"} {
			if strings.HasPrefix(u.Path, prefix) {
				return strings.Trim(strings.TrimPrefix(u.Path, prefix), "/")
			}
		}
	}
	return ""
}

// CleanVideoURL strips everything but the video ID from a YouTube URL.
func CleanVideoURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	host := u.Hostname()
	switch host {
	case "youtu.be":
		vid := strings.Trim(u.Path, "/")
		if vid == "" {
			return raw
		}
		return fmt.Sprintf("https://youtu.be/%s", vid)

	case "www.youtube.com", "youtube.com", "music.youtube.com":
		if u.Path == "/watch" {
			if vid := u.Query().Get("v"); vid != "" {
				return fmt.Sprintf("https://%s/watch?v=%s", host, vid)
			}
		}
		return raw

	default:
		return raw
	}
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// parseColonDuration parses "3:20" or "1:05:20". Anything else is zero.
func parseColonDuration(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	var total time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + time.Duration(n)
	}
	return total * time.Second
}
