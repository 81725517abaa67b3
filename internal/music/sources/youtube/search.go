package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/retrylimit"

	"github.com/ppalone/ytsearch"
)

var videoPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

// newVideoSearch wraps the ytsearch client. Results are metadata only;
// stream URLs are looked up at play time.
func newVideoSearch(httpClient *http.Client) func(ctx context.Context, query string) ([]track.Track, error) {
	c := ytsearch.NewClient(httpClient)
	return func(ctx context.Context, query string) ([]track.Track, error) {
		res, err := c.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		tracks := make([]track.Track, 0, len(res.Results))
		for _, v := range res.Results {
			if v.VideoID == "" {
				continue
			}
			length := parseColonDuration(v.Duration)
			tracks = append(tracks, track.Track{
				ID:         v.VideoID,
				Title:      v.Title,
				Author:     v.Channel,
				Length:     length,
				URI:        watchURL(v.VideoID),
				Thumbnail:  "https://i.ytimg.com/vi/" + v.VideoID + "/hqdefault.jpg",
				IsStream:   length == 0,
				IsSeekable: length > 0,
				Source:     track.SourceYouTube,
				Origin:     track.OriginNative,
			})
		}
		return tracks, nil
	}
}

// htmlSearch scrapes the results page for the first video.
type htmlSearch struct {
	BaseURL string
	Client  *http.Client
	lim     *retrylimit.AdaptiveLimiter
}

func newHTMLSearch(client *http.Client) *htmlSearch {
	return &htmlSearch{
		BaseURL: "https://www.youtube.com",
		Client:  client,
		lim:     retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
	}
}

func (h *htmlSearch) firstVideoID(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", h.BaseURL, url.QueryEscape(query))

	body, err := retrylimit.Do(ctx, h.lim, h.retryConfig(), func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, retrylimit.Fatal(err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := h.Client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := &retrylimit.StatusError{Code: resp.StatusCode, URL: searchURL}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, retrylimit.Fatal(statusErr)
			}
			return nil, statusErr
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return "", fmt.Errorf("YouTube search failed: %w", err)
	}

	m := videoPattern.FindSubmatch(body)
	if len(m) < 2 {
		return "", ErrNoVideoMatch
	}
	return string(m[1]), nil
}

func (h *htmlSearch) retryConfig() retrylimit.RetryConfig {
	cfg := retrylimit.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	return cfg
}
