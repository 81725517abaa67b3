package soundcloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/pkg/retrylimit"
)

var trackLinkPattern = regexp.MustCompile(`(?s)<a class="result__url"[^>]*>\s*(soundcloud\.com/[^<\s]+)\s*</a>`)

// Paths under soundcloud.com that are never a single track.
var reservedPaths = map[string]bool{
	"sets": true, "likes": true, "reposts": true, "tracks": true, "albums": true,
	"followers": true, "following": true, "popular-tracks": true, "comments": true,
}

// Finder looks SoundCloud tracks up through DuckDuckGo's HTML results.
type Finder struct {
	BaseURL string
	Client  *http.Client
	lim     *retrylimit.AdaptiveLimiter
}

func NewFinder() *Finder {
	return &Finder{
		BaseURL: "https://duckduckgo.com",
		Client:  &http.Client{Timeout: 10 * time.Second},
		lim:     retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
	}
}

// TrackURLs returns the track pages found for query, best match first.
func (f *Finder) TrackURLs(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, sources.ErrNoResults
	}
	searchURL := fmt.Sprintf("%s/html/?q=%s", f.BaseURL, url.QueryEscape("site:soundcloud.com "+query))

	cfg := retrylimit.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	body, err := retrylimit.Do(ctx, f.lim, cfg, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, retrylimit.Fatal(err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

		resp, err := f.Client.Do(req)
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
		return nil, fmt.Errorf("SoundCloud search failed: %w", err)
	}

	var links []string
	for _, m := range trackLinkPattern.FindAllSubmatch(body, -1) {
		if link, ok := trackLink(string(m[1])); ok {
			links = append(links, link)
		}
	}
	if len(links) == 0 {
		return nil, sources.ErrNoResults
	}
	return links, nil
}

// trackLink keeps soundcloud.com/<artist>/<track> results and drops
// profiles, sets and the like.
func trackLink(raw string) (string, bool) {
	u, err := url.Parse("https://" + raw)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || reservedPaths[parts[1]] {
		return "", false
	}
	return "https://soundcloud.com/" + parts[0] + "/" + parts[1], true
}
