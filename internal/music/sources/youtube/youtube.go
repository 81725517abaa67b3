// Package youtube resolves YouTube videos and playlists, searches YouTube
// and refreshes stream URLs for native tracks.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/retrylimit"

	kkdai "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

var (
	ErrNoVideoMatch  = errors.New("no video found for the given title")
	ErrEmptyPlaylist = errors.New("no playable videos found in the playlist")
	ErrNoAudio       = errors.New("no audio formats found for video")
)

type Config struct {
	// Proxy is an http(s):// or socks5:// URL used for every YouTube request.
	Proxy string
	// Ytdlp enables yt-dlp as the stream URL fallback when kkdai fails.
	Ytdlp  bool
	Logger *zap.Logger
}

type Source struct {
	client *kkdai.Client
	html   *htmlSearch
	search func(ctx context.Context, query string) ([]track.Track, error)
	ytdlp  bool
	proxy  string
	lim    *retrylimit.AdaptiveLimiter
	retry  retrylimit.RetryConfig
	log    *zap.Logger
}

func New(cfg Config) (*Source, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	httpClient, err := NewHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 3
	retry.Logger = cfg.Logger.Named("youtube")

	s := &Source{
		client: &kkdai.Client{HTTPClient: httpClient},
		html:   newHTMLSearch(httpClient),
		ytdlp:  cfg.Ytdlp,
		proxy:  cfg.Proxy,
		lim:    retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
		retry:  retry,
		log:    cfg.Logger.Named("youtube"),
	}
	s.search = newVideoSearch(httpClient)
	return s, nil
}

func (s *Source) Name() string { return track.SourceYouTube }

func (s *Source) Match(input string) bool {
	return isYouTubeURL(strings.TrimSpace(input))
}

// Resolve loads a video or a playlist URL.
func (s *Source) Resolve(ctx context.Context, input string) (track.SearchResult, error) {
	input = strings.TrimSpace(input)
	if !s.Match(input) {
		return track.SearchResult{}, sources.ErrUnsupported
	}

	id := videoID(input)
	if list := playlistID(input); list != "" && id == "" {
		return s.resolvePlaylist(ctx, input)
	}
	if id == "" {
		return track.SearchResult{}, fmt.Errorf("invalid YouTube URL format: %s", input)
	}

	t, err := s.video(ctx, id)
	if err != nil {
		return track.SearchResult{}, err
	}
	return track.SearchResult{Kind: track.ResultTrack, Source: s.Name(), Tracks: []track.Track{t}}, nil
}

func (s *Source) video(ctx context.Context, id string) (track.Track, error) {
	v, err := s.getVideo(ctx, id)
	if err != nil {
		return track.Track{}, err
	}
	return fromVideo(v), nil
}

func (s *Source) getVideo(ctx context.Context, id string) (*kkdai.Video, error) {
	return retrylimit.Do(ctx, s.lim, s.retry, func() (*kkdai.Video, error) {
		v, err := s.client.GetVideoContext(ctx, id)
		if err != nil {
			return nil, classify(err)
		}
		return v, nil
	})
}

func (s *Source) resolvePlaylist(ctx context.Context, input string) (track.SearchResult, error) {
	p, err := retrylimit.Do(ctx, s.lim, s.retry, func() (*kkdai.Playlist, error) {
		p, err := s.client.GetPlaylistContext(ctx, input)
		if err != nil {
			return nil, classify(err)
		}
		return p, nil
	})
	if err != nil {
		return track.SearchResult{}, fmt.Errorf("load playlist: %w", err)
	}

	tracks := make([]track.Track, 0, len(p.Videos))
	for _, e := range p.Videos {
		if e == nil || e.ID == "" {
			continue
		}
		tracks = append(tracks, fromEntry(e))
	}
	if len(tracks) == 0 {
		return track.SearchResult{}, ErrEmptyPlaylist
	}

	return track.SearchResult{
		Kind:   track.ResultPlaylist,
		Source: s.Name(),
		Tracks: sources.Dedupe(tracks),
		Name:   p.Title,
		URL:    "https://www.youtube.com/playlist?list=" + p.ID,
	}, nil
}

// Search returns up to limit videos for query. The HTML results page is
// scraped when the search client finds nothing.
func (s *Source) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	tracks, err := s.search(ctx, query)
	if err == nil && len(tracks) > 0 {
		return sources.Limit(sources.Dedupe(tracks), limit), nil
	}
	if err != nil {
		s.log.Debug("Search client failed, scraping results page", zap.String("query", query), zap.Error(err))
	}

	id, herr := s.html.firstVideoID(ctx, query)
	if herr != nil {
		if errors.Is(herr, ErrNoVideoMatch) {
			return nil, sources.ErrNoResults
		}
		return nil, herr
	}
	t, err := s.video(ctx, id)
	if err != nil {
		return nil, err
	}
	return []track.Track{t}, nil
}

// classify marks errors that retrying cannot fix.
func classify(err error) error {
	var (
		status   *kkdai.ErrPlayabiltyStatus
		playlist kkdai.ErrPlaylistStatus
	)
	switch {
	case errors.Is(err, kkdai.ErrVideoPrivate),
		errors.Is(err, kkdai.ErrLoginRequired),
		errors.Is(err, kkdai.ErrNotPlayableInEmbed),
		errors.Is(err, kkdai.ErrInvalidCharactersInVideoID),
		errors.Is(err, kkdai.ErrVideoIDMinLength),
		errors.Is(err, kkdai.ErrInvalidPlaylist),
		errors.As(err, &status),
		errors.As(err, &playlist):
		return retrylimit.Fatal(err)
	}
	var code kkdai.ErrUnexpectedStatusCode
	if errors.As(err, &code) {
		return &retrylimit.StatusError{Code: int(code), URL: "youtube"}
	}
	return err
}

func fromVideo(v *kkdai.Video) track.Track {
	live := v.HLSManifestURL != "" && v.Duration == 0
	return track.Track{
		ID:         v.ID,
		Title:      v.Title,
		Author:     v.Author,
		Length:     v.Duration,
		URI:        watchURL(v.ID),
		Thumbnail:  thumbnail(v.Thumbnails),
		IsStream:   live,
		IsSeekable: !live,
		Source:     track.SourceYouTube,
		Origin:     track.OriginNative,
	}
}

func fromEntry(e *kkdai.PlaylistEntry) track.Track {
	return track.Track{
		ID:         e.ID,
		Title:      e.Title,
		Author:     e.Author,
		Length:     e.Duration,
		URI:        watchURL(e.ID),
		Thumbnail:  thumbnail(e.Thumbnails),
		IsSeekable: true,
		Source:     track.SourceYouTube,
		Origin:     track.OriginNative,
	}
}

// thumbnail picks the widest image.
func thumbnail(list kkdai.Thumbnails) string {
	best := ""
	var width uint
	for _, th := range list {
		if th.URL != "" && (best == "" || th.Width > width) {
			best, width = th.URL, th.Width
		}
	}
	return best
}
