// Package soundcloud plays SoundCloud links and searches SoundCloud by
// title. SoundCloud has no open API, so metadata and stream URLs come from
// yt-dlp and text search goes through DuckDuckGo.
package soundcloud

import (
	"context"
	"net/url"
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"

	"go.uber.org/zap"
)

// SearchPrefix routes "scsearch:<query>" to Search.
const SearchPrefix = "scsearch"

type Source struct {
	finder *Finder
	// info and stream run yt-dlp.
	info   func(ctx context.Context, link string) ([]entry, error)
	stream func(ctx context.Context, link string) (string, error)
	log    *zap.Logger
}

func New(log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		finder: NewFinder(),
		info:   ytdlpInfo,
		stream: ytdlpStreamURL,
		log:    log.Named("soundcloud"),
	}
}

func (s *Source) Name() string { return track.SourceSoundCloud }

func (s *Source) Match(input string) bool {
	input = strings.TrimSpace(input)
	if !sources.IsURL(input) {
		return false
	}
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "soundcloud.com" || host == "m.soundcloud.com" || host == "on.soundcloud.com"
}

// Resolve loads a track or a set (playlist) link.
func (s *Source) Resolve(ctx context.Context, input string) (track.SearchResult, error) {
	input = strings.TrimSpace(input)
	if !s.Match(input) {
		return track.SearchResult{}, sources.ErrUnsupported
	}

	entries, err := s.info(ctx, input)
	if err != nil {
		return track.SearchResult{}, err
	}
	tracks := make([]track.Track, 0, len(entries))
	for _, e := range entries {
		if e.url == "" {
			continue
		}
		tracks = append(tracks, e.track())
	}
	if len(tracks) == 0 {
		return track.SearchResult{}, sources.ErrNoResults
	}

	res := track.SearchResult{Kind: track.ResultTrack, Source: s.Name(), Tracks: tracks}
	if isSet(input) {
		res.Kind = track.ResultPlaylist
		res.Name = slugTitle(lastSegment(input))
	}
	return res, nil
}

// Search finds track pages for query. Results only carry what the page
// URL tells us; the rest is filled in at play time.
func (s *Source) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	links, err := s.finder.TrackURLs(ctx, query)
	if err != nil {
		return nil, err
	}
	tracks := make([]track.Track, 0, len(links))
	for _, link := range links {
		tracks = append(tracks, linkTrack(link))
	}
	return sources.Limit(sources.Dedupe(tracks), limit), nil
}

// StreamURL asks yt-dlp for a fresh media URL. SoundCloud's signed URLs
// expire, so they are never cached on the track.
func (s *Source) StreamURL(ctx context.Context, t track.Track) (string, error) {
	if t.Source != track.SourceSoundCloud || t.URI == "" {
		return "", sources.ErrUnsupported
	}
	u, err := s.stream(ctx, t.URI)
	if err != nil {
		s.log.Warn("Stream lookup failed", zap.String("uri", t.URI), zap.Error(err))
		return "", err
	}
	return u, nil
}

// linkTrack builds a track from a soundcloud.com/<artist>/<track> URL.
func linkTrack(link string) track.Track {
	artist, slug := pathParts(link)
	return track.Track{
		ID:     artist + "/" + slug,
		Title:  slugTitle(slug),
		Author: artist,
		URI:    link,
		Source: track.SourceSoundCloud,
		Origin: track.OriginNative,
	}
}

func pathParts(link string) (artist, slug string) {
	u, err := url.Parse(link)
	if err != nil {
		return "", ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func lastSegment(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}

func slugTitle(slug string) string {
	return strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' }), " ")
}

func isSet(link string) bool {
	return strings.Contains(link, "/sets/")
}
