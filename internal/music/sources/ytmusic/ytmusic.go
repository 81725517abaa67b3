// Package ytmusic searches YouTube Music. Results are regular YouTube
// videos, so stream URLs come from the youtube source.
package ytmusic

import (
	"context"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"

	"github.com/raitonoberu/ytmusic"
)

// hit is the part of a search result we keep.
type hit struct {
	videoID   string
	title     string
	artists   []string
	seconds   int
	thumbnail string
}

type Searcher struct {
	search func(query string) ([]hit, error)
}

func New() *Searcher {
	return &Searcher{search: trackSearch}
}

func trackSearch(query string) ([]hit, error) {
	res, err := ytmusic.TrackSearch(query).Next()
	if err != nil {
		return nil, err
	}
	hits := make([]hit, 0, len(res.Tracks))
	for _, v := range res.Tracks {
		h := hit{videoID: v.VideoID, title: v.Title, seconds: v.Duration}
		for _, a := range v.Artists {
			h.artists = append(h.artists, a.Name)
		}
		if n := len(v.Thumbnails); n > 0 {
			h.thumbnail = v.Thumbnails[n-1].URL
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func (s *Searcher) Name() string { return track.SourceYouTubeMusic }

// Search runs a song search. The underlying client has no context support,
// so cancellation only stops us from waiting on it.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	type result struct {
		hits []hit
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		hits, err := s.search(query)
		ch <- result{hits, err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}

	tracks := make([]track.Track, 0, len(r.hits))
	for _, h := range r.hits {
		if h.videoID == "" {
			continue
		}
		tracks = append(tracks, h.track())
	}
	if len(tracks) == 0 {
		return nil, sources.ErrNoResults
	}
	return sources.Limit(sources.Dedupe(tracks), limit), nil
}

func (h hit) track() track.Track {
	length := time.Duration(h.seconds) * time.Second
	return track.Track{
		ID:         h.videoID,
		Title:      h.title,
		Author:     strings.Join(h.artists, ", "),
		Length:     length,
		URI:        "https://music.youtube.com/watch?v=" + h.videoID,
		Thumbnail:  h.thumbnail,
		IsSeekable: true,
		Source:     track.SourceYouTubeMusic,
		Origin:     track.OriginNative,
	}
}
