// Package sources defines the lookup backends the resolver chains together.
package sources

import (
	"context"
	"errors"
	"strings"

	"github.com/keshon/jukebox/internal/music/track"
)

var (
	ErrUnsupported = errors.New("input is not supported by this source")
	ErrNoResults   = errors.New("no results")
)

// Source turns a URL it recognises into playable (or stub) tracks.
type Source interface {
	// Name returns the identifier stored in track.Track.Source.
	Name() string

	// Match checks if this source can handle the given URL. It must not do
	// network I/O.
	Match(input string) bool

	// Resolve turns the URL into one or more tracks.
	Resolve(ctx context.Context, input string) (track.SearchResult, error)
}

// Searcher answers free-text queries.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}

// Streamer refreshes the direct media URL of a native track.
type Streamer interface {
	StreamURL(ctx context.Context, t track.Track) (string, error)
}

func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Dedupe drops tracks whose source and ID were already seen, keeping order.
func Dedupe(tracks []track.Track) []track.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := tracks[:0:0]
	for _, t := range tracks {
		key := t.Source + ":" + t.ID
		if t.ID == "" {
			key = t.Source + ":" + t.URI
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Limit truncates tracks to n entries when n is positive.
func Limit(tracks []track.Track, n int) []track.Track {
	if n > 0 && len(tracks) > n {
		return tracks[:n]
	}
	return tracks
}
