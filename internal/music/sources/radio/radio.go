// Package radio accepts direct links to internet radio and other HTTP audio
// streams. It is the catch-all for URLs no other source claims.
package radio

import (
	"context"
	"net/url"
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"
)

type Source struct {
	validator *Validator
}

func New() *Source {
	return &Source{validator: NewValidator()}
}

func (r *Source) Name() string { return track.SourceRadio }

func (r *Source) Match(input string) bool {
	return sources.IsURL(strings.TrimSpace(input))
}

func (r *Source) Resolve(ctx context.Context, input string) (track.SearchResult, error) {
	input = strings.TrimSpace(input)
	if !r.Match(input) {
		return track.SearchResult{}, sources.ErrUnsupported
	}

	p, err := r.validator.Check(ctx, input)
	if err != nil {
		return track.SearchResult{}, err
	}

	title := p.Name
	if title == "" {
		title = hostOf(p.FinalURL)
	}
	t := track.Track{
		ID:        p.FinalURL,
		Title:     title,
		Author:    p.Genre,
		URI:       input,
		StreamURL: p.FinalURL,
		IsStream:  true,
		Source:    track.SourceRadio,
		Origin:    track.OriginNative,
	}
	return track.SearchResult{Kind: track.ResultTrack, Source: r.Name(), Tracks: []track.Track{t}}, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host + u.Path
}
