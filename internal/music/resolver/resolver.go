// Package resolver routes a user query to the right source: URLs go to the
// first source that claims them, plain text is searched on each searcher in
// turn. It implements player.TrackResolver and transport.StreamLocator.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/cache"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"

	"go.uber.org/zap"
)

const (
	DefaultCacheTTL    = time.Hour
	DefaultSearchLimit = 10
)

var (
	ErrEmptyQuery = errors.New("query is empty")
	ErrNoSource   = errors.New("no source can handle this link")
)

type Config struct {
	// Sources are tried in order for URLs. Put catch-alls (radio) last.
	Sources []sources.Source
	// Searchers are tried in order for plain text.
	Searchers []sources.Searcher
	// Prefixed searchers answer "<prefix>:<query>" and nothing else, e.g.
	// "scsearch:artist song".
	Prefixed map[string]sources.Searcher
	// Streamers refresh media URLs, keyed by track.Track.Source.
	Streamers map[string]sources.Streamer

	// Cache is optional. Lookups are stored for CacheTTL.
	Cache       cache.Cache
	CacheTTL    time.Duration
	SearchLimit int
	Logger      *zap.Logger
}

type Resolver struct {
	sources   []sources.Source
	searchers []sources.Searcher
	prefixed  map[string]sources.Searcher
	streamers map[string]sources.Streamer
	cache     cache.Cache
	ttl       time.Duration
	limit     int
	log       *zap.Logger
}

func New(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	streamers := maps.Clone(cfg.Streamers)
	if streamers == nil {
		streamers = map[string]sources.Streamer{}
	}
	return &Resolver{
		sources:   cfg.Sources,
		searchers: cfg.Searchers,
		prefixed:  maps.Clone(cfg.Prefixed),
		streamers: streamers,
		cache:     cfg.Cache,
		ttl:       cfg.CacheTTL,
		limit:     cfg.SearchLimit,
		log:       cfg.Logger.Named("resolver"),
	}
}

// Search resolves a URL or searches free text. An empty result is reported
// as player.ErrNoMatches.
func (r *Resolver) Search(ctx context.Context, query string) (track.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return track.SearchResult{}, ErrEmptyQuery
	}

	key := cacheKey(query)
	if res, ok := r.cached(ctx, key); ok {
		return res, nil
	}

	var (
		res track.SearchResult
		err error
	)
	if s, text, ok := r.prefixedSearcher(query); ok {
		res, err = r.search(ctx, text, []sources.Searcher{s})
	} else if isLink(query) {
		res, err = r.resolveLink(ctx, query)
	} else {
		res, err = r.search(ctx, query, r.searchers)
	}
	if err != nil {
		return track.SearchResult{}, err
	}
	if res.Empty() {
		return track.SearchResult{}, fmt.Errorf("%w: %s", player.ErrNoMatches, query)
	}

	r.store(ctx, key, res)
	return res, nil
}

func (r *Resolver) resolveLink(ctx context.Context, link string) (track.SearchResult, error) {
	for _, src := range r.sources {
		if !src.Match(link) {
			continue
		}
		res, err := src.Resolve(ctx, link)
		if err != nil {
			if errors.Is(err, sources.ErrNoResults) {
				return track.SearchResult{}, fmt.Errorf("%w: %s", player.ErrNoMatches, link)
			}
			return track.SearchResult{}, fmt.Errorf("%s: %w", src.Name(), err)
		}
		r.log.Debug("Resolved link",
			zap.String("source", src.Name()),
			zap.Stringer("kind", res.Kind),
			zap.Int("tracks", len(res.Tracks)))
		return res, nil
	}
	return track.SearchResult{}, ErrNoSource
}

// prefixedSearcher splits "scsearch:query" style input.
func (r *Resolver) prefixedSearcher(query string) (sources.Searcher, string, bool) {
	prefix, text, found := strings.Cut(query, ":")
	if !found {
		return nil, "", false
	}
	s, ok := r.prefixed[strings.ToLower(prefix)]
	if !ok {
		return nil, "", false
	}
	text = strings.TrimSpace(text)
	return s, text, text != ""
}

func (r *Resolver) search(ctx context.Context, query string, searchers []sources.Searcher) (track.SearchResult, error) {
	var errs []error
	for _, s := range searchers {
		tracks, err := s.Search(ctx, query, r.limit)
		if err != nil {
			if ctx.Err() != nil {
				return track.SearchResult{}, ctx.Err()
			}
			if !errors.Is(err, sources.ErrNoResults) {
				r.log.Warn("Search failed", zap.String("source", s.Name()), zap.String("query", query), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
			continue
		}
		if len(tracks) == 0 {
			continue
		}
		return track.SearchResult{Kind: track.ResultSearch, Source: s.Name(), Tracks: tracks}, nil
	}

	if len(errs) == len(searchers) && len(errs) > 0 {
		return track.SearchResult{}, errors.Join(errs...)
	}
	return track.SearchResult{}, fmt.Errorf("%w: %s", player.ErrNoMatches, query)
}

// StreamURL returns the media location for t, asking the track's source for
// a fresh one when it has a streamer.
func (r *Resolver) StreamURL(ctx context.Context, t track.Track) (string, error) {
	if s, ok := r.streamers[t.Source]; ok {
		return s.StreamURL(ctx, t)
	}
	if t.StreamURL != "" {
		return t.StreamURL, nil
	}
	if t.URI != "" {
		return t.URI, nil
	}
	return "", fmt.Errorf("no stream location for %q", t.Title)
}

func (r *Resolver) cached(ctx context.Context, key string) (track.SearchResult, bool) {
	if r.cache == nil {
		return track.SearchResult{}, false
	}
	var res track.SearchResult
	ok, err := cache.GetJSON(ctx, r.cache, key, &res)
	if err != nil {
		r.log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return track.SearchResult{}, false
	}
	return res, ok && !res.Empty()
}

func (r *Resolver) store(ctx context.Context, key string, res track.SearchResult) {
	if r.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, r.cache, key, res, r.ttl); err != nil {
		r.log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(query string) string {
	if isLink(query) {
		return "lookup:" + query
	}
	return "lookup:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func isLink(s string) bool {
	return sources.IsURL(s) || strings.HasPrefix(s, "spotify:")
}
