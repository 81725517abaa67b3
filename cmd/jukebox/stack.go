package main

import (
	"context"
	"errors"
	"time"

	"github.com/keshon/jukebox/internal/cache"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/music/resolver"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/radio"
	"github.com/keshon/jukebox/internal/music/sources/soundcloud"
	"github.com/keshon/jukebox/internal/music/sources/spotify"
	"github.com/keshon/jukebox/internal/music/sources/youtube"
	"github.com/keshon/jukebox/internal/music/sources/ytmusic"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/pkg/jobmgr"

	"go.uber.org/zap"
)

const (
	cachePrefix    = "jukebox:"
	janitorEvery   = 5 * time.Minute
	redisDialLimit = 5 * time.Second
)

// newCache connects to Redis when REDIS_URL is set and falls back to an
// in-process cache swept by a background job.
func newCache(ctx context.Context, cfg *config.Config, jobs *jobmgr.Manager, log *zap.Logger) (cache.Cache, error) {
	if cfg.RedisURL != "" {
		dctx, cancel := context.WithTimeout(ctx, redisDialLimit)
		defer cancel()
		c, err := cache.NewRedis(dctx, cfg.RedisURL, cachePrefix)
		if err == nil {
			log.Info("Search cache: redis")
			return c, nil
		}
		log.Warn("Redis unavailable, using in-memory cache", zap.Error(err))
	}

	m := cache.NewMemory()
	if jobs != nil {
		if err := jobs.StartAsync("cache:janitor", m.Janitor(janitorEvery)); err != nil {
			return nil, err
		}
	}
	log.Info("Search cache: memory")
	return m, nil
}

// newResolver registers sources in match order. Radio accepts any URL, so it
// goes last.
func newResolver(cfg *config.Config, c cache.Cache, log *zap.Logger) (*resolver.Resolver, error) {
	yt, err := youtube.New(youtube.Config{
		Proxy:  cfg.YouTubeProxy,
		Ytdlp:  cfg.YtdlpFallback,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	srcs := []sources.Source{yt}
	sp, err := spotify.New(spotify.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		Logger:       log,
	})
	switch {
	case err == nil:
		srcs = append(srcs, sp)
	case errors.Is(err, spotify.ErrNoCredentials):
		log.Info("Spotify links disabled: no client credentials")
	default:
		return nil, err
	}
	sc := soundcloud.New(log)
	srcs = append(srcs, sc, radio.New())

	return resolver.New(resolver.Config{
		Sources:   srcs,
		Searchers: []sources.Searcher{ytmusic.New(), yt},
		Prefixed: map[string]sources.Searcher{
			soundcloud.SearchPrefix: sc,
		},
		Streamers: map[string]sources.Streamer{
			track.SourceYouTube:      yt,
			track.SourceYouTubeMusic: yt,
			track.SourceSoundCloud:   sc,
		},
		Cache:    c,
		CacheTTL: cfg.SearchCacheTTL,
		Logger:   log,
	}), nil
}
