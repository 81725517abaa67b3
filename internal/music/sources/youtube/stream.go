package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

// StreamURL returns a fresh media URL for a YouTube track. Live videos use
// their HLS manifest. yt-dlp is tried when kkdai cannot produce a URL.
func (s *Source) StreamURL(ctx context.Context, t track.Track) (string, error) {
	if t.Source != track.SourceYouTube && t.Source != track.SourceYouTubeMusic {
		return "", sources.ErrUnsupported
	}
	if t.ID == "" {
		return "", errors.New("track has no video ID")
	}

	url, err := s.kkdaiStreamURL(ctx, t.ID)
	if err == nil {
		return url, nil
	}
	if !s.ytdlp || ctx.Err() != nil {
		return "", err
	}

	s.log.Warn("kkdai stream lookup failed, trying yt-dlp", zap.String("video", t.ID), zap.Error(err))
	url, yerr := s.ytdlpStreamURL(ctx, watchURL(t.ID))
	if yerr != nil {
		return "", fmt.Errorf("stream url: %w", errors.Join(err, yerr))
	}
	return url, nil
}

func (s *Source) kkdaiStreamURL(ctx context.Context, id string) (string, error) {
	v, err := s.getVideo(ctx, id)
	if err != nil {
		return "", err
	}
	if v.HLSManifestURL != "" && v.Duration == 0 {
		return v.HLSManifestURL, nil
	}

	formats := v.Formats.Type("audio")
	if len(formats) == 0 {
		formats = v.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return "", ErrNoAudio
	}
	formats.Sort()

	var lastErr error
	for i := range formats {
		url, err := s.client.GetStreamURLContext(ctx, v, &formats[i])
		if err == nil && url != "" {
			return url, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = ErrNoAudio
	}
	return "", fmt.Errorf("get stream URL: %w", lastErr)
}

func (s *Source) ytdlpStreamURL(ctx context.Context, videoURL string) (string, error) {
	cmd := ytdlp.New().
		Format("bestaudio/best").
		Print("urls").
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if s.proxy != "" {
		cmd.Proxy(s.proxy)
	}

	res, err := cmd.Run(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", errors.New("empty URL returned from yt-dlp")
}
