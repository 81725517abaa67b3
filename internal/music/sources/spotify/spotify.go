// Package spotify turns Spotify track, album and playlist links into search
// stubs. Spotify audio is never streamed; the player matches each stub
// against a playable source when it reaches the front of the queue.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"

	"github.com/zmb3/spotify"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNoCredentials = errors.New("spotify client id and secret are required")

// catalog is the subset of the Web API we call.
type catalog interface {
	GetTrack(id spotify.ID) (*spotify.FullTrack, error)
	GetAlbum(id spotify.ID) (*spotify.FullAlbum, error)
	GetPlaylist(id spotify.ID) (*spotify.FullPlaylist, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	Logger       *zap.Logger
}

type Source struct {
	api catalog
	log *zap.Logger
}

// New authenticates with the client credentials flow. Tokens are fetched
// lazily on the first request and refreshed by oauth2.
func New(cfg Config) (*Source, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNoCredentials
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotify.TokenURL,
	}
	client := spotify.NewClient(creds.Client(context.Background()))
	return &Source{api: &client, log: cfg.Logger.Named("spotify")}, nil
}

func (s *Source) Name() string { return track.SourceSpotify }

func (s *Source) Match(input string) bool {
	_, _, err := parseLink(strings.TrimSpace(input))
	return err == nil
}

func (s *Source) Resolve(ctx context.Context, input string) (track.SearchResult, error) {
	kind, id, err := parseLink(strings.TrimSpace(input))
	if err != nil {
		return track.SearchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return track.SearchResult{}, err
	}

	switch kind {
	case "track":
		t, err := s.api.GetTrack(id)
		if err != nil {
			return track.SearchResult{}, fmt.Errorf("spotify track %s: %w", id, err)
		}
		return track.SearchResult{
			Kind:   track.ResultTrack,
			Source: s.Name(),
			Tracks: []track.Track{stub(t.SimpleTrack, albumImage(t.Album))},
		}, nil

	case "album":
		a, err := s.api.GetAlbum(id)
		if err != nil {
			return track.SearchResult{}, fmt.Errorf("spotify album %s: %w", id, err)
		}
		img := albumImage(a.SimpleAlbum)
		tracks := make([]track.Track, 0, len(a.Tracks.Tracks))
		for _, t := range a.Tracks.Tracks {
			tracks = append(tracks, stub(t, img))
		}
		return collection(a.Name, linkURL("album", id), tracks)

	case "playlist":
		p, err := s.api.GetPlaylist(id)
		if err != nil {
			return track.SearchResult{}, fmt.Errorf("spotify playlist %s: %w", id, err)
		}
		tracks := make([]track.Track, 0, len(p.Tracks.Tracks))
		for _, item := range p.Tracks.Tracks {
			if item.IsLocal || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, stub(item.Track.SimpleTrack, albumImage(item.Track.Album)))
		}
		if p.Tracks.Total > len(p.Tracks.Tracks) {
			s.log.Info("Playlist truncated to first page",
				zap.String("playlist", string(id)),
				zap.Int("total", p.Tracks.Total),
				zap.Int("loaded", len(tracks)))
		}
		return collection(p.Name, linkURL("playlist", id), tracks)
	}
	return track.SearchResult{}, sources.ErrUnsupported
}

func collection(name, link string, tracks []track.Track) (track.SearchResult, error) {
	if len(tracks) == 0 {
		return track.SearchResult{}, sources.ErrNoResults
	}
	return track.SearchResult{
		Kind:   track.ResultPlaylist,
		Source: track.SourceSpotify,
		Tracks: tracks,
		Name:   name,
		URL:    link,
	}, nil
}

func stub(t spotify.SimpleTrack, image string) track.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return track.Track{
		ID:         string(t.ID),
		Title:      t.Name,
		Author:     strings.Join(artists, ", "),
		Length:     time.Duration(t.Duration) * time.Millisecond,
		URI:        linkURL("track", t.ID),
		Thumbnail:  image,
		IsSeekable: true,
		Source:     track.SourceSpotify,
		Origin:     track.OriginSearchStub,
	}
}

func albumImage(a spotify.SimpleAlbum) string {
	if len(a.Images) == 0 {
		return ""
	}
	return a.Images[0].URL
}

func linkURL(kind string, id spotify.ID) string {
	return "https://open.spotify.com/" + kind + "/" + string(id)
}

// parseLink accepts open.spotify.com URLs (with or without an intl-xx
// segment) and spotify:kind:id URIs.
func parseLink(input string) (string, spotify.ID, error) {
	if rest, ok := strings.CutPrefix(input, "spotify:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) == 2 && validKind(parts[0]) && parts[1] != "" {
			return parts[0], spotify.ID(parts[1]), nil
		}
		return "", "", sources.ErrUnsupported
	}

	u, err := url.Parse(input)
	if err != nil || u.Hostname() != "open.spotify.com" {
		return "", "", sources.ErrUnsupported
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) > 0 && strings.HasPrefix(segs[0], "intl-") {
		segs = segs[1:]
	}
	if len(segs) < 2 || !validKind(segs[0]) || segs[1] == "" {
		return "", "", sources.ErrUnsupported
	}
	return segs[0], spotify.ID(segs[1]), nil
}

func validKind(kind string) bool {
	switch kind {
	case "track", "album", "playlist":
		return true
	}
	return false
}
