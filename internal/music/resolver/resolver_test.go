package resolver

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/keshon/jukebox/internal/cache"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"
)

type fakeSource struct {
	name   string
	prefix string
	calls  atomic.Int32
	err    error
}

func (f *fakeSource) Name() string            { return f.name }
func (f *fakeSource) Match(input string) bool { return strings.HasPrefix(input, f.prefix) }

func (f *fakeSource) Resolve(ctx context.Context, input string) (track.SearchResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return track.SearchResult{}, f.err
	}
	return track.SearchResult{
		Kind:   track.ResultTrack,
		Source: f.name,
		Tracks: []track.Track{{ID: input, Title: f.name, Source: f.name}},
	}, nil
}

type fakeSearcher struct {
	name   string
	tracks []track.Track
	err    error
	calls  atomic.Int32
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	f.calls.Add(1)
	return f.tracks, f.err
}

type fakeStreamer struct{ url string }

func (f fakeStreamer) StreamURL(ctx context.Context, t track.Track) (string, error) {
	return f.url + t.ID, nil
}

func TestLinksRouteToFirstMatchingSource(t *testing.T) {
	yt := &fakeSource{name: "youtube", prefix: "https://youtube.com"}
	radio := &fakeSource{name: "radio", prefix: "http"}
	r := New(Config{Sources: []sources.Source{yt, radio}})

	res, err := r.Search(context.Background(), "https://youtube.com/watch?v=x")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "youtube" || radio.calls.Load() != 0 {
		t.Fatalf("routed to %s", res.Source)
	}

	res, err = r.Search(context.Background(), "http://radio.example.com/live")
	if err != nil || res.Source != "radio" {
		t.Fatalf("radio = %+v, %v", res, err)
	}

	if _, err := r.Search(context.Background(), "spotify:track:1"); !errors.Is(err, ErrNoSource) {
		t.Fatalf("unclaimed link err = %v", err)
	}
}

func TestTextSearchFallsThroughSearchers(t *testing.T) {
	ytm := &fakeSearcher{name: "ytmusic", err: sources.ErrNoResults}
	yt := &fakeSearcher{name: "youtube", tracks: []track.Track{{ID: "a"}, {ID: "b"}}}
	r := New(Config{Searchers: []sources.Searcher{ytm, yt}})

	res, err := r.Search(context.Background(), "  some song ")
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != track.ResultSearch || res.Source != "youtube" || len(res.Tracks) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if ytm.calls.Load() != 1 {
		t.Fatal("first searcher not consulted")
	}
}

func TestNoMatches(t *testing.T) {
	r := New(Config{Searchers: []sources.Searcher{
		&fakeSearcher{name: "ytmusic"},
		&fakeSearcher{name: "youtube", err: sources.ErrNoResults},
	}})
	if _, err := r.Search(context.Background(), "zzz"); !errors.Is(err, player.ErrNoMatches) {
		t.Fatalf("err = %v, want ErrNoMatches", err)
	}
	if _, err := r.Search(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestAllSearchersFailing(t *testing.T) {
	boom := errors.New("network down")
	r := New(Config{Searchers: []sources.Searcher{
		&fakeSearcher{name: "ytmusic", err: boom},
		&fakeSearcher{name: "youtube", err: boom},
	}})
	_, err := r.Search(context.Background(), "song")
	if !errors.Is(err, boom) || errors.Is(err, player.ErrNoMatches) {
		t.Fatalf("err = %v", err)
	}
}

func TestResultsAreCached(t *testing.T) {
	yt := &fakeSearcher{name: "youtube", tracks: []track.Track{{ID: "a", Title: "Song"}}}
	r := New(Config{Searchers: []sources.Searcher{yt}, Cache: cache.NewMemory()})

	for _, q := range []string{"Some Song", "some   song"} {
		res, err := r.Search(context.Background(), q)
		if err != nil {
			t.Fatal(err)
		}
		if first, _ := res.First(); first.Title != "Song" {
			t.Fatalf("result = %+v", res)
		}
	}
	if n := yt.calls.Load(); n != 1 {
		t.Fatalf("searcher called %d times, want 1", n)
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	src := &fakeSource{name: "youtube", prefix: "https://", err: errors.New("timeout")}
	r := New(Config{Sources: []sources.Source{src}, Cache: cache.NewMemory()})

	for i := 0; i < 2; i++ {
		if _, err := r.Search(context.Background(), "https://x"); err == nil {
			t.Fatal("expected error")
		}
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("source called %d times, want 2", n)
	}
}

func TestStreamURL(t *testing.T) {
	r := New(Config{Streamers: map[string]sources.Streamer{"youtube": fakeStreamer{url: "https://cdn/"}}})

	tests := []struct {
		track track.Track
		want  string
	}{
		{track.Track{ID: "abc", Source: "youtube"}, "https://cdn/abc"},
		{track.Track{StreamURL: "http://radio/live", URI: "http://radio", Source: "radio"}, "http://radio/live"},
		{track.Track{URI: "http://file.mp3", Source: "radio"}, "http://file.mp3"},
	}
	for _, tt := range tests {
		got, err := r.StreamURL(context.Background(), tt.track)
		if err != nil || got != tt.want {
			t.Errorf("StreamURL(%+v) = %q, %v", tt.track, got, err)
		}
	}
	if _, err := r.StreamURL(context.Background(), track.Track{Title: "nothing"}); err == nil {
		t.Error("expected error for track without location")
	}
}

func TestPrefixedQueryUsesOnlyThatSearcher(t *testing.T) {
	yt := &fakeSearcher{name: "youtube", tracks: []track.Track{{ID: "y"}}}
	sc := &fakeSearcher{name: "soundcloud", tracks: []track.Track{{ID: "s"}}}
	r := New(Config{
		Searchers: []sources.Searcher{yt},
		Prefixed:  map[string]sources.Searcher{"scsearch": sc},
	})

	res, err := r.Search(context.Background(), "scsearch: some song")
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != "soundcloud" || res.Tracks[0].ID != "s" {
		t.Fatalf("result = %+v", res)
	}
	if yt.calls.Load() != 0 {
		t.Fatal("default searcher was asked for a prefixed query")
	}

	res, err = r.Search(context.Background(), "unknown: song")
	if err != nil || res.Source != "youtube" {
		t.Fatalf("unknown prefix = %+v, %v", res, err)
	}
}
