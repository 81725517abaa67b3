package ytmusic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/track"
)

func TestSearchConvertsHits(t *testing.T) {
	s := &Searcher{search: func(q string) ([]hit, error) {
		return []hit{
			{videoID: "", title: "podcast episode"},
			{videoID: "abc", title: "Song", artists: []string{"A", "B"}, seconds: 200, thumbnail: "th"},
			{videoID: "abc", title: "Song (dup)"},
			{videoID: "def", title: "Other"},
		}, nil
	}}

	got, err := s.Search(context.Background(), "song", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	first := got[0]
	if first.Author != "A, B" || first.Length != 200*time.Second || first.Source != track.SourceYouTubeMusic {
		t.Fatalf("first = %+v", first)
	}
	if first.URI != "https://music.youtube.com/watch?v=abc" || first.IsStub() {
		t.Fatalf("first = %+v", first)
	}
}

func TestSearchNoResults(t *testing.T) {
	s := &Searcher{search: func(string) ([]hit, error) { return nil, nil }}
	if _, err := s.Search(context.Background(), "q", 5); !errors.Is(err, sources.ErrNoResults) {
		t.Fatalf("err = %v", err)
	}
}

func TestSearchCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	s := &Searcher{search: func(string) ([]hit, error) {
		<-block
		return nil, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Search(ctx, "q", 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}
