package sources

import (
	"testing"

	"github.com/keshon/jukebox/internal/music/track"
)

func TestDedupe(t *testing.T) {
	in := []track.Track{
		{ID: "a", Source: track.SourceYouTube},
		{ID: "a", Source: track.SourceYouTubeMusic},
		{ID: "a", Source: track.SourceYouTube},
		{URI: "http://radio/x", Source: track.SourceRadio},
		{URI: "http://radio/x", Source: track.SourceRadio},
	}
	out := Dedupe(in)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(out), out)
	}
	if len(in) != 5 || in[2].ID != "a" {
		t.Fatal("input modified")
	}
}

func TestLimit(t *testing.T) {
	in := make([]track.Track, 5)
	if got := len(Limit(in, 2)); got != 2 {
		t.Errorf("Limit 2 = %d", got)
	}
	if got := len(Limit(in, 0)); got != 5 {
		t.Errorf("Limit 0 = %d", got)
	}
}

func TestIsURL(t *testing.T) {
	for in, want := range map[string]bool{
		"https://youtu.be/x":   true,
		"http://radio.local":   true,
		"never gonna give you": false,
		"spotify:track:abc":    false,
	} {
		if got := IsURL(in); got != want {
			t.Errorf("IsURL(%q) = %v", in, got)
		}
	}
}
