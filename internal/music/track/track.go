package track

import (
	"fmt"
	"time"
)

// Origin tells the player whether a track can be handed to the transport as is.
type Origin int

const (
	// OriginNative tracks are directly playable.
	OriginNative Origin = iota
	// OriginSearchStub tracks only carry catalog metadata (e.g. Spotify) and
	// must be matched to a native track before playback.
	OriginSearchStub
)

func (o Origin) String() string {
	switch o {
	case OriginNative:
		return "native"
	case OriginSearchStub:
		return "search-stub"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

const (
	SourceYouTube      = "youtube"
	SourceYouTubeMusic = "ytmusic"
	SourceSpotify      = "spotify"
	SourceRadio        = "radio"
	SourceSoundCloud   = "soundcloud"
)

// Requester is the user who asked for a track.
type Requester struct {
	ID   string
	Name string
}

// Mention renders the requester as a Discord user mention.
func (r Requester) Mention() string {
	if r.ID == "" {
		return "unknown"
	}
	return "<@" + r.ID + ">"
}

// Track is a playable (or resolvable) audio item. Values are never mutated
// after construction; helpers return modified copies.
type Track struct {
	ID         string
	Title      string
	Author     string
	Length     time.Duration
	URI        string
	Thumbnail  string
	IsStream   bool
	IsSeekable bool
	Source     string
	Origin     Origin
	Requester  Requester

	// StreamURL is the direct media location opened by the transport. It may
	// be empty for native tracks whose URL expires; the transport then asks
	// the source to refresh it.
	StreamURL string
}

// IsStub reports whether the track needs resolving before it can be played.
func (t Track) IsStub() bool {
	return t.Origin == OriginSearchStub
}

// SearchQuery is the text used to match a stub against a playable source.
func (t Track) SearchQuery() string {
	if t.Author == "" {
		return t.Title
	}
	return t.Author + " - " + t.Title
}

// WithRequester returns a copy of t attributed to r.
func (t Track) WithRequester(r Requester) Track {
	t.Requester = r
	return t
}

// Display returns a markdown link when the URI is known.
func (t Track) Display() string {
	return t.DisplayShort(0)
}

// DisplayShort is Display with the title cut to n runes; n <= 0 keeps it whole.
func (t Track) DisplayShort(n int) string {
	title := t.Title
	if title == "" {
		title = t.URI
	}
	if title == "" {
		title = "Unknown track"
	}
	if n > 0 {
		title = Truncate(title, n)
	}
	if t.URI == "" {
		return title
	}
	return fmt.Sprintf("[%s](%s)", title, t.URI)
}
