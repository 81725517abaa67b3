package track

// ResultKind describes what a lookup produced.
type ResultKind int

const (
	ResultTrack ResultKind = iota
	ResultPlaylist
	ResultSearch
)

func (k ResultKind) String() string {
	switch k {
	case ResultTrack:
		return "track"
	case ResultPlaylist:
		return "playlist"
	default:
		return "search"
	}
}

// SearchResult is what a resolver returns for a query or URL.
type SearchResult struct {
	Kind   ResultKind
	Source string
	Tracks []Track

	// Set for playlists and albums.
	Name string
	URL  string
}

// Empty reports whether the lookup found nothing playable.
func (r SearchResult) Empty() bool {
	return len(r.Tracks) == 0
}

// First returns the best match.
func (r SearchResult) First() (Track, bool) {
	if len(r.Tracks) == 0 {
		return Track{}, false
	}
	return r.Tracks[0], true
}
