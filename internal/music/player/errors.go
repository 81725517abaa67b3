package player

import (
	"errors"

	"github.com/keshon/jukebox/internal/music/queue"
)

var (
	ErrNoTrackPlaying  = errors.New("no track is currently playing")
	ErrQueueEmpty      = errors.New("no tracks in queue")
	ErrNotSeekable     = errors.New("track is not seekable")
	ErrNotConnected    = errors.New("not connected to a voice channel")
	ErrInvalidPosition = queue.ErrInvalidPosition
	ErrInvalidVolume   = errors.New("volume must be between 0 and 200")
	ErrNoMatches       = errors.New("no matches found")
	ErrSessionClosed   = errors.New("player session is closed")
)

const MaxVolume = 200
