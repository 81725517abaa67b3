package player

import (
	"context"
	"time"

	"github.com/keshon/jukebox/internal/music/track"

	"github.com/bwmarrin/discordgo"
)

type EventType int

const (
	EventTrackStarted EventType = iota
	EventTrackEnded
	EventTrackStuck
	EventTrackError
	EventWebsocketClosed
)

func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track-started"
	case EventTrackEnded:
		return "track-ended"
	case EventTrackStuck:
		return "track-stuck"
	case EventTrackError:
		return "track-error"
	case EventWebsocketClosed:
		return "websocket-closed"
	default:
		return "unknown"
	}
}

// TransportEvent is a playback notification emitted by a VoiceTransport.
type TransportEvent struct {
	Type    EventType
	GuildID string
	Track   track.Track
	Err     error
}

// VoiceTransport plays native tracks into one guild's voice channel.
// Every successful Play is followed by exactly one TrackEnded, TrackStuck
// or TrackError event, including when playback is cut short by Stop.
type VoiceTransport interface {
	Connect(ctx context.Context, channelID string) error
	Play(ctx context.Context, t track.Track) error
	Stop() error
	SetPaused(paused bool) error
	Seek(position time.Duration) error
	SetVolume(volume int) error
	Disconnect() error
	IsConnected() bool
	Position() time.Duration
	Events() <-chan TransportEvent
}

// TrackResolver turns a query or URL into playable tracks.
type TrackResolver interface {
	Search(ctx context.Context, query string) (track.SearchResult, error)
}

// Messenger posts to the session's bound text channel.
type Messenger interface {
	Send(channelID string, embed *discordgo.MessageEmbed) (messageID string, err error)
	Edit(channelID, messageID string, embed *discordgo.MessageEmbed) error
}
