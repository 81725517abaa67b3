package player

type State int

const (
	StateIdle State = iota
	StateWaitingForTrack
	StateResolving
	StatePlaying
	StateAwaitingTrackEnd
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateWaitingForTrack:
		return "Waiting for track"
	case StateResolving:
		return "Resolving"
	case StatePlaying:
		return "Playing"
	case StateAwaitingTrackEnd:
		return "Awaiting track end"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// EmbedSize controls how much the controller message shows.
type EmbedSize string

const (
	EmbedSmall  EmbedSize = "small"
	EmbedMedium EmbedSize = "medium"
	EmbedLarge  EmbedSize = "large"
)

// ParseEmbedSize falls back to EmbedLarge for unknown values.
func ParseEmbedSize(s string) EmbedSize {
	switch EmbedSize(s) {
	case EmbedSmall, EmbedMedium, EmbedLarge:
		return EmbedSize(s)
	default:
		return EmbedLarge
	}
}
