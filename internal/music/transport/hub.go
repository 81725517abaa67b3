package transport

import (
	"sync"
	"time"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/stream"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const eventBuffer = 16

// Hub creates per-guild transports and routes gateway voice events to them.
type Hub struct {
	session *discordgo.Session
	locator StreamLocator
	opener  Opener
	stuck   time.Duration
	log     *zap.Logger

	mu         sync.Mutex
	transports map[string]*Discord
}

type HubConfig struct {
	Session *discordgo.Session
	Locator StreamLocator
	Opener  Opener
	// StuckThreshold defaults to stream.DefaultStuckThreshold.
	StuckThreshold time.Duration
	Logger         *zap.Logger
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Opener == nil {
		cfg.Opener = &stream.FFmpeg{Log: cfg.Logger}
	}
	return &Hub{
		session:    cfg.Session,
		locator:    cfg.Locator,
		opener:     cfg.Opener,
		stuck:      cfg.StuckThreshold,
		log:        cfg.Logger.Named("transport"),
		transports: make(map[string]*Discord),
	}
}

// New is a player.TransportFactory.
func (h *Hub) New(guildID string) (player.VoiceTransport, error) {
	d := &Discord{
		session: h.session,
		guildID: guildID,
		locator: h.locator,
		opener:  h.opener,
		encoder: stream.NewEncoder,
		stuck:   h.stuck,
		log:     h.log.With(zap.String("guild", guildID)),
		events:  make(chan player.TransportEvent, eventBuffer),
		volume:  player.DefaultVolume,
	}
	d.onClose = h.remove

	h.mu.Lock()
	h.transports[guildID] = d
	h.mu.Unlock()
	return d, nil
}

func (h *Hub) remove(d *Discord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.transports[d.guildID] == d {
		delete(h.transports, d.guildID)
	}
}

// Get returns the live transport for a guild.
func (h *Hub) Get(guildID string) (*Discord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.transports[guildID]
	return d, ok
}

// VoiceStateUpdate notices the bot being disconnected from voice by someone
// else and reports it to the guild's transport.
func (h *Hub) VoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if s.State == nil || s.State.User == nil || vs.UserID != s.State.User.ID {
		return
	}
	if vs.ChannelID != "" {
		return
	}
	d, ok := h.Get(vs.GuildID)
	if !ok || !d.IsConnected() {
		return
	}
	h.log.Warn("Bot was disconnected from voice", zap.String("guild", vs.GuildID))
	d.VoiceClosed(errForcedDisconnect)
}
