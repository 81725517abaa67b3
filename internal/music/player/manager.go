package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/keshon/jukebox/pkg/jobmgr"

	"go.uber.org/zap"
)

// TransportFactory builds an unconnected transport for a guild.
type TransportFactory func(guildID string) (VoiceTransport, error)

type ManagerConfig struct {
	Transport TransportFactory
	Resolver  TrackResolver
	Messenger Messenger

	// Jobs runs the player loops. A manager bound to context.Background is
	// created when nil.
	Jobs    *jobmgr.Manager
	Options Options

	// GuildOptions adjusts the defaults per guild, e.g. from stored settings.
	GuildOptions func(guildID string, base Options) Options
	Logger       *zap.Logger
}

// Manager keeps at most one Player per guild.
type Manager struct {
	cfg ManagerConfig
	log *zap.Logger

	mu      sync.Mutex
	players map[string]*Player
	joining map[string]chan struct{}
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Jobs == nil {
		cfg.Jobs = jobmgr.NewManager(context.Background(), nil)
	}
	return &Manager{
		cfg:     cfg,
		log:     cfg.Logger,
		players: make(map[string]*Player),
		joining: make(map[string]chan struct{}),
	}
}

func jobName(p *Player) string {
	return "player:" + p.GuildID() + ":" + p.ID()
}

// Get returns the live session for a guild.
func (m *Manager) Get(guildID string) (*Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[guildID]
	return p, ok
}

// Join returns the guild's session, connecting to voiceChannelID and starting
// a new loop when there is none. An existing session is rebound to
// textChannelID and rejoins voiceChannelID if its connection was dropped.
func (m *Manager) Join(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*Player, error) {
	for {
		m.mu.Lock()
		if p, ok := m.players[guildID]; ok {
			m.mu.Unlock()
			if err := p.Reconnect(ctx, voiceChannelID); err != nil {
				return nil, err
			}
			if textChannelID != "" {
				p.SetTextChannel(textChannelID)
			}
			return p, nil
		}
		wait, busy := m.joining[guildID]
		if !busy {
			m.joining[guildID] = make(chan struct{})
			m.mu.Unlock()
			break
		}
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p, err := m.connect(ctx, guildID, voiceChannelID, textChannelID)

	m.mu.Lock()
	if err == nil {
		m.players[guildID] = p
	}
	close(m.joining[guildID])
	delete(m.joining, guildID)
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if err := m.cfg.Jobs.StartAsync(jobName(p), p.Run); err != nil {
		m.log.Error("Failed to start player loop", zap.String("guild", guildID), zap.Error(err))
		p.Destroy()
		return nil, err
	}
	go m.reap(p)
	return p, nil
}

func (m *Manager) connect(ctx context.Context, guildID, voiceChannelID, textChannelID string) (*Player, error) {
	transport, err := m.cfg.Transport(guildID)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	if err := transport.Connect(ctx, voiceChannelID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	opts := m.cfg.Options
	if m.cfg.GuildOptions != nil {
		opts = m.cfg.GuildOptions(guildID, opts)
	}

	p := New(Config{
		GuildID:        guildID,
		VoiceChannelID: voiceChannelID,
		TextChannelID:  textChannelID,
		Transport:      transport,
		Resolver:       m.cfg.Resolver,
		Messenger:      m.cfg.Messenger,
		Options:        opts,
		Logger:         m.log,
		OnClose:        m.forget,
	})
	m.log.Info("Voice session created",
		zap.String("guild", guildID),
		zap.String("voice_channel", voiceChannelID),
		zap.String("session", p.ID()))
	return p, nil
}

// reap unregisters a player whose loop ended without being destroyed.
func (m *Manager) reap(p *Player) {
	<-p.Done()
	m.forget(p)
}

func (m *Manager) forget(p *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.players[p.GuildID()] == p {
		delete(m.players, p.GuildID())
	}
}

// Destroy tears down the guild's session.
func (m *Manager) Destroy(guildID string) error {
	p, ok := m.Get(guildID)
	if !ok {
		return ErrNotConnected
	}
	p.Destroy()
	return nil
}

// Guilds returns the IDs of guilds with a live session.
func (m *Manager) Guilds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.players))
	for id := range m.players {
		out = append(out, id)
	}
	return out
}

// Shutdown destroys every session and waits for their loops to return.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	players := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	m.mu.Unlock()

	for _, p := range players {
		p.Destroy()
	}
	for _, p := range players {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
