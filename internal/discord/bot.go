// Package discord runs the gateway session, syncs slash commands and owns
// the per-guild music sessions.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/command/core"
	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/middleware"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/resolver"
	"github.com/keshon/jukebox/internal/music/stream"
	"github.com/keshon/jukebox/internal/music/transport"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/keshon/jukebox/pkg/jobmgr"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 15 * time.Second

type Options struct {
	Config   *config.Config
	Storage  *storage.Storage
	Resolver *resolver.Resolver
	// Jobs runs the player loops; optional.
	Jobs   *jobmgr.Manager
	Logger *zap.Logger
}

type Bot struct {
	session  *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	resolver *resolver.Resolver
	hub      *transport.Hub
	manager  *player.Manager
	log      *zap.Logger
	ctx      context.Context

	api      commandAPI
	registry *cmd.Registry
	limiter  *rate.Limiter
}

func New(opts Options) (*Bot, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if err := opts.Config.RequireToken(); err != nil {
		return nil, err
	}
	if opts.Storage == nil || opts.Resolver == nil {
		return nil, errors.New("storage and resolver are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	dg, err := discordgo.New("Bot " + opts.Config.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	log := opts.Logger.Named("discord")
	b := &Bot{
		session:  dg,
		cfg:      opts.Config,
		storage:  opts.Storage,
		resolver: opts.Resolver,
		log:      log,
		ctx:      context.Background(),
		api:      dg,
		registry: cmd.NewRegistry(),
		limiter:  rate.NewLimiter(rate.Every(commandWriteInterval), 1),
	}

	b.hub = transport.NewHub(transport.HubConfig{
		Session: dg,
		Locator: opts.Resolver,
		Opener:  &stream.FFmpeg{Path: opts.Config.FFmpegPath, Log: opts.Logger.Named("ffmpeg")},
		Logger:  opts.Logger,
	})
	b.manager = player.NewManager(player.ManagerConfig{
		Transport:    b.hub.New,
		Resolver:     opts.Resolver,
		Messenger:    messenger{session: dg},
		Jobs:         opts.Jobs,
		Options:      playerOptions(opts.Config),
		GuildOptions: b.guildOptions,
		Logger:       opts.Logger.Named("player"),
	})

	b.registerHandlers()
	return b, nil
}

// Sessions exposes the live voice sessions.
func (b *Bot) Sessions() *player.Manager { return b.manager }

func playerOptions(cfg *config.Config) player.Options {
	opts := player.DefaultOptions()
	opts.IdleTimeout = cfg.IdleTimeout
	opts.SettleDelay = cfg.SettleDelay
	opts.Volume = cfg.DefaultVolume
	opts.TerminateOnVoiceClose = cfg.TerminateOnVoiceClose
	return opts
}

func (b *Bot) registerHandlers() {
	command.RegisterCommand(b.registry,
		music.New(b, b.log),
		middleware.WithCommandLogger(b.log),
		middleware.WithUserPermissionCheck(),
		middleware.WithGroupAccessCheck(b.log),
		middleware.WithGuildOnly(),
	)
	command.RegisterCommand(b.registry,
		&core.MaintenanceCommand{Sessions: b.manager, Commands: b.registry, Refresh: b.registerCommands},
		middleware.WithCommandLogger(b.log),
		middleware.WithUserPermissionCheck(),
		middleware.WithGuildOnly(),
	)

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.hub.VoiceStateUpdate)
}

// Run opens the gateway and blocks until ctx is done, then tears down every
// voice session.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	b.log.Info("Shutdown signal received, cleaning up")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.manager.Shutdown(sctx); err != nil {
		b.log.Warn("Voice sessions did not stop in time", zap.Error(err))
	}
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}

// onReady leaves blacklisted guilds. With INIT_SLASH_COMMANDS set every
// guild's commands are re-created regardless of the cached hashes.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) || !b.cfg.InitSlashCommands {
			continue
		}
		if err := b.syncCommands(g.ID, true); err != nil {
			b.log.Error("Failed to register slash commands", zap.String("guild", g.ID), zap.Error(err))
		}
	}
	b.log.Info("Discord bot is running",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

// onGuildCreate fires for new guilds and for every guild after Ready.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	if err := b.registerCommands(g.ID); err != nil {
		b.log.Error("Failed to register commands for guild", zap.String("guild", g.ID), zap.Error(err))
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.cfg.Blacklisted(guildID) {
		return false
	}
	b.log.Info("Leaving blacklisted guild", zap.String("guild", guildID))
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error("Failed to leave guild", zap.String("guild", guildID), zap.Error(err))
	}
	return true
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		c := b.registry.Get(name)
		if c == nil {
			b.log.Warn("Unknown command", zap.String("command", name))
			return
		}
		b.dispatch(s, i, c, &command.SlashInteractionContext{Session: s, Event: i, Storage: b.storage})

	case discordgo.InteractionMessageComponent:
		id := i.MessageComponentData().CustomID
		name, _, found := strings.Cut(id, ":")
		c := b.registry.Get(name)
		if !found || c == nil {
			b.log.Warn("No command for component", zap.String("custom_id", id))
			return
		}
		b.dispatch(s, i, c, &command.ComponentInteractionContext{Session: s, Event: i, Storage: b.storage})
	}
}

func (b *Bot) dispatch(s *discordgo.Session, i *discordgo.InteractionCreate, c cmd.Command, data interface{}) {
	if err := c.Run(b.ctx, &cmd.Invocation{Data: data}); err != nil {
		b.log.Error("Command failed", zap.String("command", c.Name()), zap.Error(err))
		_ = command.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Error running command: %v", err),
			Color:       command.EmbedColor,
		})
	}
}
