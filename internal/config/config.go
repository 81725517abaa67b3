// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken      string   `env:"DISCORD_TOKEN"`
	GuildBlacklist    []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	StoragePath       string   `env:"STORAGE_PATH" envDefault:"data/datastore.json"`
	InitSlashCommands bool     `env:"INIT_SLASH_COMMANDS" envDefault:"false"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`

	IdleTimeout           time.Duration `env:"MUSIC_IDLE_TIMEOUT" envDefault:"300s"`
	SettleDelay           time.Duration `env:"MUSIC_SETTLE_DELAY" envDefault:"500ms"`
	DefaultVolume         int           `env:"MUSIC_DEFAULT_VOLUME" envDefault:"100"`
	TerminateOnVoiceClose bool          `env:"MUSIC_TERMINATE_ON_VOICE_CLOSE" envDefault:"false"`

	YouTubeProxy        string        `env:"YOUTUBE_PROXY"`
	YtdlpFallback       bool          `env:"YTDLP_FALLBACK" envDefault:"false"`
	SpotifyClientID     string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string        `env:"SPOTIFY_CLIENT_SECRET"`
	RedisURL            string        `env:"REDIS_URL"`
	SearchCacheTTL      time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"1h"`
	FFmpegPath          string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
}

var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

// Load reads .env (when present) and the process environment. The Discord
// token is only required by commands that connect to the gateway, so it is
// checked by RequireToken rather than here.
func Load(files ...string) (*Config, error) {
	// A missing .env is fine: the environment may be set by the host.
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultVolume < 0 || c.DefaultVolume > 200 {
		return fmt.Errorf("MUSIC_DEFAULT_VOLUME must be between 0 and 200, got %d", c.DefaultVolume)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("MUSIC_IDLE_TIMEOUT must be positive, got %s", c.IdleTimeout)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("MUSIC_SETTLE_DELAY must not be negative, got %s", c.SettleDelay)
	}
	return nil
}

func (c *Config) RequireToken() error {
	if c.DiscordToken == "" {
		return ErrMissingToken
	}
	return nil
}

// Blacklisted reports whether the bot should ignore a guild.
func (c *Config) Blacklisted(guildID string) bool {
	for _, id := range c.GuildBlacklist {
		if id == guildID {
			return true
		}
	}
	return false
}
