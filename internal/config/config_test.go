package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	cfg, err := Load("does-not-exist.env")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoragePath != "data/datastore.json" {
		t.Errorf("StoragePath = %q", cfg.StoragePath)
	}
	if cfg.IdleTimeout != 300*time.Second || cfg.SettleDelay != 500*time.Millisecond {
		t.Errorf("timeouts = %s, %s", cfg.IdleTimeout, cfg.SettleDelay)
	}
	if cfg.DefaultVolume != 100 || cfg.SearchCacheTTL != time.Hour {
		t.Errorf("volume = %d, ttl = %s", cfg.DefaultVolume, cfg.SearchCacheTTL)
	}
	if err := cfg.RequireToken(); err != nil {
		t.Errorf("RequireToken = %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_GUILD_BLACKLIST", "1,2")
	t.Setenv("MUSIC_IDLE_TIMEOUT", "1m")
	t.Setenv("MUSIC_TERMINATE_ON_VOICE_CLOSE", "true")
	cfg, err := Load("does-not-exist.env")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Blacklisted("2") || cfg.Blacklisted("3") {
		t.Errorf("blacklist = %v", cfg.GuildBlacklist)
	}
	if cfg.IdleTimeout != time.Minute || !cfg.TerminateOnVoiceClose {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"MUSIC_DEFAULT_VOLUME": "201",
		"MUSIC_IDLE_TIMEOUT":   "0s",
		"MUSIC_SETTLE_DELAY":   "-1s",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load("does-not-exist.env"); err == nil {
				t.Fatalf("%s=%s accepted", key, val)
			}
		})
	}
}

func TestRequireToken(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireToken(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("RequireToken = %v", err)
	}
}
