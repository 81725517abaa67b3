// Package storage keeps per-guild bot state in the JSON datastore.
package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/keshon/jukebox/datastore"

	"go.uber.org/zap"
)

const commandHistoryLimit = 20

type CommandHistory struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Datetime    time.Time `json:"datetime"`
}

// MusicSettings are the per-guild player defaults. Zero values mean
// "use the process default".
type MusicSettings struct {
	EmbedSize     string `json:"embed_size,omitempty"`
	DefaultVolume int    `json:"default_volume,omitempty"`
}

type Record struct {
	CommandsHistory  []CommandHistory  `json:"cmd_history"`
	CommandsDisabled []string          `json:"cmd_disabled"`
	CommandHashes    map[string]string `json:"cmd_hashes,omitempty"`
	Music            MusicSettings     `json:"music"`
}

type Storage struct {
	ds *datastore.DataStore

	// mu serialises read-modify-write cycles on guild records.
	mu sync.Mutex
}

func New(filePath string, log *zap.Logger) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.Logger = log
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// NewWithStore wraps an already opened datastore.
func NewWithStore(ds *datastore.DataStore) *Storage {
	return &Storage{ds: ds}
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// Guilds lists every guild with a stored record.
func (s *Storage) Guilds() []string {
	return s.ds.Keys()
}

func (s *Storage) record(guildID string) (*Record, error) {
	var r Record
	if _, err := s.ds.Get(guildID, &r); err != nil {
		return nil, fmt.Errorf("load guild %s: %w", guildID, err)
	}
	if r.CommandHashes == nil {
		r.CommandHashes = map[string]string{}
	}
	if len(r.CommandsHistory) > commandHistoryLimit {
		r.CommandsHistory = r.CommandsHistory[len(r.CommandsHistory)-commandHistoryLimit:]
	}
	return &r, nil
}

// update applies fn to the guild record and stores the result.
func (s *Storage) update(guildID string, fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.record(guildID)
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	if err := s.ds.Put(guildID, r); err != nil {
		return fmt.Errorf("store guild %s: %w", guildID, err)
	}
	return nil
}

func (s *Storage) view(guildID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record(guildID)
}
