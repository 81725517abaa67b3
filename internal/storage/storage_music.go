package storage

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEmbedSize = errors.New("embed size must be small, medium or large")
	ErrInvalidVolume    = errors.New("volume must be between 1 and 200")
)

func (s *Storage) GetMusicSettings(guildID string) (MusicSettings, error) {
	r, err := s.view(guildID)
	if err != nil {
		return MusicSettings{}, err
	}
	return r.Music, nil
}

func (s *Storage) SetEmbedSize(guildID, size string) error {
	switch size {
	case "small", "medium", "large":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEmbedSize, size)
	}
	return s.update(guildID, func(r *Record) error {
		r.Music.EmbedSize = size
		return nil
	})
}

// SetDefaultVolume stores the volume new sessions in the guild start at.
func (s *Storage) SetDefaultVolume(guildID string, volume int) error {
	if volume < 1 || volume > 200 {
		return fmt.Errorf("%w: %d", ErrInvalidVolume, volume)
	}
	return s.update(guildID, func(r *Record) error {
		r.Music.DefaultVolume = volume
		return nil
	})
}

// ResetMusicSettings drops the guild overrides.
func (s *Storage) ResetMusicSettings(guildID string) error {
	return s.update(guildID, func(r *Record) error {
		r.Music = MusicSettings{}
		return nil
	})
}
