package storage

import "slices"

// AppendCommandToHistory keeps the last commandHistoryLimit invocations.
func (s *Storage) AppendCommandToHistory(guildID string, entry CommandHistory) error {
	return s.update(guildID, func(r *Record) error {
		r.CommandsHistory = append(r.CommandsHistory, entry)
		if n := len(r.CommandsHistory); n > commandHistoryLimit {
			r.CommandsHistory = r.CommandsHistory[n-commandHistoryLimit:]
		}
		return nil
	})
}

func (s *Storage) GetCommandsHistory(guildID string) ([]CommandHistory, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandsHistory, nil
}

func (s *Storage) DisableGroup(guildID, group string) error {
	return s.update(guildID, func(r *Record) error {
		if !slices.Contains(r.CommandsDisabled, group) {
			r.CommandsDisabled = append(r.CommandsDisabled, group)
		}
		return nil
	})
}

func (s *Storage) EnableGroup(guildID, group string) error {
	return s.update(guildID, func(r *Record) error {
		r.CommandsDisabled = slices.DeleteFunc(r.CommandsDisabled, func(g string) bool { return g == group })
		return nil
	})
}

func (s *Storage) IsGroupDisabled(guildID, group string) (bool, error) {
	r, err := s.view(guildID)
	if err != nil {
		return false, err
	}
	return slices.Contains(r.CommandsDisabled, group), nil
}

func (s *Storage) GetDisabledGroups(guildID string) ([]string, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandsDisabled, nil
}

// CommandHashes returns the definition hashes last registered with Discord
// for the guild.
func (s *Storage) CommandHashes(guildID string) (map[string]string, error) {
	r, err := s.view(guildID)
	if err != nil {
		return nil, err
	}
	return r.CommandHashes, nil
}

func (s *Storage) SetCommandHashes(guildID string, hashes map[string]string) error {
	return s.update(guildID, func(r *Record) error {
		r.CommandHashes = hashes
		return nil
	})
}
