package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Timer overrides edited from the settings view. Unset keys fall back to
// the config file.
const (
	SettingWork        = "pomodoro_work"
	SettingShortBreak  = "pomodoro_short_break"
	SettingLongBreak   = "pomodoro_long_break"
	SettingGrace       = "pomodoro_grace"
	SettingCycleLength = "pomodoro_cycle_length"
)

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get setting %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// GetSettingInt returns key as an integer. ok is false when the key is
// unset; a value that is not an integer is an error.
func (s *Store) GetSettingInt(key string) (v int, ok bool, err error) {
	raw, err := s.GetSetting(key)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("setting %q: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
