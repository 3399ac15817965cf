package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// ErrExists is returned by WriteFile when the file exists and overwrite
// was not requested.
var ErrExists = errors.New("config file already exists")

// WriteFile writes cfg as YAML in the layout Load reads.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	if cfg == nil {
		return fmt.Errorf("cfg must not be nil")
	}
	if path == "" {
		return fmt.Errorf("path must not be empty")
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"log_level": cfg.App.LogLevel,
			"log_path":  cfg.App.LogPath,
		},
		"storage": map[string]any{
			"db_path": cfg.Storage.DBPath,
		},
		"user": map[string]any{
			"id": cfg.User.ID,
		},
		"progression": map[string]any{
			"reward_direction": cfg.Progression.RewardDirection,
			"bonus_rate":       cfg.Progression.BonusRate,
			"reversal_rate":    cfg.Progression.ReversalRate,
			"ledger_capacity":  cfg.Progression.LedgerCapacity,
		},
		"pomodoro": map[string]any{
			"work_sec":        cfg.Pomodoro.WorkSec,
			"short_break_sec": cfg.Pomodoro.ShortBreakSec,
			"long_break_sec":  cfg.Pomodoro.LongBreakSec,
			"grace_sec":       cfg.Pomodoro.GraceSec,
			"cycle_length":    cfg.Pomodoro.CycleLength,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
