package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/priyanshu00007/moment/internal/pomodoro"
	"github.com/priyanshu00007/moment/internal/progress"
	"github.com/priyanshu00007/moment/internal/rank"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. MOMENT_USER_ID.
const EnvPrefix = "MOMENT"

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Storage     StorageConfig     `mapstructure:"storage"`
	User        UserConfig        `mapstructure:"user"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Pomodoro    PomodoroConfig    `mapstructure:"pomodoro"`
}

type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

type StorageConfig struct {
	// DBPath empty means the per-user default location.
	DBPath string `mapstructure:"db_path"`
}

type UserConfig struct {
	ID string `mapstructure:"id"`
}

type ProgressionConfig struct {
	RewardDirection string  `mapstructure:"reward_direction"`
	BonusRate       float64 `mapstructure:"bonus_rate"`
	ReversalRate    float64 `mapstructure:"reversal_rate"`
	LedgerCapacity  int     `mapstructure:"ledger_capacity"`
}

type PomodoroConfig struct {
	WorkSec       int `mapstructure:"work_sec"`
	ShortBreakSec int `mapstructure:"short_break_sec"`
	LongBreakSec  int `mapstructure:"long_break_sec"`
	GraceSec      int `mapstructure:"grace_sec"`
	CycleLength   int `mapstructure:"cycle_length"`
}

// Load reads configPath, or config.yaml from the default search path when
// configPath is empty. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := DefaultConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (configPath != "" && errors.Is(err, os.ErrNotExist)) {
			slog.Debug("config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Storage.DBPath = expandHome(cfg.Storage.DBPath)
	cfg.App.LogPath = expandHome(cfg.App.LogPath)
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")

	v.SetDefault("storage.db_path", "")

	v.SetDefault("user.id", "local")

	v.SetDefault("progression.reward_direction", string(rank.Descending))
	v.SetDefault("progression.bonus_rate", rank.DefaultBonusRate)
	v.SetDefault("progression.reversal_rate", progress.DefaultReversalRate)
	v.SetDefault("progression.ledger_capacity", progress.DefaultLedgerCapacity)

	d := pomodoro.DefaultDurations()
	v.SetDefault("pomodoro.work_sec", d.Work)
	v.SetDefault("pomodoro.short_break_sec", d.ShortBreak)
	v.SetDefault("pomodoro.long_break_sec", d.LongBreak)
	v.SetDefault("pomodoro.grace_sec", d.Grace)
	v.SetDefault("pomodoro.cycle_length", d.CycleLength)
}

// Validate rejects values the engines would silently replace.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.User.ID) == "" {
		return fmt.Errorf("user.id must not be empty")
	}
	if _, err := rank.ParseDirection(c.Progression.RewardDirection); err != nil {
		return fmt.Errorf("progression.reward_direction: %w", err)
	}
	if c.Progression.BonusRate < 0 || c.Progression.BonusRate > 1 {
		return fmt.Errorf("progression.bonus_rate must be within [0, 1], got %v", c.Progression.BonusRate)
	}
	if c.Progression.ReversalRate < 0 || c.Progression.ReversalRate > 1 {
		return fmt.Errorf("progression.reversal_rate must be within [0, 1], got %v", c.Progression.ReversalRate)
	}
	if c.Progression.LedgerCapacity < 1 {
		return fmt.Errorf("progression.ledger_capacity must be positive, got %d", c.Progression.LedgerCapacity)
	}
	p := c.Pomodoro
	if p.WorkSec < 1 || p.ShortBreakSec < 1 || p.LongBreakSec < 1 || p.CycleLength < 1 {
		return fmt.Errorf("pomodoro durations and cycle_length must be positive")
	}
	if p.GraceSec < 0 {
		return fmt.Errorf("pomodoro.grace_sec must not be negative, got %d", p.GraceSec)
	}
	return nil
}

// Durations converts the pomodoro section for the timer.
func (c *Config) Durations() pomodoro.Durations {
	return pomodoro.Durations{
		Work:        c.Pomodoro.WorkSec,
		ShortBreak:  c.Pomodoro.ShortBreakSec,
		LongBreak:   c.Pomodoro.LongBreakSec,
		Grace:       c.Pomodoro.GraceSec,
		CycleLength: c.Pomodoro.CycleLength,
	}
}

// RankOptions converts the progression section for the rank engine.
func (c *Config) RankOptions() rank.Options {
	dir, _ := rank.ParseDirection(c.Progression.RewardDirection)
	return rank.Options{Direction: dir, BonusRate: c.Progression.BonusRate}
}

// DefaultConfigDir returns ~/.config/moment
func DefaultConfigDir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "moment"), nil
}

// DefaultConfigPath returns ~/.config/moment/config.yaml
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
