package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all agentmeter configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Report  ReportConfig  `toml:"report"`
	Live    LiveConfig    `toml:"live"`
}

// GeneralConfig covers preferences not tied to one subsystem.
type GeneralConfig struct {
	DefaultDays     int    `toml:"default_days"`
	AgentDir        string `toml:"agent_dir,omitempty"`
	StaleAfterHours int    `toml:"stale_after_hours"`
}

// ReportConfig holds report rendering preferences.
type ReportConfig struct {
	TopSuggestions int `toml:"top_suggestions"`
}

// LiveConfig holds settings for the live monitor service.
type LiveConfig struct {
	Addr             string `toml:"addr"`
	PollIntervalSecs int    `toml:"poll_interval_secs"`
}

// DefaultConfig returns the defaults used when no file exists.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultDays:     7,
			StaleAfterHours: 24,
		},
		Report: ReportConfig{
			TopSuggestions: 3,
		},
		Live: LiveConfig{
			Addr:             "127.0.0.1:8791",
			PollIntervalSecs: 10,
		},
	}
}

// ConfigDir returns the config directory, honoring XDG_CONFIG_HOME.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentmeter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "agentmeter")
}

// ConfigPath returns the config file location.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// RatesPath returns the full path to the user rate override file.
func RatesPath() string {
	return filepath.Join(ConfigDir(), "rates.toml")
}

// DataDir returns the XDG-compliant data directory where session event
// logs, transcript cursors, and the history database live.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentmeter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "agentmeter")
}

// AgentDir returns the host agent data directory (config override or ~/.claude).
func AgentDir(cfg Config) string {
	if cfg.General.AgentDir != "" {
		return cfg.General.AgentDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// Load reads the config file; a missing file yields the defaults.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config file, creating the directory if needed.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists reports whether a config file is present on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
