package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL     string        `toml:"server_url"`
	Timeout       time.Duration `toml:"timeout"`
	HistoryPath   string        `toml:"history_path"`
	DownloadDir   string        `toml:"download_dir"`
	LogPath       string        `toml:"log_path"`
	LogLevel      string        `toml:"log_level"`
	RecordHistory bool          `toml:"record_history"`
}

// Load reads ~/.config/docfill/config.toml on top of the defaults, then
// applies DOCFILL_* overrides from the environment (and a local .env file).
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(home, ".config", "docfill", "config.toml"), home)
}

// LoadFrom is Load with an explicit config file and home directory.
func LoadFrom(cfgPath, home string) (*Config, error) {
	cfg := Defaults(home)

	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	// a missing .env is the common case
	_ = godotenv.Load()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	// expand ~ in paths
	cfg.HistoryPath = expandHome(cfg.HistoryPath, home)
	cfg.DownloadDir = expandHome(cfg.DownloadDir, home)
	cfg.LogPath = expandHome(cfg.LogPath, home)

	return cfg, nil
}

func Defaults(home string) *Config {
	return &Config{
		ServerURL:     "http://localhost:8000",
		Timeout:       2 * time.Minute,
		HistoryPath:   filepath.Join(home, ".config", "docfill", "history.db"),
		DownloadDir:   ".",
		LogPath:       filepath.Join(home, ".config", "docfill", "docfill.log"),
		LogLevel:      "info",
		RecordHistory: true,
	}
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("DOCFILL_SERVER"); ok && v != "" {
		cfg.ServerURL = v
	}
	if v, ok := os.LookupEnv("DOCFILL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DOCFILL_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v, ok := os.LookupEnv("DOCFILL_DOWNLOAD_DIR"); ok && v != "" {
		cfg.DownloadDir = v
	}
	return nil
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
