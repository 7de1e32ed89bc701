// Package config handles TOML-based configuration loading and validation.
// Values are layered: defaults < config file < environment < CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const appName = "clipdeck"

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config holds all application configuration.
type Config struct {
	DownloadDir string `toml:"download_dir"`

	Server  ServerConfig  `toml:"server"`
	Tools   ToolsConfig   `toml:"tools"`
	History HistoryConfig `toml:"history"`
	Mirror  MirrorConfig  `toml:"mirror"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// RateLimit is tool-spawning requests per second across all clients; 0 disables it.
	RateLimit       float64  `toml:"rate_limit"`
	Burst           int      `toml:"burst"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type ToolsConfig struct {
	YtDlp  string `toml:"ytdlp"`
	FFmpeg string `toml:"ffmpeg"`
	// Timeout bounds a single tool invocation; 0 means no limit.
	Timeout Duration `toml:"timeout"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// MirrorConfig enables S3 uploads of finished downloads when Bucket is set.
type MirrorConfig struct {
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DownloadDir: "./downloads",
		Server: ServerConfig{
			Addr:            ":3001",
			Burst:           5,
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Tools: ToolsConfig{
			YtDlp:  "yt-dlp",
			FFmpeg: "ffmpeg",
		},
		History: HistoryConfig{Enabled: true},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file at path (or the default location when path is
// empty), then applies .env files and CLIPDECK_* environment variables.
// A missing default config file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Existing process variables win over .env entries.
	if files := existing(".env.local", ".env"); len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("loading env files: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func existing(names ...string) []string {
	var out []string
	for _, n := range names {
		if _, err := os.Stat(n); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// applyEnv overlays CLIPDECK_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("CLIPDECK_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CLIPDECK_DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv("CLIPDECK_YTDLP"); v != "" {
		c.Tools.YtDlp = v
	}
	if v := os.Getenv("CLIPDECK_FFMPEG"); v != "" {
		c.Tools.FFmpeg = v
	}
	if v := os.Getenv("CLIPDECK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CLIPDECK_MIRROR_BUCKET"); v != "" {
		c.Mirror.Bucket = v
	}
	if v := os.Getenv("CLIPDECK_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CLIPDECK_RATE_LIMIT: %w", err)
		}
		c.Server.RateLimit = f
	}
	return nil
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return fmt.Errorf("burst must be at least 1 when rate limiting is enabled")
	}
	if c.Server.ShutdownTimeout.Duration < 0 || c.Tools.Timeout.Duration < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("unsupported log level %q (valid: trace, debug, info, warn, error)", c.Log.Level)
	}

	validFormats := map[string]bool{
		"auto": true, "console": true, "json": true,
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		return fmt.Errorf("unsupported log format %q (valid: auto, console, json)", c.Log.Format)
	}

	return nil
}

// ExpandDownloadDir resolves ~ in the download directory path.
func (c *Config) ExpandDownloadDir() (string, error) {
	return expand(c.DownloadDir)
}

// HistoryPath returns the journal database path, defaulting to
// $XDG_DATA_HOME/clipdeck/history.db.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return expand(c.History.Path)
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, appName, "history.db"), nil
}

func expand(dir string) (string, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}
