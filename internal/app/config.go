package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ClientConfig defines the parameters the TUI client needs. Values come from
// an optional YAML file, overridden by SECCAM_* environment variables and
// command-line flags (handled in cmd/seccam).
type ClientConfig struct {
	ServerURL   string `yaml:"server_url"`
	Username    string `yaml:"username"`
	VideoFormat string `yaml:"video_format"`
	DataDir     string `yaml:"data_dir"`
	LogFile     string `yaml:"log_file"`
	Debug       bool   `yaml:"debug"`

	// Page is the surface to open once authenticated: "live" or "videos".
	Page string `yaml:"-"`
}

// LoadConfigFile reads a YAML config. A missing file is not an error; the
// zero config plus defaults is a valid starting point.
func LoadConfigFile(path string) (ClientConfig, error) {
	var cfg ClientConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills the blanks so the rest of the program never checks for
// empty fields.
func (cfg *ClientConfig) ApplyDefaults() {
	if cfg.VideoFormat == "" {
		cfg.VideoFormat = "webm"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "seccam.log")
	}
	if cfg.Page == "" {
		cfg.Page = "live"
	}
}

// Validate rejects configurations the client cannot run with.
func (cfg *ClientConfig) Validate() error {
	if cfg.ServerURL == "" {
		return errors.New("server URL is required")
	}
	parsed, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("server URL must be http or https, got %q", parsed.Scheme)
	}
	if cfg.VideoFormat != "webm" && cfg.VideoFormat != "mp4" {
		return fmt.Errorf("video format must be webm or mp4, got %q", cfg.VideoFormat)
	}
	if cfg.Page != "live" && cfg.Page != "videos" {
		return fmt.Errorf("page must be live or videos, got %q", cfg.Page)
	}
	return nil
}

// DBPath is where the local cache database lives.
func (cfg *ClientConfig) DBPath() string {
	return filepath.Join(cfg.DataDir, "seccam.db")
}

// DownloadDir is where recorded clips land for playback.
func (cfg *ClientConfig) DownloadDir() string {
	return filepath.Join(cfg.DataDir, "clips")
}

// DefaultDataDir returns a per-user data path for the cache, log, and
// downloaded clips.
func DefaultDataDir() string {
	if env := os.Getenv("SECCAM_DATA_DIR"); env != "" {
		return env
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "seccam")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Seccam")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Seccam")
		}
		return filepath.Join(home, ".local", "share", "seccam")
	}
	return filepath.Join(".", ".seccam")
}

// NewLogger builds the file-backed logger. The TUI owns the terminal, so
// nothing may write to stdout or stderr while it runs.
func NewLogger(cfg ClientConfig) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	zapCfg := zap.NewProductionConfig()
	if cfg.Debug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.OutputPaths = []string{cfg.LogFile}
	zapCfg.ErrorOutputPaths = []string{cfg.LogFile}
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
