package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server_url: https://cam.example.com\nusername: alice\nvideo_format: mp4\ndebug: true\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.ServerURL != "https://cam.example.com" || cfg.Username != "alice" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.VideoFormat != "mp4" || !cfg.Debug {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing config must not error: %v", err)
	}
	if cfg.ServerURL != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestLoadConfigFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server_url: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := ClientConfig{ServerURL: "http://cam.local", DataDir: t.TempDir()}
	cfg.ApplyDefaults()
	if cfg.VideoFormat != "webm" {
		t.Fatalf("expected webm default, got %q", cfg.VideoFormat)
	}
	if cfg.Page != "live" {
		t.Fatalf("expected live default, got %q", cfg.Page)
	}
	if cfg.LogFile != filepath.Join(cfg.DataDir, "seccam.log") {
		t.Fatalf("unexpected log file: %q", cfg.LogFile)
	}
	if cfg.DBPath() != filepath.Join(cfg.DataDir, "seccam.db") {
		t.Fatalf("unexpected db path: %q", cfg.DBPath())
	}
	if cfg.DownloadDir() != filepath.Join(cfg.DataDir, "clips") {
		t.Fatalf("unexpected download dir: %q", cfg.DownloadDir())
	}
}

func TestValidate(t *testing.T) {
	valid := ClientConfig{ServerURL: "http://cam.local", VideoFormat: "webm", Page: "live"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []ClientConfig{
		{VideoFormat: "webm", Page: "live"},
		{ServerURL: "ftp://cam.local", VideoFormat: "webm", Page: "live"},
		{ServerURL: "http://cam.local", VideoFormat: "avi", Page: "live"},
		{ServerURL: "http://cam.local", VideoFormat: "webm", Page: "dashboard"},
	}
	for i, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, cfg)
		}
	}
}

func TestDefaultDataDirHonorsOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SECCAM_DATA_DIR", dir)
	if got := DefaultDataDir(); got != dir {
		t.Fatalf("expected %q, got %q", dir, got)
	}
}
