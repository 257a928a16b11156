package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"seccam/internal"
	"seccam/internal/app"
)

func main() {
	flagSet := flag.NewFlagSet("seccam", flag.ExitOnError)
	configPath := flagSet.String("config", envOrDefault("SECCAM_CONFIG", defaultConfigPath()), "path to the YAML config file")
	serverURL := flagSet.String("server-url", envOrDefault("SECCAM_SERVER", ""), "camera server base URL (http or https)")
	username := flagSet.String("user", envOrDefault("SECCAM_USER", ""), "default username for login prompts")
	videoFormat := flagSet.String("video-format", envOrDefault("SECCAM_VIDEO_FORMAT", ""), "recording format to list: webm or mp4")
	dataDir := flagSet.String("data-dir", envOrDefault("SECCAM_DATA_DIR", ""), "directory for the local cache, log, and downloaded clips")
	debug := flagSet.Bool("debug", false, "verbose logging")
	showVersion := flagSet.Bool("version", false, "print the version and exit")
	flagSet.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("seccam %s\n", internal.Version)
		return
	}

	page := ""
	if remaining := flagSet.Args(); len(remaining) > 0 {
		page = strings.ToLower(remaining[0])
	}

	cfg, err := app.LoadConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seccam: %v\n", err)
		os.Exit(1)
	}

	// flags and env win over the config file
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *username != "" {
		cfg.Username = *username
	}
	if *videoFormat != "" {
		cfg.VideoFormat = *videoFormat
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *debug {
		cfg.Debug = true
	}
	cfg.Page = page

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "seccam: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg + "/seccam/config.yaml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.config/seccam/config.yaml"
	}
	return "seccam.yaml"
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
