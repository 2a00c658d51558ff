package main

import (
	"fmt"
	"os"

	crewdesk "github.com/crewdesk/crewdesk-go"
	"go.uber.org/zap"
)

// getClient creates a CrewDesk client from the stored configuration.
func getClient() (*crewdesk.Client, *Config) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.Token == "" {
		fmt.Fprintln(os.Stderr, "No session token. Run 'crewdesk login <token>' first.")
		os.Exit(1)
	}

	opts := []crewdesk.ClientOption{crewdesk.WithLogger(getLogger(cfg))}
	if cfg.Default.BaseURL != "" {
		opts = append(opts, crewdesk.WithBaseURL(cfg.Default.BaseURL))
	}
	return crewdesk.NewClient(cfg.Auth.Token, opts...), cfg
}

// getLogger builds a console logger at the configured level.
func getLogger(cfg *Config) *zap.Logger {
	level := zap.WarnLevel
	if cfg.Default.LogLevel != "" {
		if parsed, err := zap.ParseAtomicLevel(cfg.Default.LogLevel); err == nil {
			level = parsed.Level()
		}
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	log, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
