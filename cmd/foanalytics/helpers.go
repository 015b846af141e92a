package main

import (
	"context"
	"fmt"
	"os"

	foanalytics "github.com/adamgoral/fo-analytics-go"
	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://app.foanalytics.dev"

// newLogger builds the CLI logger; --verbose lowers the level to debug so
// the client's reconnect/heartbeat logging becomes visible.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

// resolveBaseURL prefers FOA_BASE_URL, then the config file, then the
// production default.
func resolveBaseURL(cfg *Config) string {
	if v := os.Getenv("FOA_BASE_URL"); v != "" {
		return v
	}
	if cfg.Default.BaseURL != "" {
		return cfg.Default.BaseURL
	}
	return defaultBaseURL
}

// tokenProvider resolves the credential on every connection attempt:
// FOA_TOKEN first, then the stored config token. Returning "" lets the
// client decline to connect until a credential appears.
func tokenProvider(cfg *Config) foanalytics.TokenProvider {
	return func(context.Context) (string, error) {
		if v := os.Getenv("FOA_TOKEN"); v != "" {
			return v, nil
		}
		return cfg.Auth.Token, nil
	}
}

// newRealtimeClient creates a realtime client from the resolved CLI
// configuration.
func newRealtimeClient() (*foanalytics.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	client := foanalytics.NewClient(
		resolveBaseURL(cfg),
		tokenProvider(cfg),
		foanalytics.WithLogger(newLogger()),
	)
	return client, nil
}

// maskToken hides all but the edges of a credential for display.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
