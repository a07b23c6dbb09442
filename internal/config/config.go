// Package config loads engine configuration from the environment, the same
// env-var-with-default pattern used throughout this codebase's services.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Config holds everything the scan-api and scan-worker binaries need at
// startup.
type Config struct {
	Addr                string
	ScanDBPath          string
	HITLTimeoutSeconds  int
	HITLDefaultDecision string
	LogLevel            string
	GitHubToken         string
	DockerHost          string
	TemporalHostPort    string
	TemporalNamespace   string
	TemporalTaskQueue   string
	TelegramBotToken    string
	TelegramChatID      string
}

// Load reads Config from the environment, applying defaults and validating
// required fields.
func Load() (Config, error) {
	cfg := Config{
		Addr:                env("DEPLAI_HTTP_ADDR", ":8080"),
		ScanDBPath:          env("DEPLAI_SCAN_DB_PATH", "./data/scans.db"),
		HITLDefaultDecision: strings.ToLower(env("DEPLAI_HITL_DEFAULT_DECISION", "reject")),
		LogLevel:            strings.ToLower(env("SCAN_LOG_LEVEL", "info")),
		GitHubToken:         env("DEPLAI_GITHUB_TOKEN", ""),
		DockerHost:          env("DEPLAI_DOCKER_HOST", ""),
		TemporalHostPort:    env("TEMPORAL_HOST_PORT", "localhost:7233"),
		TemporalNamespace:   env("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue:   env("TEMPORAL_TASK_QUEUE", "deplai-scan"),
		TelegramBotToken:    env("DEPLAI_TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:      env("DEPLAI_TELEGRAM_CHAT_ID", ""),
	}

	timeoutRaw := env("DEPLAI_HITL_TIMEOUT_SECONDS", "60")
	timeout, err := strconv.Atoi(timeoutRaw)
	if err != nil || timeout <= 0 {
		return Config{}, errors.New("DEPLAI_HITL_TIMEOUT_SECONDS must be a positive integer")
	}
	cfg.HITLTimeoutSeconds = timeout

	if cfg.HITLDefaultDecision != "approve" && cfg.HITLDefaultDecision != "reject" {
		return Config{}, errors.New("DEPLAI_HITL_DEFAULT_DECISION must be approve or reject")
	}

	if cfg.ScanDBPath == "" {
		return Config{}, errors.New("missing DEPLAI_SCAN_DB_PATH")
	}

	return cfg, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
