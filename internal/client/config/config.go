// Package config resolves client settings from the environment, with an
// optional INI file override for people who prefer a config file over
// exported variables.
package config

import (
	"os"
	"time"

	"gopkg.in/ini.v1"
)

const (
	// DefaultAPIBaseURL is the local development origin.
	DefaultAPIBaseURL = "http://localhost:8000"

	envAPIBaseURL = "REMINDCALL_API_URL"
	envLogLevel   = "REMINDCALL_LOG_LEVEL"
	envConfigFile = "REMINDCALL_CONFIG"
)

type Config struct {
	APIBaseURL     string
	LogLevel       string
	ReconnectDelay time.Duration
}

// Load resolves configuration: defaults, then the INI file when present,
// then environment variables on top.
func Load() Config {
	cfg := Config{
		APIBaseURL:     DefaultAPIBaseURL,
		LogLevel:       "info",
		ReconnectDelay: 3 * time.Second,
	}
	loadFromINI(&cfg, configFilePath())
	if v := os.Getenv(envAPIBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

func configFilePath() string {
	if v := os.Getenv(envConfigFile); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + string(os.PathSeparator) + ".remindcall.ini"
}

func loadFromINI(cfg *Config, path string) {
	if path == "" {
		return
	}
	f, err := ini.Load(path)
	if err != nil {
		// Missing file is the normal case; the defaults stand.
		return
	}
	sec := f.Section("api")
	if v := sec.Key("base_url").String(); v != "" {
		cfg.APIBaseURL = v
	}
	if v := f.Section("log").Key("level").String(); v != "" {
		cfg.LogLevel = v
	}
	if v := f.Section("live").Key("reconnect_delay").String(); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ReconnectDelay = d
		}
	}
}
