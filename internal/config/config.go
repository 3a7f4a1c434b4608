package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultAPIURL = "http://localhost:5000/api"

type Config struct {
	// APIURL is the backend base URL including the /api prefix.
	APIURL string `yaml:"api_url"`

	// SessionFile is where the credential and cached user are persisted between runs.
	SessionFile string `yaml:"session_file"`

	// Timeout bounds every HTTP request to the backend.
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit is outgoing requests per second (0 disables limiting). RateBurst is the bucket size.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// NotifyLogout sends POST /logout with the old credential after the local clear.
	NotifyLogout bool `yaml:"notify_logout"`

	// LogFormat is "text" (default) or "json". LogLevel is debug|info|warn|error.
	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`
}

// Load builds the configuration from, in increasing precedence: built-in
// defaults, the YAML config file, a .env file in the working directory, and
// the process environment.
func Load() (Config, error) {
	// A missing .env is normal; existing environment variables win over it.
	_ = godotenv.Load()

	cfg := Config{
		APIURL:       defaultAPIURL,
		SessionFile:  defaultSessionFile(),
		Timeout:      15 * time.Second,
		RateBurst:    5,
		NotifyLogout: true,
		LogFormat:    "text",
		LogLevel:     "info",
	}

	if err := loadFile(configFilePath(), &cfg); err != nil {
		return cfg, err
	}

	cfg.APIURL = strings.TrimRight(getEnv("PICKEM_API_URL", cfg.APIURL), "/")
	cfg.SessionFile = getEnv("PICKEM_SESSION_FILE", cfg.SessionFile)
	if secs := getEnvInt("PICKEM_TIMEOUT_SECONDS", 0); secs > 0 {
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	cfg.RateLimit = getEnvFloat("PICKEM_RATE_LIMIT", cfg.RateLimit)
	cfg.RateBurst = getEnvInt("PICKEM_RATE_BURST", cfg.RateBurst)
	cfg.NotifyLogout = getEnvBool("PICKEM_NOTIFY_LOGOUT", cfg.NotifyLogout)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if cfg.Timeout <= 0 {
		return cfg, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}

// loadFile overlays the YAML file at path onto cfg. A missing file is not an error.
func loadFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func configFilePath() string {
	if v := os.Getenv("PICKEM_CONFIG"); v != "" {
		return v
	}
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "pickem", "config.yaml")
}

func defaultSessionFile() string {
	dir := configDir()
	if dir == "" {
		return filepath.Join(os.TempDir(), "pickem-session.json")
	}
	return filepath.Join(dir, "pickem", "session.json")
}

// configDir returns $XDG_CONFIG_HOME or ~/.config.
func configDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
