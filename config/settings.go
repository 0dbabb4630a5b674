// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Per-user state paths derived from the OS config directory

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"
)

// Settings holds all application configuration.
type Settings struct {
	Store     StoreConfig
	Bitwarden BitwardenConfig
	Dispatch  DispatchConfig
	Trigger   TriggerConfig
	Log       LogConfig
}

// StoreConfig holds local vault configuration.
type StoreConfig struct {
	DBPath   string
	StateDir string
}

// BitwardenConfig holds the `bw serve` connection.
type BitwardenConfig struct {
	Enabled bool
	URL     string
	Retries uint64
}

// DispatchConfig holds command dispatch configuration.
type DispatchConfig struct {
	Protector   string
	KeyFile     string
	Terminal    []string
	TimeoutSecs uint64
	IncludeTOTP bool
	Debug       bool
}

// TriggerConfig holds clipboard watcher configuration.
type TriggerConfig struct {
	PollInterval time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Pretty bool
}

// New loads settings from environment variables.
// Returns an error if an environment variable contains an invalid value.
func New() (Settings, error) {
	stateDir := os.Getenv("VAULTBRIDGE_STATE_DIR")
	if stateDir == "" {
		stateDir = defaultStateDir()
	}

	dbPath := os.Getenv("VAULTBRIDGE_DB")
	if dbPath == "" {
		dbPath = filepath.Join(stateDir, "vault.db")
	}

	protector := strings.ToLower(os.Getenv("VAULTBRIDGE_PROTECTOR"))
	if protector == "" {
		protector = "keyfile"
	}
	if protector != "keyfile" && protector != "age" {
		return Settings{}, fmt.Errorf("invalid value for VAULTBRIDGE_PROTECTOR: %q", protector)
	}

	keyFile := os.Getenv("VAULTBRIDGE_KEY_FILE")
	if keyFile == "" {
		keyFile = filepath.Join(stateDir, protector+".key")
	}

	terminal, err := getEnvFields("VAULTBRIDGE_TERMINAL")
	if err != nil {
		return Settings{}, err
	}

	pollMs, err := getEnvInt("VAULTBRIDGE_POLL_INTERVAL_MS", 500)
	if err != nil {
		return Settings{}, err
	}
	if pollMs <= 0 {
		return Settings{}, fmt.Errorf("invalid value for VAULTBRIDGE_POLL_INTERVAL_MS: %d", pollMs)
	}

	includeTOTP, err := getEnvBool("VAULTBRIDGE_INCLUDE_TOTP", true)
	if err != nil {
		return Settings{}, err
	}

	debug, err := getEnvBool("VAULTBRIDGE_DEBUG", false)
	if err != nil {
		return Settings{}, err
	}

	timeout, err := getEnvUint64("VAULTBRIDGE_COMMAND_TIMEOUT", 0)
	if err != nil {
		return Settings{}, err
	}

	bwEnabled, err := getEnvBool("BW_ENABLED", false)
	if err != nil {
		return Settings{}, err
	}

	bwRetries, err := getEnvUint64("BW_RETRIES", 3)
	if err != nil {
		return Settings{}, err
	}

	bwURL := os.Getenv("BW_SERVE_URL")
	if bwURL == "" {
		bwURL = "http://localhost:8087"
	}

	pretty, err := getEnvBool("LOG_PRETTY", true)
	if err != nil {
		return Settings{}, err
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	return Settings{
		Store: StoreConfig{
			DBPath:   dbPath,
			StateDir: stateDir,
		},
		Bitwarden: BitwardenConfig{
			Enabled: bwEnabled,
			URL:     bwURL,
			Retries: bwRetries,
		},
		Dispatch: DispatchConfig{
			Protector:   protector,
			KeyFile:     keyFile,
			Terminal:    terminal,
			TimeoutSecs: timeout,
			IncludeTOTP: includeTOTP,
			Debug:       debug,
		},
		Trigger: TriggerConfig{
			PollInterval: time.Duration(pollMs) * time.Millisecond,
		},
		Log: LogConfig{
			Level:  level,
			Pretty: pretty,
		},
	}, nil
}

// MustNew loads settings.
// Panics if environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vaultbridge")
	}
	return filepath.Join(os.TempDir(), "vaultbridge")
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint64(key string, defaultVal uint64) (uint64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}

// getEnvFields splits a command line with shell quoting rules.
// Variables are not expanded.
func getEnvFields(key string) ([]string, error) {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return nil, nil
	}
	fields, err := shell.Fields(val, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return fields, nil
}
