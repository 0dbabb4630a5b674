package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestNewDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VAULTBRIDGE_STATE_DIR", dir)

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Store.DBPath != filepath.Join(dir, "vault.db") {
		t.Errorf("unexpected db path %q", settings.Store.DBPath)
	}
	if settings.Dispatch.Protector != "keyfile" {
		t.Errorf("expected keyfile protector, got %q", settings.Dispatch.Protector)
	}
	if settings.Dispatch.KeyFile != filepath.Join(dir, "keyfile.key") {
		t.Errorf("unexpected key file %q", settings.Dispatch.KeyFile)
	}
	if settings.Trigger.PollInterval != 500*time.Millisecond {
		t.Errorf("unexpected poll interval %v", settings.Trigger.PollInterval)
	}
	if settings.Bitwarden.Enabled {
		t.Error("expected Bitwarden disabled by default")
	}
	if settings.Bitwarden.Retries != 3 {
		t.Errorf("expected 3 retries, got %d", settings.Bitwarden.Retries)
	}
	if !settings.Dispatch.IncludeTOTP {
		t.Error("expected TOTP included by default")
	}
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("VAULTBRIDGE_STATE_DIR", t.TempDir())
	t.Setenv("VAULTBRIDGE_PROTECTOR", "AGE")
	t.Setenv("VAULTBRIDGE_TERMINAL", `x-terminal-emulator -T "vault bridge" -e`)
	t.Setenv("VAULTBRIDGE_POLL_INTERVAL_MS", "250")
	t.Setenv("VAULTBRIDGE_DEBUG", "true")
	t.Setenv("VAULTBRIDGE_COMMAND_TIMEOUT", "60")
	t.Setenv("BW_ENABLED", "1")
	t.Setenv("BW_SERVE_URL", "http://127.0.0.1:9000")

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Dispatch.Protector != "age" {
		t.Errorf("expected age protector, got %q", settings.Dispatch.Protector)
	}
	want := []string{"x-terminal-emulator", "-T", "vault bridge", "-e"}
	if diff := cmp.Diff(want, settings.Dispatch.Terminal); diff != "" {
		t.Errorf("terminal mismatch (-want +got):\n%s", diff)
	}
	if settings.Trigger.PollInterval != 250*time.Millisecond {
		t.Errorf("unexpected poll interval %v", settings.Trigger.PollInterval)
	}
	if !settings.Dispatch.Debug || settings.Dispatch.TimeoutSecs != 60 {
		t.Errorf("unexpected dispatch config %+v", settings.Dispatch)
	}
	if !settings.Bitwarden.Enabled || settings.Bitwarden.URL != "http://127.0.0.1:9000" {
		t.Errorf("unexpected bitwarden config %+v", settings.Bitwarden)
	}
}

func TestNewInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"VAULTBRIDGE_POLL_INTERVAL_MS", "fast"},
		{"VAULTBRIDGE_POLL_INTERVAL_MS", "0"},
		{"VAULTBRIDGE_DEBUG", "maybe"},
		{"VAULTBRIDGE_COMMAND_TIMEOUT", "-1"},
		{"VAULTBRIDGE_PROTECTOR", "dpapi"},
		{"VAULTBRIDGE_TERMINAL", `xterm -e "unterminated`},
		{"BW_RETRIES", "many"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("VAULTBRIDGE_STATE_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)
			if _, err := New(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestMustNewPanicsOnInvalid(t *testing.T) {
	t.Setenv("VAULTBRIDGE_DEBUG", "maybe")
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustNew()
}
