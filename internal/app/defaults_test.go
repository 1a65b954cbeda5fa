package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("CFGPUSH_CONFIG_PATH", "/etc/cfgpush.toml")
		t.Setenv("CFGPUSH_HOME", "/var/lib/cfgpush")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if d.ConfigPath != "/etc/cfgpush.toml" {
			t.Errorf("ConfigPath = %q", d.ConfigPath)
		}
		if d.BaseDir != "/var/lib/cfgpush" {
			t.Errorf("BaseDir = %q", d.BaseDir)
		}
		if d.LogDir != "/var/lib/cfgpush/log" {
			t.Errorf("LogDir = %q", d.LogDir)
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("CFGPUSH_CONFIG_PATH", "")
		t.Setenv("CFGPUSH_HOME", "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		home, _ := os.UserHomeDir()
		if want := filepath.Join(home, ".config", "cfgpush.toml"); d.ConfigPath != want {
			t.Errorf("ConfigPath = %q, want %q", d.ConfigPath, want)
		}
		if want := filepath.Join(home, ".local", "share", "cfgpush"); d.BaseDir != want {
			t.Errorf("BaseDir = %q, want %q", d.BaseDir, want)
		}
	})
}
