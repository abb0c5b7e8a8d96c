package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAiosPath_Default(t *testing.T) {
	t.Setenv("AIOS_PATH", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	got := AiosPath()
	want := filepath.Join(home, ".aios")
	if got != want {
		t.Errorf("AiosPath() = %q, want %q", got, want)
	}
}

func TestAiosPath_EnvOverride(t *testing.T) {
	t.Setenv("AIOS_PATH", "/tmp/custom-aios")

	got := AiosPath()
	want := "/tmp/custom-aios"
	if got != want {
		t.Errorf("AiosPath() = %q, want %q", got, want)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("AIOS_PATH", "/tmp/test-aios")

	got := ConfigPath()
	want := "/tmp/test-aios/config.jsonc"
	if got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestDotenvPath(t *testing.T) {
	t.Setenv("AIOS_PATH", "/tmp/test-aios")

	got := DotenvPath()
	want := "/tmp/test-aios/.env"
	if got != want {
		t.Errorf("DotenvPath() = %q, want %q", got, want)
	}
}

func TestCredentialsPath(t *testing.T) {
	t.Setenv("AIOS_PATH", "/tmp/test-aios")

	if got := CredentialsPath(); got != "/tmp/test-aios/credentials.json" {
		t.Errorf("expected /tmp/test-aios/credentials.json, got %q", got)
	}
}
