package config

import (
	"os"
	"path/filepath"
)

// AiosPath returns the root directory for aios data.
// It uses $AIOS_PATH if set, otherwise defaults to ~/.aios.
func AiosPath() string {
	if v := os.Getenv("AIOS_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".aios")
	}
	return filepath.Join(home, ".aios")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(AiosPath(), "config.jsonc")
}

// DotenvPath returns the path to the .env file.
func DotenvPath() string {
	return filepath.Join(AiosPath(), ".env")
}

// CredentialsPath returns the path to the encrypted credential file.
func CredentialsPath() string {
	return filepath.Join(AiosPath(), "credentials.json")
}

// HeartbeatPath returns the path to the gateway heartbeat file.
func HeartbeatPath() string {
	return filepath.Join(AiosPath(), "heartbeat.json")
}
