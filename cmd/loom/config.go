package main

import (
	"os"
	"path/filepath"
)

// configDir returns the user-level loom config directory (~/.loom),
// creating it if necessary.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".loom")
	_ = os.MkdirAll(dir, 0o700)
	return dir
}

func defaultConfigPath() string {
	return filepath.Join(configDir(), "loom.yaml")
}

func defaultCredentialStorePath() string {
	return filepath.Join(configDir(), "credentials.json")
}

func defaultSessionPath() string {
	return filepath.Join(configDir(), "session.jsonl")
}
