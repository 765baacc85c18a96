// Package config handles configuration parsing, validation, and path
// management for the panel daemon.
package config

import (
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the per-user configuration directory.
	DirName = "waypanel"

	// ConfigFileName is the default panel configuration file.
	ConfigFileName = "config"

	// StyleFileName is the default stylesheet file.
	StyleFileName = "style.css"

	// SettingsFileName is the engine settings file.
	SettingsFileName = "settings.yaml"
)

// Dir returns the per-user configuration directory
// (e.g. ~/.config/waypanel/).
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DirName), nil
}

// ConfigFile returns the default panel configuration path.
func ConfigFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// StyleFile returns the default stylesheet path.
func StyleFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StyleFileName), nil
}

// SettingsFile returns the engine settings path.
func SettingsFile() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}

// ResolvePath returns p as-is when absolute, otherwise joined onto the
// configuration directory. This mirrors how the -c/-s flags are interpreted.
func ResolvePath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// EnsureDir creates the configuration directory if it doesn't exist.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
