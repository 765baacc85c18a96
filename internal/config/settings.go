package config

import (
	"github.com/waypanel-io/waypanel/internal/models"
)

// LoadSettings loads engine settings from ~/.config/waypanel/settings.yaml.
// If the file doesn't exist, returns default settings. Out-of-range values
// are normalized rather than rejected.
func LoadSettings() (*models.Settings, error) {
	path, err := SettingsFile()
	if err != nil {
		return nil, err
	}
	return LoadSettingsFrom(path)
}

// LoadSettingsFrom loads engine settings from an explicit path.
func LoadSettingsFrom(path string) (*models.Settings, error) {
	settings, err := LoadYAMLOrDefault(path, models.NewSettings)
	if err != nil {
		return nil, err
	}
	settings.Normalize()
	return settings, nil
}

// SaveSettings saves engine settings to ~/.config/waypanel/settings.yaml.
func SaveSettings(settings *models.Settings) error {
	path, err := SettingsFile()
	if err != nil {
		return err
	}
	return SaveYAML(path, settings)
}
