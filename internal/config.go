package internal

import (
	"fmt"

	"github.com/cinelog/cinelog/internal/api"
	"github.com/cinelog/cinelog/internal/database"
	"github.com/ilyakaznacheev/cleanenv"
)

// CinelogConfig is the user-supplied configuration, loaded from a YAML
// file with environment variable overrides.
type CinelogConfig struct {
	Database database.DatabaseConfig `yaml:"database" env-required:"true"`
	Rest     api.RestConfig          `yaml:"api"`

	TmdbAPIKey string `yaml:"tmdb_api_key" env:"TMDB_API_KEY" env-required:"true"`
	OmdbAPIKey string `yaml:"omdb_api_key" env:"OMDB_API_KEY" env-required:"true"`

	// ArtworkRefreshHours is how long the remotely-published image
	// configuration is trusted before it is re-fetched.
	ArtworkRefreshHours int `yaml:"artwork_refresh_hours" env:"ARTWORK_REFRESH_HOURS" env-default:"24"`
}

// LoadFromFile reads the YAML configuration at the provided path into the
// config struct, applying env overrides and defaults.
func (config *CinelogConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	return nil
}
