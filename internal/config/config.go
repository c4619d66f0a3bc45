package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port                   string   `yaml:"port"`
		CORSOrigins            []string `yaml:"cors_origins"`
		ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		Type    string `yaml:"type"` // "sqlite" or "postgres"
		URL     string `yaml:"url"`  // SQLite path or PostgreSQL URL
		Migrate bool   `yaml:"migrate"`
	} `yaml:"database"`

	Auth struct {
		JWTSecret          string `yaml:"jwt_secret"`
		AccessTokenMinutes int    `yaml:"access_token_minutes"`
		RefreshTokenDays   int    `yaml:"refresh_token_days"`
		FirstAdminEmail    string `yaml:"first_admin_email"`
		FirstAdminPassword string `yaml:"first_admin_password"`
	} `yaml:"auth"`

	Import struct {
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	} `yaml:"import"`

	Logging struct {
		Development bool `yaml:"development"`
	} `yaml:"logging"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:3721"}
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.URL == "" && c.Database.Type == "sqlite" {
		c.Database.URL = "./data/app.db"
	}
	c.Database.URL = os.ExpandEnv(c.Database.URL)

	if c.Auth.AccessTokenMinutes == 0 {
		c.Auth.AccessTokenMinutes = 30
	}
	if c.Auth.RefreshTokenDays == 0 {
		c.Auth.RefreshTokenDays = 7
	}
	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
	c.Auth.FirstAdminPassword = os.ExpandEnv(c.Auth.FirstAdminPassword)

	if c.Import.MaxUploadBytes == 0 {
		c.Import.MaxUploadBytes = 10 << 20
	}
}

// Validate reports configuration that cannot be used to start the server.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required for %s", c.Database.Type)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
