package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// JWTConfig holds the token signing setup. Values from config.yml can be
// overridden through the environment so the key never has to live in a file.
type JWTConfig struct {
	SecretKey        string `mapstructure:"key" env:"JWT_KEY"`
	Issuer           string `mapstructure:"issuer" env:"JWT_ISSUER"`
	Audience         string `mapstructure:"audience" env:"JWT_AUDIENCE"`
	ExpiresInSeconds int    `mapstructure:"expiresInSeconds" env:"JWT_EXPIRES_IN_SECONDS"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host" env:"POSTGRES_HOST"`
	Password          string `mapstructure:"password" env:"POSTGRES_PASSWORD"`
	Port              string `mapstructure:"port" env:"POSTGRES_PORT"`
	Username          string `mapstructure:"username" env:"POSTGRES_USER"`
	DB                string `mapstructure:"db" env:"POSTGRES_DB"`
	SSLMODE           string `mapstructure:"SSLMODE" env:"POSTGRES_SSLMODE"`
	MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
	MaxConns          int32  `mapstructure:"maxConns"`
}

type Config struct {
	Mode   string `mapstructure:"mode"`
	Dotenv string `mapstructure:"dotenv"`
	Server struct {
		HTTPPort          string        `mapstructure:"HTTPPort"`
		Timeout           time.Duration `mapstructure:"HTTPTimeout"`
		TrustProxyHeaders bool          `mapstructure:"trustProxyHeaders"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres PostgresConfig `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Storage struct {
		// Driver is one of "postgres", "sqlite" or "memory".
		Driver     string `mapstructure:"driver" env:"STORAGE_DRIVER"`
		SQLitePath string `mapstructure:"sqlitePath" env:"SQLITE_PATH"`
	} `mapstructure:"storage"`
	Cache struct {
		Enabled         bool          `mapstructure:"enabled"`
		TTL             time.Duration `mapstructure:"ttl"`
		CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
	} `mapstructure:"cache"`
	Security struct {
		BcryptCost          int   `mapstructure:"bcryptCost"`
		MaxConcurrentHashes int64 `mapstructure:"maxConcurrentHashes"`
	} `mapstructure:"security"`
	JWT       JWTConfig `mapstructure:"jwt"`
	RateLimit struct {
		LoginRequestsPerMinute int `mapstructure:"loginRequestsPerMinute"`
	} `mapstructure:"rateLimit"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
		MetricsPort string `mapstructure:"metricsPort"`
	} `mapstructure:"observability"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err = applyEnvOverrides(&config); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// applyEnvOverrides overlays environment variables onto the sections that
// carry secrets. Unset variables leave the file values untouched.
func applyEnvOverrides(cfg *Config) error {
	if err := env.Parse(&cfg.JWT); err != nil {
		return fmt.Errorf("failed to parse jwt env overrides: %w", err)
	}
	if err := env.Parse(&cfg.Repositories.Postgres); err != nil {
		return fmt.Errorf("failed to parse postgres env overrides: %w", err)
	}
	if err := env.Parse(&cfg.Storage); err != nil {
		return fmt.Errorf("failed to parse storage env overrides: %w", err)
	}
	return nil
}
