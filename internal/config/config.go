package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config is flat on purpose: the whole service fits one struct.
type Config struct {
	Addr string

	MongoURI string
	MongoDB  string

	// AnalyticsDSN points at the Postgres event log; empty disables analytics.
	AnalyticsDSN string

	JWTSecret string
	LogLevel  string

	StorageProvider string
	StorageID       string
	StorageSecret   string
	StorageRegion   string
	StorageBucket   string
	StorageEndpoint string
	// StoragePublicBase is the URL prefix attachment links are built from.
	StoragePublicBase string
}

// Load reads config.yaml if present and lets environment variables override
// everything. MONGO_URI may be empty, which selects the in-process store for
// development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_db", "kanbanlite")
	v.SetDefault("analytics_dsn", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage_provider", "filesystem")
	v.SetDefault("storage_bucket", "./uploads")
	v.SetDefault("storage_public_base", "http://localhost:8080/files")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		Addr:              v.GetString("addr"),
		MongoURI:          v.GetString("mongo_uri"),
		MongoDB:           v.GetString("mongo_db"),
		AnalyticsDSN:      v.GetString("analytics_dsn"),
		JWTSecret:         v.GetString("jwt_secret"),
		LogLevel:          v.GetString("log_level"),
		StorageProvider:   v.GetString("storage_provider"),
		StorageID:         v.GetString("storage_id"),
		StorageSecret:     v.GetString("storage_secret"),
		StorageRegion:     v.GetString("storage_region"),
		StorageBucket:     v.GetString("storage_bucket"),
		StorageEndpoint:   v.GetString("storage_endpoint"),
		StoragePublicBase: v.GetString("storage_public_base"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}
