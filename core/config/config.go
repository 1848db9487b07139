package config

import (
	"reflect"
	"strings"

	"ftc-sync/core/database"
	"ftc-sync/core/logger"
	"ftc-sync/core/server"
	"ftc-sync/core/storage"
	"ftc-sync/core/upstream"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP status server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the snapshot archive object storage.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Upstream holds configuration for the competition-data API.
	Upstream upstream.Config `mapstructure:"upstream"`
	// Sync holds configuration for reconciliation runs.
	Sync SyncConfig `mapstructure:"sync"`
}

// SyncConfig controls how reconciliation runs are executed and scheduled.
type SyncConfig struct {
	// Workers bounds the number of concurrent write units per entity type.
	Workers int `mapstructure:"workers" default:"8"`
	// WriteTimeoutSeconds bounds a single entity write unit.
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" default:"30"`
	// BatchSize is the row count per bulk insert of parentless entities.
	BatchSize int `mapstructure:"batch_size" default:"500"`
	// Cron is the schedule used by the start command.
	Cron string `mapstructure:"cron" default:"@every 15m"`
	// Entities lists the entity types synced by scheduled runs, in order.
	Entities []string `mapstructure:"entities" default:"teams,events,matches"`
	// Archive enables writing fetched snapshots to object storage.
	Archive bool `mapstructure:"archive" default:"false"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. UPSTREAM_SEASON -> upstream.season)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
