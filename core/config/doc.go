// Package config provides configuration management for ftc-sync.
//
// It utilizes Viper for loading configuration from environment variables
// and an optional .env file. Defaults are declared with `default` struct tags.
//
// # Configuration Structure
//
// The Config struct is divided into subsections:
//   - Upstream: competition API base URL, credentials, season, paging limits
//   - Database: driver (mysql, postgres, sqlite) and connection details
//   - Sync: worker counts, write timeouts, schedule and archive toggle
//   - Storage: S3/MinIO credentials for the snapshot archive
//   - Server: status API port and API key
//   - Log: logging level and format
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Upstream.Season)
package config
