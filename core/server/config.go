package server

import "strings"

// Config holds configuration for the HTTP status server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the API.
	ApiKey string `mapstructure:"api_key" default:""`
	// Enabled starts the status API alongside the scheduler.
	Enabled bool `mapstructure:"enabled" default:"true"`
}

// Address returns the listen address for the configured port.
// A port that already carries a host (e.g. "127.0.0.1:8080") is used as-is.
func (c Config) Address() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
