// Package server holds the HTTP status server configuration.
//
// The Config struct defines the listen port, the API key protecting manual run
// triggers, and whether the status API is started alongside the scheduler. It is
// embedded by core/config and consumed by the start command.
package server
