// Package upstream is a client for the FIRST Tech Challenge Events API.
//
// It exposes the three collections the sync engine reconciles:
//
//	GET /{season}/teams?page=N        -> TeamsPage (paged, pageTotal on every page)
//	GET /{season}/events              -> []Event
//	GET /{season}/matches/{eventCode} -> []Match
//
// Requests use basic auth (username + API token), are paced with a token-bucket
// limiter, are bounded by a per-page timeout and pass through a circuit breaker so a
// failing API is not hammered by every scheduled run. Records are normalized on decode:
// timestamps become UTC time values (or nil when absent or unparseable) and event
// coordinates are dropped.
package upstream
