// Package middleware groups the Fiber middleware mounted in front of the status API.
//
//   - auth: rejects requests whose X-API-Key header does not match server.api_key.
//     Health probes and metric scrapes are listed in Config.Skip and stay public.
//   - rayid: tags each request with an X-Ray-ID (reused when the caller sends one)
//     and stores it in Locals so logger.WithRayID can attach it to log lines.
//
// rayid must be registered before anything that logs.
package middleware
