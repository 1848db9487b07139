// Package syncapi exposes the sync status HTTP API.
//
//	GET  /health          database reachability
//	GET  /metrics         Prometheus metrics
//	GET  /runs            last outcome per entity type
//	GET  /runs/:entity    last outcome of one entity type
//	POST /runs/:entity    run teams|events|matches|all now (?season=&event=&dry_run=)
//
// Manual triggers share the pipeline's single-run lock, so a trigger during a
// scheduled run is answered with 409 Conflict.
package syncapi
