// Package pipeline sequences reconciliation runs across entity types.
//
// Teams, events and matches are reconciled one entity type at a time, in that order,
// because matches can only be written once their events are persisted. Each entity run
// builds a fresh adapter, records Prometheus metrics and keeps its summary for the
// status API. Only one pipeline run executes at a time; overlapping requests get ErrBusy.
package pipeline
