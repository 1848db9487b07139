// Package archive stores each reconciliation run's normalized upstream snapshot in
// object storage, as snapshots/<entity>/<season>/<run_id>.json.
//
// Archives are an audit and debugging aid: they show exactly what upstream returned
// for a run. Old snapshots beyond the retention count are pruned after every write.
package archive
