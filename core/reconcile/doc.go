// Package reconcile implements the reconciliation engine that keeps the persisted
// store eventually identical to the upstream competition API while writing as little
// as possible.
//
// # Pipeline
//
// One run reconciles one entity type for one scope:
//
//  1. Fetcher: Adapter.FetchSnapshot returns the complete, normalized upstream collection.
//  2. Key Index Builder: Adapter.LoadIndex returns the persisted projection keyed by
//     natural key. Steps 1 and 2 run concurrently.
//  3. Classifier: Classify (pure) splits records into creates, updates and unchanged.
//  4. Cross-Entity Resolver: Adapter.Resolve maps foreign natural keys to internal IDs,
//     usually through a memoized KeyResolver.
//  5. Reconciler: creates and updates are applied by a bounded worker pool, each unit
//     with its own timeout. Adapters implementing BatchCreator get one bulk insert for
//     their creates.
//
// # Failure Semantics
//
// Fetch and index failures abort the run before any write and are returned as a
// *StageError wrapping ErrUpstreamUnavailable or ErrIndexUnavailable. Unresolved
// references and write failures are recovered per entity and aggregated into the
// Summary. Duplicate upstream keys are logged; the later record wins.
//
// # Usage
//
//	summary, err := reconcile.Run(ctx, team.NewAdapter(db, client), reconcile.Scope{Season: 2025},
//	    reconcile.Options{Workers: 8, WriteTimeout: 30 * time.Second, Logger: log})
package reconcile
