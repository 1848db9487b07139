package reconcile

import (
	"context"
	"fmt"
	"time"

	"ftc-sync/core/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SnapshotHook receives the normalized upstream snapshot of a run.
// Hook failures are logged and never abort the run.
type SnapshotHook func(ctx context.Context, summary *Summary, records any) error

// Options controls how a run is executed.
type Options struct {
	// Workers bounds concurrent write units. Defaults to 1.
	Workers int

	// WriteTimeout bounds a single write unit. Zero disables the timeout.
	WriteTimeout time.Duration

	// DryRun classifies and resolves without writing; Created/Updated report planned counts.
	DryRun bool

	// Logger receives run diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// OnSnapshot is called once the upstream snapshot has been fetched.
	OnSnapshot SnapshotHook
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Run performs one reconciliation run for a single entity type.
//
// The upstream snapshot and the persisted index are loaded concurrently. Either failing
// aborts the run with a *StageError before any write. Records are then classified,
// references resolved and writes applied by a bounded worker pool. Per-entity failures
// are aggregated into the summary and never returned. If ctx is cancelled while writes are
// in flight, running units finish, queued units are skipped and ctx.Err() is returned
// alongside the partial summary.
func Run[U, P, W any](ctx context.Context, adapter Adapter[U, P, W], scope Scope, opts Options) (*Summary, error) {
	opts = opts.withDefaults()
	entity := adapter.Name()

	summary := &Summary{
		RunID:     uuid.NewString(),
		Entity:    entity,
		Scope:     scope,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
	}
	log := logger.WithRun(opts.Logger, summary.RunID, entity, scope.Season)
	if scope.EventCode != "" {
		log = log.With(zap.String("event_code", scope.EventCode))
	}

	log.Info("Starting reconciliation run")

	var (
		records []U
		index   map[string]P
	)

	// Fetcher and Key Index Builder do not depend on each other.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = adapter.FetchSnapshot(gctx, scope)
		if err != nil {
			return &StageError{Stage: StageFetch, Entity: entity, Err: fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		index, err = adapter.LoadIndex(gctx, scope)
		if err != nil {
			return &StageError{Stage: StageIndex, Entity: entity, Err: fmt.Errorf("%w: %w", ErrIndexUnavailable, err)}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		summary.FinishedAt = time.Now()
		log.Error("Reconciliation run aborted", zap.Error(err))
		return summary, err
	}

	summary.Fetched = len(records)
	log.Info("Loaded snapshot and index",
		zap.Int("fetched", len(records)),
		zap.Int("persisted", len(index)),
	)

	if opts.OnSnapshot != nil {
		if err := opts.OnSnapshot(ctx, summary, records); err != nil {
			log.Warn("Snapshot hook failed", zap.Error(err))
		}
	}

	plan := Classify(records, index, adapter.UpstreamKey, adapter.PersistedID, adapter.CompareFields)
	summary.Unchanged = plan.Unchanged
	summary.Duplicates = len(plan.Duplicates)
	for _, key := range plan.Duplicates {
		log.Warn("Duplicate natural key in upstream snapshot, last record wins",
			zap.String("key", key),
			zap.Error(ErrDuplicateNaturalKey),
		)
	}

	log.Info("Classified snapshot",
		zap.Int("create", len(plan.Creates)),
		zap.Int("update", len(plan.Updates)),
		zap.Int("unchanged", plan.Unchanged),
	)

	rec := &recorder{summary: summary}
	err := apply(ctx, adapter, plan, opts, rec, log)
	rec.finish()

	log.Info("Reconciliation run complete", summary.Fields()...)
	return summary, err
}
