package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// unit is one resolved entity ready to be written.
type unit[U, W any] struct {
	action  Action[U]
	value   W
	omitted []Omission
}

// apply resolves and writes every create and update in the plan.
func apply[U, P, W any](
	ctx context.Context,
	adapter Adapter[U, P, W],
	plan Classification[U],
	opts Options,
	rec *recorder,
	log *zap.Logger,
) error {
	actions := make([]Action[U], 0, len(plan.Creates)+len(plan.Updates))
	actions = append(actions, plan.Creates...)
	actions = append(actions, plan.Updates...)
	if len(actions) == 0 {
		return nil
	}

	// Parentless entities are resolved up front and bulk inserted in one unit.
	batcher, canBatch := any(adapter).(BatchCreator[W])
	if canBatch && !opts.DryRun && len(plan.Creates) > 0 {
		units := make([]unit[U, W], 0, len(plan.Creates))
		for _, action := range plan.Creates {
			if u, ok := resolveUnit(ctx, adapter, action, rec, log); ok {
				units = append(units, u)
			}
		}

		if batchErr := createBatch(ctx, batcher, units, opts); batchErr != nil {
			// Isolate the failing rows by retrying one at a time.
			log.Warn("Bulk insert failed, retrying rows individually",
				zap.Int("rows", len(units)),
				zap.Error(batchErr),
			)
			if err := runUnits(ctx, adapter, units, opts, rec, log); err != nil {
				return err
			}
		} else {
			for _, u := range units {
				rec.applied(ActionCreate, len(u.omitted))
			}
		}
		actions = plan.Updates
	}

	return runPool(ctx, adapter, actions, opts, rec, log)
}

// runPool resolves and writes actions with a bounded number of workers.
// Each action targets a distinct natural key, so no two workers touch the same parent.
func runPool[U, P, W any](
	ctx context.Context,
	adapter Adapter[U, P, W],
	actions []Action[U],
	opts Options,
	rec *recorder,
	log *zap.Logger,
) error {
	if len(actions) == 0 {
		return nil
	}

	actionsCh := make(chan Action[U], len(actions))
	for _, action := range actions {
		actionsCh <- action
	}
	close(actionsCh)

	workers := min(opts.Workers, len(actions))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for action := range actionsCh {
				if ctx.Err() != nil {
					rec.skip(Outcome{Key: action.Key, Action: action.Type, Reason: "run cancelled"})
					continue
				}
				u, ok := resolveUnit(ctx, adapter, action, rec, log)
				if !ok {
					continue
				}
				if opts.DryRun {
					rec.applied(action.Type, len(u.omitted))
					continue
				}
				writeUnit(ctx, adapter, u, opts, rec, log)
			}
		}()
	}
	wg.Wait()

	return ctx.Err()
}

// runUnits writes already-resolved units through the worker pool.
func runUnits[U, P, W any](
	ctx context.Context,
	adapter Adapter[U, P, W],
	units []unit[U, W],
	opts Options,
	rec *recorder,
	log *zap.Logger,
) error {
	unitsCh := make(chan unit[U, W], len(units))
	for _, u := range units {
		unitsCh <- u
	}
	close(unitsCh)

	workers := max(1, min(opts.Workers, len(units)))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for u := range unitsCh {
				if ctx.Err() != nil {
					rec.skip(Outcome{Key: u.action.Key, Action: u.action.Type, Reason: "run cancelled"})
					continue
				}
				writeUnit(ctx, adapter, u, opts, rec, log)
			}
		}()
	}
	wg.Wait()

	return ctx.Err()
}

// resolveUnit runs the Cross-Entity Resolver for one action. Unresolved required
// references and lookups cut short by run cancellation skip the entity; other lookup
// errors fail it.
func resolveUnit[U, P, W any](
	ctx context.Context,
	adapter Adapter[U, P, W],
	action Action[U],
	rec *recorder,
	log *zap.Logger,
) (unit[U, W], bool) {
	value, omitted, err := adapter.Resolve(ctx, action.Record)
	if err != nil {
		outcome := Outcome{Key: action.Key, Action: action.Type, Reason: reason(err)}
		switch {
		case errors.Is(err, context.Canceled):
			outcome.Reason = "run cancelled"
			rec.skip(outcome)
		case errors.Is(err, ErrReferenceUnresolved):
			log.Warn("Skipping entity with unresolved reference",
				zap.String("key", action.Key),
				zap.String("reason", outcome.Reason),
			)
			rec.skip(outcome)
		default:
			log.Warn("Reference resolution failed", zap.String("key", action.Key), zap.Error(err))
			rec.fail(outcome)
		}
		return unit[U, W]{}, false
	}

	for _, o := range omitted {
		log.Warn("Omitting child row with unresolved reference",
			zap.String("key", action.Key),
			zap.String("ref", o.Key),
			zap.String("reason", o.Reason),
		)
	}

	return unit[U, W]{action: action, value: value, omitted: omitted}, true
}

// writeUnit applies one create or update. In-flight units are detached from run
// cancellation so they can commit; the write timeout still applies.
func writeUnit[U, P, W any](
	ctx context.Context,
	adapter Adapter[U, P, W],
	u unit[U, W],
	opts Options,
	rec *recorder,
	log *zap.Logger,
) {
	unitCtx, cancel := unitContext(ctx, opts)
	defer cancel()

	var err error
	switch u.action.Type {
	case ActionCreate:
		err = adapter.Create(unitCtx, u.value)
	case ActionUpdate:
		err = adapter.Update(unitCtx, u.action.ID, u.value)
	default:
		return
	}

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrWriteFailed, err)
		log.Warn("Write unit failed",
			zap.String("key", u.action.Key),
			zap.String("action", string(u.action.Type)),
			zap.Error(err),
		)
		rec.fail(Outcome{Key: u.action.Key, Action: u.action.Type, Reason: reason(err)})
		return
	}

	rec.applied(u.action.Type, len(u.omitted))
}

func createBatch[U, W any](ctx context.Context, batcher BatchCreator[W], units []unit[U, W], opts Options) error {
	if len(units) == 0 {
		return nil
	}
	values := make([]W, len(units))
	for i, u := range units {
		values[i] = u.value
	}

	batchCtx, cancel := unitContext(ctx, opts)
	defer cancel()
	return batcher.CreateBatch(batchCtx, values)
}

func unitContext(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if opts.WriteTimeout > 0 {
		return context.WithTimeout(base, opts.WriteTimeout)
	}
	return context.WithCancel(base)
}
