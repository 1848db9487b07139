package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"ftc-sync/core/metrics"
	"ftc-sync/core/reconcile"
	"ftc-sync/feature/event"
	"ftc-sync/feature/match"
	"ftc-sync/feature/team"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrBusy is returned when a run is requested while another is in progress.
	ErrBusy = errors.New("a sync run is already in progress")
	// ErrUnknownEntity is returned for entity names other than teams, events and matches.
	ErrUnknownEntity = errors.New("unknown entity type")
)

// Order is the dependency order entity types are reconciled in. Matches reference
// events, so events must be persisted first.
var Order = []string{team.Name, event.Name, match.Name}

// Source is the upstream client surface every adapter needs.
type Source interface {
	team.Source
	event.Source
	match.Source
}

// Options configures how each entity run executes.
type Options struct {
	Workers        int
	WriteTimeout   time.Duration
	BatchSize      int
	MaxConcurrency int
	OnSnapshot     reconcile.SnapshotHook
}

// Status is the last known outcome for one entity type.
type Status struct {
	Entity  string             `json:"entity"`
	Summary *reconcile.Summary `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Pipeline runs entity reconciliations in dependency order and remembers the last
// outcome of each entity type.
type Pipeline struct {
	db     *gorm.DB
	source Source
	opts   Options
	logger *zap.Logger

	running sync.Mutex

	mu   sync.RWMutex
	last map[string]Status
}

// New creates a pipeline.
func New(db *gorm.DB, source Source, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		db:     db,
		source: source,
		opts:   opts,
		logger: logger,
		last:   make(map[string]Status, len(Order)),
	}
}

// Normalize validates entity names, expands "all" and sorts them into dependency order.
func Normalize(entities []string) ([]string, error) {
	wanted := make(map[string]bool, len(entities))
	for _, e := range entities {
		if e == "all" {
			return slices.Clone(Order), nil
		}
		if !slices.Contains(Order, e) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, e)
		}
		wanted[e] = true
	}

	ordered := make([]string, 0, len(wanted))
	for _, e := range Order {
		if wanted[e] {
			ordered = append(ordered, e)
		}
	}
	return ordered, nil
}

// Run reconciles the given entity types in dependency order. A failed entity type
// does not stop the ones after it; their errors are joined. Cancellation stops the
// sequence.
func (p *Pipeline) Run(ctx context.Context, entities []string, scope reconcile.Scope, dryRun bool) ([]*reconcile.Summary, error) {
	ordered, err := Normalize(entities)
	if err != nil {
		return nil, err
	}

	if !p.running.TryLock() {
		return nil, ErrBusy
	}
	defer p.running.Unlock()

	var (
		summaries []*reconcile.Summary
		errs      []error
	)
	for _, entity := range ordered {
		summary, err := p.runEntity(ctx, entity, scope, dryRun)
		if summary != nil {
			summaries = append(summaries, summary)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entity, err))
			if ctx.Err() != nil {
				break
			}
		}
	}

	return summaries, errors.Join(errs...)
}

func (p *Pipeline) runEntity(ctx context.Context, entity string, scope reconcile.Scope, dryRun bool) (*reconcile.Summary, error) {
	opts := reconcile.Options{
		Workers:      p.opts.Workers,
		WriteTimeout: p.opts.WriteTimeout,
		DryRun:       dryRun,
		Logger:       p.logger,
		OnSnapshot:   p.opts.OnSnapshot,
	}

	var (
		summary *reconcile.Summary
		err     error
	)
	switch entity {
	case team.Name:
		summary, err = team.NewAdapter(p.db, p.source, p.opts.BatchSize, p.logger).Reconcile(ctx, scope, opts)
	case event.Name:
		summary, err = event.NewAdapter(p.db, p.source, p.logger).Reconcile(ctx, scope, opts)
	case match.Name:
		// A fresh adapter per run so reference caches never outlive the run.
		summary, err = match.NewAdapter(p.db, p.source, p.opts.MaxConcurrency, p.logger).Reconcile(ctx, scope, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}

	metrics.ObserveSummary(summary, err)

	status := Status{Entity: entity, Summary: summary}
	if err != nil {
		status.Error = err.Error()
	}
	p.mu.Lock()
	p.last[entity] = status
	p.mu.Unlock()

	return summary, err
}

// Last returns the last outcome of every entity type that has run, in dependency order.
func (p *Pipeline) Last() []Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	statuses := make([]Status, 0, len(p.last))
	for _, entity := range Order {
		if s, ok := p.last[entity]; ok {
			statuses = append(statuses, s)
		}
	}
	return statuses
}

// LastFor returns the last outcome of one entity type.
func (p *Pipeline) LastFor(entity string) (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.last[entity]
	return s, ok
}
