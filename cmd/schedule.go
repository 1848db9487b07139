package cmd

import (
	"context"
	"errors"
	"sync"

	"ftc-sync/core/reconcile"
	"ftc-sync/feature/pipeline"

	"go.uber.org/zap"
)

// syncRunner is the part of the pipeline a scheduled sync drives.
type syncRunner interface {
	Run(ctx context.Context, entities []string, scope reconcile.Scope, dryRun bool) ([]*reconcile.Summary, error)
}

// syncJob runs the configured entity types as a cron job. Runs started outside cron
// (the one at startup) are tracked so shutdown can wait for their write units.
type syncJob struct {
	ctx      context.Context
	runner   syncRunner
	entities []string
	scope    reconcile.Scope
	logger   *zap.Logger

	wg sync.WaitGroup
}

func newSyncJob(ctx context.Context, runner syncRunner, entities []string, scope reconcile.Scope, logger *zap.Logger) *syncJob {
	return &syncJob{ctx: ctx, runner: runner, entities: entities, scope: scope, logger: logger}
}

// Run implements cron.Job.
func (j *syncJob) Run() {
	summaries, err := j.runner.Run(j.ctx, j.entities, j.scope, false)
	for _, s := range summaries {
		printSummary(j.logger, s)
	}
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		j.logger.Warn("Scheduled sync skipped, previous run still in progress")
	case err != nil:
		j.logger.Error("Scheduled sync failed", zap.Error(err))
	}
}

// Start runs the job in the background.
func (j *syncJob) Start() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.Run()
	}()
}

// Wait blocks until every run started with Start has returned.
func (j *syncJob) Wait() {
	j.wg.Wait()
}
