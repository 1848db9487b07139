package syncapi

import (
	"context"
	"fmt"

	"ftc-sync/core/reconcile"
	"ftc-sync/feature/pipeline"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Runner is the pipeline surface the API drives.
type Runner interface {
	Run(ctx context.Context, entities []string, scope reconcile.Scope, dryRun bool) ([]*reconcile.Summary, error)
	Last() []pipeline.Status
	LastFor(entity string) (pipeline.Status, bool)
}

// Service backs the status API handlers.
type Service struct {
	runner Runner
	db     *gorm.DB
	season int
	logger *zap.Logger
}

// NewService creates a status API service. season is used when a trigger does not
// name one.
func NewService(runner Runner, db *gorm.DB, season int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{runner: runner, db: db, season: season, logger: logger}
}

// Health pings the database.
func (s *Service) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not configured")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Trigger runs the named entity type ("all" for every type) synchronously.
func (s *Service) Trigger(ctx context.Context, entity string, scope reconcile.Scope, dryRun bool) ([]*reconcile.Summary, error) {
	if scope.Season == 0 {
		scope.Season = s.season
	}
	return s.runner.Run(ctx, []string{entity}, scope, dryRun)
}
