package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ftc-sync/core/config"
	"ftc-sync/core/database"
	"ftc-sync/core/logger"
	"ftc-sync/core/reconcile"
	"ftc-sync/core/storage"
	"ftc-sync/core/upstream"
	"ftc-sync/feature/archive"
	"ftc-sync/feature/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// Flags for sync command
	syncDryRun bool
	syncSeason int
	syncEvent  string
)

// syncCmd performs a one-shot reconciliation of the given entity types.
var syncCmd = &cobra.Command{
	Use:   "sync [teams|events|matches|all]...",
	Short: "Reconcile upstream competition data into the database",
	Long: `Fetch teams, events or matches from the FTC Events API and reconcile them
into the database. Entity types always run in dependency order (teams, events, matches).

Examples:
  # Sync everything for the configured season
  sync all

  # Preview match changes for one event without writing
  sync matches --event USCALAS --dry-run

  # Sync a past season
  sync teams events --season 2024`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Classify and resolve without writing")
	syncCmd.Flags().IntVar(&syncSeason, "season", 0, "Season to sync (defaults to upstream.season)")
	syncCmd.Flags().StringVar(&syncEvent, "event", "", "Restrict event and match runs to one event code")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	entities, err := pipeline.Normalize(args)
	if err != nil {
		return err
	}

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(ctx, cfg, db, l)
	if err != nil {
		return err
	}

	scope := reconcile.Scope{Season: cfg.Upstream.Season, EventCode: syncEvent}
	if syncSeason > 0 {
		scope.Season = syncSeason
	}

	l.Info("Starting sync",
		zap.Strings("entities", entities),
		zap.Int("season", scope.Season),
		zap.String("event", scope.EventCode),
		zap.Bool("dry_run", syncDryRun),
	)

	summaries, err := p.Run(ctx, entities, scope, syncDryRun)
	for _, s := range summaries {
		printSummary(l, s)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if syncDryRun {
		l.Info("Dry-run mode: No changes were made.")
	}
	return nil
}

// newPipeline wires the upstream client, the optional snapshot archive and the
// pipeline from configuration.
func newPipeline(ctx context.Context, cfg *config.Config, db *gorm.DB, l *zap.Logger) (*pipeline.Pipeline, error) {
	client := upstream.NewClient(&cfg.Upstream, l)

	opts := pipeline.Options{
		Workers:        cfg.Sync.Workers,
		WriteTimeout:   time.Duration(cfg.Sync.WriteTimeoutSeconds) * time.Second,
		BatchSize:      cfg.Sync.BatchSize,
		MaxConcurrency: cfg.Upstream.MaxConcurrency,
	}

	if cfg.Sync.Archive {
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		if err := storage.EnsureBucket(ctx, store, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			return nil, err
		}
		opts.OnSnapshot = archive.New(store, cfg.Storage.Bucket, cfg.Storage.Retain, l).Hook()
		l.Info("Snapshot archive enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	return pipeline.New(db, client, opts, l), nil
}

// printSummary logs a run summary followed by every skipped and failed entity.
func printSummary(l *zap.Logger, s *reconcile.Summary) {
	fields := append([]zap.Field{zap.String("entity", s.Entity), zap.String("run_id", s.RunID)}, s.Fields()...)
	l.Info("Sync report", fields...)

	for _, o := range s.Skips {
		l.Warn("Skipped", zap.String("entity", s.Entity), zap.String("key", o.Key), zap.String("reason", o.Reason))
	}
	for _, o := range s.Failures {
		l.Error("Failed", zap.String("entity", s.Entity), zap.String("key", o.Key), zap.String("reason", o.Reason))
	}
}
