package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ftc-sync/core/config"
	"ftc-sync/core/database"
	"ftc-sync/core/loader"
	"ftc-sync/core/logger"
	"ftc-sync/core/middleware/auth"
	"ftc-sync/core/middleware/rayid"
	"ftc-sync/core/reconcile"
	"ftc-sync/feature/pipeline"
	"ftc-sync/feature/syncapi"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync scheduler and status server",
	Long: `Runs the configured entity types on the sync.cron schedule and serves the
status API (health, last runs, manual triggers and Prometheus metrics).`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		entities, err := pipeline.Normalize(cfg.Sync.Entities)
		if err != nil {
			logg.Fatal("Invalid sync.entities", zap.Error(err))
		}

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		logg.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 4. Build Pipeline
		p, err := newPipeline(ctx, cfg, db, logg)
		if err != nil {
			logg.Fatal("Failed to build pipeline", zap.Error(err))
		}

		// 5. Schedule Runs
		job := newSyncJob(ctx, p, entities, reconcile.Scope{Season: cfg.Upstream.Season}, logg)

		scheduler := cron.New()
		if _, err := scheduler.AddJob(cfg.Sync.Cron, job); err != nil {
			logg.Fatal("Invalid sync.cron schedule", zap.String("cron", cfg.Sync.Cron), zap.Error(err))
		}
		scheduler.Start()
		logg.Info("Scheduler started", zap.String("cron", cfg.Sync.Cron), zap.Strings("entities", entities))

		// Also run immediately on startup
		job.Start()

		// 6. Status Server
		var app *fiber.App
		if cfg.Server.Enabled {
			app = fiber.New(fiber.Config{
				DisableStartupMessage: true,
			})

			mgr := loader.NewManager(logg)
			mgr.Register(syncapi.NewFeature(syncapi.NewService(p, db, cfg.Upstream.Season, logg), cfg.Server.Enabled))

			// RayID first so every log line below carries it
			app.Use(rayid.New())

			app.Use(func(c *fiber.Ctx) error {
				l := logger.WithRayID(logg, c)
				l.Debug("Request started",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.String("ip", c.IP()),
				)
				err := c.Next()
				if err != nil {
					l.Error("Request error", zap.Error(err))
				}
				return err
			})

			// Probes and scrapes stay public
			app.Use(auth.New(auth.Config{
				ApiKey: cfg.Server.ApiKey,
				Skip:   []string{"/health", "/metrics"},
			}))

			if err := mgr.LoadAll(app); err != nil {
				logg.Fatal("Failed to load features", zap.Error(err))
			}

			go func() {
				logg.Info("Starting server", zap.String("address", cfg.Server.Address()))
				if err := app.Listen(cfg.Server.Address()); err != nil {
					logg.Fatal("Server failed to start", zap.Error(err))
				}
			}()
		}

		// 7. Graceful Shutdown
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logg.Info("Shutting down...")

		if app != nil {
			_ = app.Shutdown()
		}
		// Queued write units are skipped; units already writing finish first.
		cancel()
		<-scheduler.Stop().Done()
		job.Wait()
		logg.Info("Shutdown complete")
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
