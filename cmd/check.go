package cmd

import (
	"fmt"
	"os"

	"ftc-sync/core/config"
	"ftc-sync/core/database"
	"ftc-sync/core/logger"
	"ftc-sync/core/storage"
	"ftc-sync/feature/event"
	"ftc-sync/feature/match"
	"ftc-sync/feature/team"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var checkJSON bool

// checkReport is the --json output of the check command.
type checkReport struct {
	MissingColumns []string `json:"missing_columns"`
	BucketChecked  bool     `json:"bucket_checked"`
	BucketExists   bool     `json:"bucket_exists"`
}

// ok reports whether every check passed.
func (r checkReport) ok() bool {
	return len(r.MissingColumns) == 0 && (!r.BucketChecked || r.BucketExists)
}

// checkCmd verifies that the database schema and archive bucket are ready for syncing.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the database schema required for syncing",
	Long: `Checks that every table and column the sync writes to exists in the configured
database. Tables are not created or altered. When sync.archive is enabled the snapshot
bucket is checked as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		l, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer l.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		var report checkReport
		report.MissingColumns, err = checkSchema(db)
		if err != nil {
			return err
		}

		if cfg.Sync.Archive {
			store, err := storage.NewClient(cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to connect to storage: %w", err)
			}
			report.BucketChecked = true
			report.BucketExists, err = store.BucketExists(ctx, cfg.Storage.Bucket)
			if err != nil {
				return fmt.Errorf("failed to check bucket: %w", err)
			}
		}

		if checkJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			for _, missing := range report.MissingColumns {
				l.Error("Missing schema element", zap.String("element", missing))
			}
			if report.BucketChecked && !report.BucketExists {
				l.Error("Snapshot bucket does not exist", zap.String("bucket", cfg.Storage.Bucket))
			}
		}

		if !report.ok() {
			return fmt.Errorf("preflight failed: %d missing schema elements", len(report.MissingColumns))
		}

		l.Info("Preflight passed")
		return nil
	},
}

// checkSchema lists the tables and columns the entity models need but the database lacks.
func checkSchema(db *gorm.DB) ([]string, error) {
	required, err := database.RequiredColumns(db,
		&team.Team{},
		&event.Event{},
		&event.Webcast{},
		&match.Match{},
		&match.MatchParticipant{},
	)
	if err != nil {
		return nil, err
	}
	return database.CheckSchema(db, required)
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the report as JSON")

	RootCmd.AddCommand(checkCmd)
}
