package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ftc-sync/core/reconcile"
	"ftc-sync/core/upstream"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite DB with the teams table.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&Team{}))
	return db
}

// setupMockDB creates a mock GORM DB for testing storage failures.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

type fakeSource struct {
	pages    [][]upstream.Team
	failPage int
	calls    []int
}

func (f *fakeSource) ListTeams(_ context.Context, _ int, page int) (*upstream.TeamsPage, error) {
	f.calls = append(f.calls, page)
	if page == f.failPage {
		return nil, errors.New("502 bad gateway")
	}
	if page > len(f.pages) {
		return &upstream.TeamsPage{PageTotal: len(f.pages)}, nil
	}
	return &upstream.TeamsPage{Teams: f.pages[page-1], PageTotal: len(f.pages), PageCurrent: page}, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func run(t *testing.T, adapter *Adapter) *reconcile.Summary {
	t.Helper()
	summary, err := adapter.Reconcile(context.Background(), reconcile.Scope{Season: 2025}, reconcile.Options{Workers: 4})
	require.NoError(t, err)
	return summary
}

func TestAdapter_FetchSnapshotFlattensPages(t *testing.T) {
	source := &fakeSource{pages: [][]upstream.Team{
		{{TeamNumber: 1}, {TeamNumber: 2}},
		{{TeamNumber: 3}},
		{{TeamNumber: 4}},
	}}
	adapter := NewAdapter(nil, source, 0, zap.NewNop())

	teams, err := adapter.FetchSnapshot(context.Background(), reconcile.Scope{Season: 2025})
	require.NoError(t, err)

	assert.Len(t, teams, 4)
	assert.Equal(t, []int{1, 2, 3}, source.calls)
}

func TestAdapter_PageFailureWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeSource{
		pages:    [][]upstream.Team{{{TeamNumber: 1}}, {{TeamNumber: 2}}},
		failPage: 2,
	}
	adapter := NewAdapter(db, source, 0, zap.NewNop())

	_, err := adapter.Reconcile(context.Background(), reconcile.Scope{Season: 2025}, reconcile.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, reconcile.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "page 2/2")

	var count int64
	require.NoError(t, db.Model(&Team{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAdapter_CreateThenIdempotent(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeSource{pages: [][]upstream.Team{
		{{TeamNumber: 19458, City: strPtr("Fremont"), RookieYear: intPtr(2021)}, {TeamNumber: 7}},
		{{TeamNumber: 8, Website: strPtr("https://example.org")}},
	}}
	adapter := NewAdapter(db, source, 2, zap.NewNop())

	first := run(t, adapter)
	assert.Equal(t, 3, first.Created)
	assert.Zero(t, first.Failed)

	var teams []Team
	require.NoError(t, db.Order("team_number").Find(&teams).Error)
	require.Len(t, teams, 3)
	assert.Equal(t, 7, teams[0].TeamNumber)
	assert.Equal(t, "https://example.org", *teams[1].Website)
	assert.Equal(t, 2021, *teams[2].RookieYear)

	second := run(t, adapter)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 3, second.Unchanged)
}

func TestAdapter_UpdateChangedCity(t *testing.T) {
	db := setupTestDB(t)
	existing := Team{TeamNumber: 19458, City: strPtr("Fremont"), Website: strPtr("https://old.example")}
	require.NoError(t, db.Create(&existing).Error)

	source := &fakeSource{pages: [][]upstream.Team{{{TeamNumber: 19458, City: strPtr("San Jose")}}}}
	adapter := NewAdapter(db, source, 0, zap.NewNop())

	summary := run(t, adapter)
	assert.Equal(t, 1, summary.Updated)

	var team Team
	require.NoError(t, db.First(&team, existing.ID).Error)
	assert.Equal(t, "San Jose", *team.City)
	// Fields absent upstream are cleared, not kept.
	assert.Nil(t, team.Website)
}

func TestAdapter_CompareFieldsIgnoresUntracked(t *testing.T) {
	adapter := NewAdapter(nil, nil, 0, nil)
	row := indexRow{ID: 1, TeamNumber: 5, City: strPtr("Fremont")}

	assert.Empty(t, adapter.CompareFields(row, upstream.Team{TeamNumber: 5, City: strPtr("Fremont")}))
	assert.Equal(t,
		[]string{"city: upstream=San Jose persisted=Fremont"},
		adapter.CompareFields(row, upstream.Team{TeamNumber: 5, City: strPtr("San Jose")}),
	)
}

func TestAdapter_IndexFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery("SELECT .* FROM `teams`").WillReturnError(errors.New("connection refused"))

	adapter := NewAdapter(db, &fakeSource{pages: [][]upstream.Team{{{TeamNumber: 1}}}}, 0, zap.NewNop())

	_, err := adapter.Reconcile(context.Background(), reconcile.Scope{Season: 2025}, reconcile.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, reconcile.ErrIndexUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_BulkInsertFailureFallsBackToRows(t *testing.T) {
	db := setupTestDB(t)
	// Team 2 collides with a row the index did not see.
	require.NoError(t, db.Exec("CREATE UNIQUE INDEX idx_teams_name_full ON teams(name_full)").Error)
	require.NoError(t, db.Create(&Team{TeamNumber: 900, NameFull: strPtr("Taken")}).Error)

	source := &fakeSource{pages: [][]upstream.Team{{
		{TeamNumber: 1, NameFull: strPtr("Alpha")},
		{TeamNumber: 2, NameFull: strPtr("Taken")},
		{TeamNumber: 3, NameFull: strPtr("Gamma")},
	}}}
	adapter := NewAdapter(db, source, 0, zap.NewNop())

	summary := run(t, adapter)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "2", summary.Failures[0].Key)

	var count int64
	require.NoError(t, db.Model(&Team{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}
