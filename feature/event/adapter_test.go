package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

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

	require.NoError(t, db.AutoMigrate(&Event{}, &Webcast{}))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

type fakeSource struct {
	events []upstream.Event
	err    error
}

func (f *fakeSource) ListEvents(context.Context, int) ([]upstream.Event, error) {
	return f.events, f.err
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func run(t *testing.T, adapter *Adapter, scope reconcile.Scope) *reconcile.Summary {
	t.Helper()
	summary, err := adapter.Reconcile(context.Background(), scope, reconcile.Options{Workers: 2})
	require.NoError(t, err)
	return summary
}

func webcastURLs(t *testing.T, db *gorm.DB, eventID uint64) []string {
	t.Helper()
	var urls []string
	require.NoError(t, db.Model(&Webcast{}).Where("event_id = ?", eventID).Order("id").Pluck("url", &urls).Error)
	return urls
}

func TestAdapter_CreateThenNoop(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeSource{events: []upstream.Event{{
		Code:      "CASJ",
		Name:      strPtr("San Jose Qualifier"),
		DateStart: timePtr(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		Webcasts:  []string{"https://twitch.tv/a", "https://twitch.tv/b"},
	}}}
	adapter := NewAdapter(db, source, zap.NewNop())
	scope := reconcile.Scope{Season: 2025}

	first := run(t, adapter, scope)
	assert.Equal(t, 1, first.Created)

	var event Event
	require.NoError(t, db.Where("season = ? AND code = ?", 2025, "CASJ").First(&event).Error)
	require.NotNil(t, event.DateStart)
	assert.True(t, event.DateStart.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"https://twitch.tv/a", "https://twitch.tv/b"}, webcastURLs(t, db, event.ID))

	second := run(t, adapter, scope)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 1, second.Unchanged)
}

func TestAdapter_UpdateReplacesWebcasts(t *testing.T) {
	db := setupTestDB(t)
	existing := Event{
		Season:   2025,
		Code:     "CASJ",
		Name:     strPtr("Old Name"),
		Webcasts: []Webcast{{URL: "https://old/1"}, {URL: "https://old/2"}},
	}
	require.NoError(t, db.Create(&existing).Error)

	source := &fakeSource{events: []upstream.Event{{
		Code:     "CASJ",
		Name:     strPtr("New Name"),
		Webcasts: []string{"https://new/1"},
	}}}
	summary := run(t, NewAdapter(db, source, zap.NewNop()), reconcile.Scope{Season: 2025})
	assert.Equal(t, 1, summary.Updated)

	var event Event
	require.NoError(t, db.First(&event, existing.ID).Error)
	assert.Equal(t, "New Name", *event.Name)
	assert.Equal(t, []string{"https://new/1"}, webcastURLs(t, db, existing.ID))
}

func TestAdapter_WebcastsAloneDoNotTriggerUpdate(t *testing.T) {
	db := setupTestDB(t)
	existing := Event{Season: 2025, Code: "CASJ", Webcasts: []Webcast{{URL: "https://old/1"}}}
	require.NoError(t, db.Create(&existing).Error)

	source := &fakeSource{events: []upstream.Event{{Code: "CASJ", Webcasts: []string{"https://new/1"}}}}
	summary := run(t, NewAdapter(db, source, zap.NewNop()), reconcile.Scope{Season: 2025})

	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, []string{"https://old/1"}, webcastURLs(t, db, existing.ID))
}

func TestAdapter_SeasonsAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&Event{Season: 2024, Code: "CASJ"}).Error)

	source := &fakeSource{events: []upstream.Event{{Code: "CASJ"}}}
	summary := run(t, NewAdapter(db, source, zap.NewNop()), reconcile.Scope{Season: 2025})
	assert.Equal(t, 1, summary.Created)

	id, found, err := LookupID(context.Background(), db, 2025, "CASJ")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotZero(t, id)

	_, found, err = LookupID(context.Background(), db, 2025, "NOPE")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAdapter_ScopeEventCodeNarrowsSnapshot(t *testing.T) {
	source := &fakeSource{events: []upstream.Event{{Code: "CASJ"}, {Code: "USCAFFL"}}}
	adapter := NewAdapter(nil, source, nil)

	records, err := adapter.FetchSnapshot(context.Background(), reconcile.Scope{Season: 2025, EventCode: "USCAFFL"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "USCAFFL", records[0].Code)
	assert.Equal(t, 2025, records[0].Season)
}

func TestAdapter_FetchFailure(t *testing.T) {
	db := setupTestDB(t)
	source := &fakeSource{err: errors.New("503 service unavailable")}

	_, err := NewAdapter(db, source, zap.NewNop()).Reconcile(context.Background(), reconcile.Scope{Season: 2025}, reconcile.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, reconcile.ErrUpstreamUnavailable)
}

func TestAdapter_UpdateRollsBackOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `webcasts`").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE `events`").WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	adapter := NewAdapter(db, nil, zap.NewNop())
	err := adapter.Update(context.Background(), 7, Event{Code: "CASJ", Webcasts: []Webcast{{URL: "https://new/1"}}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock wait timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}
