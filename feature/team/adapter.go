package team

import (
	"context"
	"fmt"

	"ftc-sync/core/reconcile"
	"ftc-sync/core/upstream"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Name is the entity type name used in summaries, logs and the status API.
const Name = "teams"

// Source is the part of the upstream client the team adapter needs.
type Source interface {
	ListTeams(ctx context.Context, season, page int) (*upstream.TeamsPage, error)
}

// Adapter reconciles upstream teams into the teams table.
// Teams have no references and no children, so creates are bulk inserted.
type Adapter struct {
	db        *gorm.DB
	source    Source
	batchSize int
	logger    *zap.Logger
}

// NewAdapter creates a team adapter. batchSize bounds rows per bulk insert statement.
func NewAdapter(db *gorm.DB, source Source, batchSize int, logger *zap.Logger) *Adapter {
	if batchSize <= 0 {
		batchSize = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{db: db, source: source, batchSize: batchSize, logger: logger}
}

// Reconcile runs one reconciliation of the season's teams.
func (a *Adapter) Reconcile(ctx context.Context, scope reconcile.Scope, opts reconcile.Options) (*reconcile.Summary, error) {
	return reconcile.Run[upstream.Team, indexRow, Team](ctx, a, scope, opts)
}

// Name implements reconcile.Adapter.
func (a *Adapter) Name() string { return Name }

// FetchSnapshot reads every page of the season's teams. A failed page discards the
// pages already read.
func (a *Adapter) FetchSnapshot(ctx context.Context, scope reconcile.Scope) ([]upstream.Team, error) {
	first, err := a.source.ListTeams(ctx, scope.Season, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch teams page 1: %w", err)
	}

	teams := append([]upstream.Team(nil), first.Teams...)
	for page := 2; page <= first.PageTotal; page++ {
		next, err := a.source.ListTeams(ctx, scope.Season, page)
		if err != nil {
			return nil, fmt.Errorf("fetch teams page %d/%d: %w", page, first.PageTotal, err)
		}
		teams = append(teams, next.Teams...)
	}

	a.logger.Debug("Fetched teams", zap.Int("pages", max(1, first.PageTotal)), zap.Int("count", len(teams)))
	return teams, nil
}

// LoadIndex loads the tracked projection of every persisted team keyed by team number.
// Teams are not season scoped.
func (a *Adapter) LoadIndex(ctx context.Context, _ reconcile.Scope) (map[string]indexRow, error) {
	var rows []indexRow
	columns := append([]string{"id", "team_number"}, trackedColumns...)

	err := a.db.WithContext(ctx).Model(&Team{}).Select(columns).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load team index: %w", err)
	}

	index := make(map[string]indexRow, len(rows))
	for _, row := range rows {
		index[upstream.TeamKey(row.TeamNumber)] = row
	}
	return index, nil
}

// UpstreamKey implements reconcile.Adapter.
func (a *Adapter) UpstreamKey(t upstream.Team) string { return upstream.TeamKey(t.TeamNumber) }

// PersistedID implements reconcile.Adapter.
func (a *Adapter) PersistedID(row indexRow) uint64 { return row.ID }

// CompareFields reports the tracked fields that differ.
func (a *Adapter) CompareFields(p indexRow, u upstream.Team) []string {
	return reconcile.Diff([]reconcile.Field{
		reconcile.F("displayTeamNumber", p.DisplayTeamNumber, u.DisplayTeamNumber),
		reconcile.F("teamId", p.TeamID, u.TeamID),
		reconcile.F("teamProfileId", p.TeamProfileID, u.TeamProfileID),
		reconcile.F("nameFull", p.NameFull, u.NameFull),
		reconcile.F("nameShort", p.NameShort, u.NameShort),
		reconcile.F("schoolName", p.SchoolName, u.SchoolName),
		reconcile.F("city", p.City, u.City),
		reconcile.F("stateProv", p.StateProv, u.StateProv),
		reconcile.F("country", p.Country, u.Country),
		reconcile.F("website", p.Website, u.Website),
		reconcile.F("rookieYear", p.RookieYear, u.RookieYear),
		reconcile.F("robotName", p.RobotName, u.RobotName),
		reconcile.F("districtCode", p.DistrictCode, u.DistrictCode),
		reconcile.F("homeCMP", p.HomeCMP, u.HomeCMP),
		reconcile.F("homeRegion", p.HomeRegion, u.HomeRegion),
		reconcile.F("displayLocation", p.DisplayLocation, u.DisplayLocation),
	})
}

// Resolve maps the upstream record to a row. Teams reference nothing.
func (a *Adapter) Resolve(_ context.Context, u upstream.Team) (Team, []reconcile.Omission, error) {
	return toModel(u), nil, nil
}

// Create inserts one team.
func (a *Adapter) Create(ctx context.Context, t Team) error {
	return a.db.WithContext(ctx).Create(&t).Error
}

// CreateBatch bulk inserts teams in statements of at most batchSize rows.
func (a *Adapter) CreateBatch(ctx context.Context, teams []Team) error {
	if len(teams) == 0 {
		return nil
	}
	return a.db.WithContext(ctx).CreateInBatches(&teams, a.batchSize).Error
}

// Update rewrites every tracked column of one team, including nulls.
func (a *Adapter) Update(ctx context.Context, id uint64, t Team) error {
	result := a.db.WithContext(ctx).
		Model(&Team{}).
		Where("id = ?", id).
		Select(append([]string{"updated_at"}, trackedColumns...)).
		Updates(&t)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("team %d no longer exists", id)
	}
	return nil
}

func toModel(u upstream.Team) Team {
	return Team{
		TeamNumber:        u.TeamNumber,
		DisplayTeamNumber: u.DisplayTeamNumber,
		TeamID:            u.TeamID,
		TeamProfileID:     u.TeamProfileID,
		NameFull:          u.NameFull,
		NameShort:         u.NameShort,
		SchoolName:        u.SchoolName,
		City:              u.City,
		StateProv:         u.StateProv,
		Country:           u.Country,
		Website:           u.Website,
		RookieYear:        u.RookieYear,
		RobotName:         u.RobotName,
		DistrictCode:      u.DistrictCode,
		HomeCMP:           u.HomeCMP,
		HomeRegion:        u.HomeRegion,
		DisplayLocation:   u.DisplayLocation,
	}
}

var (
	_ reconcile.Adapter[upstream.Team, indexRow, Team] = (*Adapter)(nil)
	_ reconcile.BatchCreator[Team]                     = (*Adapter)(nil)
)

// LookupID returns the internal ID of a team by team number.
func LookupID(ctx context.Context, db *gorm.DB, teamNumber int) (uint64, bool, error) {
	var ids []uint64
	err := db.WithContext(ctx).Model(&Team{}).
		Where("team_number = ?", teamNumber).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}
