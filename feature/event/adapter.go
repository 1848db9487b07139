package event

import (
	"context"
	"fmt"

	"ftc-sync/core/reconcile"
	"ftc-sync/core/upstream"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Name is the entity type name used in summaries, logs and the status API.
const Name = "events"

// Source is the part of the upstream client the event adapter needs.
type Source interface {
	ListEvents(ctx context.Context, season int) ([]upstream.Event, error)
}

// Record is an upstream event tagged with the season it was fetched for.
type Record struct {
	Season int `json:"season"`
	upstream.Event
}

// UnmarshalJSON decodes an archived record. The embedded event's decoder would
// otherwise consume the whole object and drop Season.
func (r *Record) UnmarshalJSON(data []byte) error {
	if err := r.Event.UnmarshalJSON(data); err != nil {
		return err
	}
	var tag struct {
		Season int `json:"season"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	r.Season = tag.Season
	return nil
}

// Adapter reconciles upstream events and their webcasts.
type Adapter struct {
	db     *gorm.DB
	source Source
	logger *zap.Logger
}

// NewAdapter creates an event adapter.
func NewAdapter(db *gorm.DB, source Source, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{db: db, source: source, logger: logger}
}

// Reconcile runs one reconciliation of the season's events.
func (a *Adapter) Reconcile(ctx context.Context, scope reconcile.Scope, opts reconcile.Options) (*reconcile.Summary, error) {
	return reconcile.Run[Record, indexRow, Event](ctx, a, scope, opts)
}

// Name implements reconcile.Adapter.
func (a *Adapter) Name() string { return Name }

// FetchSnapshot reads the season's events. A scope event code narrows the snapshot to
// that event.
func (a *Adapter) FetchSnapshot(ctx context.Context, scope reconcile.Scope) ([]Record, error) {
	events, err := a.source.ListEvents(ctx, scope.Season)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	records := make([]Record, 0, len(events))
	for _, e := range events {
		if scope.EventCode != "" && e.Code != scope.EventCode {
			continue
		}
		records = append(records, Record{Season: scope.Season, Event: e})
	}
	return records, nil
}

// LoadIndex loads the tracked projection of the season's persisted events keyed by code.
func (a *Adapter) LoadIndex(ctx context.Context, scope reconcile.Scope) (map[string]indexRow, error) {
	var rows []indexRow
	columns := append([]string{"id", "code"}, trackedColumns...)

	query := a.db.WithContext(ctx).Model(&Event{}).Select(columns).Where("season = ?", scope.Season)
	if scope.EventCode != "" {
		query = query.Where("code = ?", scope.EventCode)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load event index: %w", err)
	}

	index := make(map[string]indexRow, len(rows))
	for _, row := range rows {
		index[row.Code] = row
	}
	return index, nil
}

// UpstreamKey implements reconcile.Adapter.
func (a *Adapter) UpstreamKey(r Record) string { return r.Code }

// PersistedID implements reconcile.Adapter.
func (a *Adapter) PersistedID(row indexRow) uint64 { return row.ID }

// CompareFields reports the tracked fields that differ. Webcasts are not tracked;
// they are rewritten whenever the event itself changes.
func (a *Adapter) CompareFields(p indexRow, r Record) []string {
	return reconcile.Diff([]reconcile.Field{
		reconcile.F("eventId", p.EventID, r.EventID),
		reconcile.F("divisionCode", p.DivisionCode, r.DivisionCode),
		reconcile.F("name", p.Name, r.Name),
		reconcile.F("remote", p.Remote, r.Remote),
		reconcile.F("hybrid", p.Hybrid, r.Hybrid),
		reconcile.F("fieldCount", p.FieldCount, r.FieldCount),
		reconcile.F("published", p.Published, r.Published),
		reconcile.F("type", p.Type, r.Type),
		reconcile.F("typeName", p.TypeName, r.TypeName),
		reconcile.F("regionCode", p.RegionCode, r.RegionCode),
		reconcile.F("leagueCode", p.LeagueCode, r.LeagueCode),
		reconcile.F("districtCode", p.DistrictCode, r.DistrictCode),
		reconcile.F("venue", p.Venue, r.Venue),
		reconcile.F("address", p.Address, r.Address),
		reconcile.F("city", p.City, r.City),
		reconcile.F("stateprov", p.StateProv, r.StateProv),
		reconcile.F("country", p.Country, r.Country),
		reconcile.F("website", p.Website, r.Website),
		reconcile.F("liveStreamUrl", p.LiveStreamURL, r.LiveStreamURL),
		reconcile.F("timezone", p.Timezone, r.Timezone),
		reconcile.F("dateStart", p.DateStart, r.DateStart),
		reconcile.F("dateEnd", p.DateEnd, r.DateEnd),
	})
}

// Resolve maps the record to a row with its webcasts. Events reference nothing.
func (a *Adapter) Resolve(_ context.Context, r Record) (Event, []reconcile.Omission, error) {
	return toModel(r), nil, nil
}

// Create inserts the event and its webcasts in one transaction.
func (a *Adapter) Create(ctx context.Context, e Event) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&e).Error
	})
}

// Update rewrites the tracked columns and replaces every webcast of the event.
// The prior webcasts stay committed until the whole unit succeeds.
func (a *Adapter) Update(ctx context.Context, id uint64, e Event) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&Webcast{}).Error; err != nil {
			return fmt.Errorf("delete webcasts: %w", err)
		}

		result := tx.Model(&Event{}).
			Where("id = ?", id).
			Select(trackedColumns).
			Omit(clause.Associations).
			Updates(&e)
		if result.Error != nil {
			return fmt.Errorf("update event: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("event %d no longer exists", id)
		}

		if len(e.Webcasts) == 0 {
			return nil
		}
		webcasts := make([]Webcast, len(e.Webcasts))
		for i, w := range e.Webcasts {
			webcasts[i] = Webcast{EventID: id, URL: w.URL}
		}
		if err := tx.Create(&webcasts).Error; err != nil {
			return fmt.Errorf("create webcasts: %w", err)
		}
		return nil
	})
}

// LookupID returns the internal ID of a season's event by code.
func LookupID(ctx context.Context, db *gorm.DB, season int, code string) (uint64, bool, error) {
	var ids []uint64
	err := db.WithContext(ctx).Model(&Event{}).
		Where("season = ? AND code = ?", season, code).
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

// SeasonIDs returns the internal identifiers of a season's persisted events keyed by
// event code. A non-empty code narrows the result to that event.
func SeasonIDs(ctx context.Context, db *gorm.DB, season int, code string) (map[string]uint64, error) {
	query := db.WithContext(ctx).Model(&Event{}).Select("id", "code").Where("season = ?", season)
	if code != "" {
		query = query.Where("code = ?", code)
	}

	var rows []struct {
		ID   uint64
		Code string
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	ids := make(map[string]uint64, len(rows))
	for _, row := range rows {
		ids[row.Code] = row.ID
	}
	return ids, nil
}

func toModel(r Record) Event {
	webcasts := make([]Webcast, 0, len(r.Webcasts))
	for _, url := range r.Webcasts {
		webcasts = append(webcasts, Webcast{URL: url})
	}

	return Event{
		Season:        r.Season,
		Code:          r.Code,
		EventID:       r.EventID,
		DivisionCode:  r.DivisionCode,
		Name:          r.Name,
		Remote:        r.Remote,
		Hybrid:        r.Hybrid,
		FieldCount:    r.FieldCount,
		Published:     r.Published,
		Type:          r.Type,
		TypeName:      r.TypeName,
		RegionCode:    r.RegionCode,
		LeagueCode:    r.LeagueCode,
		DistrictCode:  r.DistrictCode,
		Venue:         r.Venue,
		Address:       r.Address,
		City:          r.City,
		StateProv:     r.StateProv,
		Country:       r.Country,
		Website:       r.Website,
		LiveStreamURL: r.LiveStreamURL,
		Timezone:      r.Timezone,
		DateStart:     r.DateStart,
		DateEnd:       r.DateEnd,
		Webcasts:      webcasts,
	}
}

var _ reconcile.Adapter[Record, indexRow, Event] = (*Adapter)(nil)
