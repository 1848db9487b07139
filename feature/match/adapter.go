package match

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"ftc-sync/core/reconcile"
	"ftc-sync/core/upstream"
	"ftc-sync/feature/event"
	"ftc-sync/feature/team"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Name is the entity type name used in summaries, logs and the status API.
const Name = "matches"

// Source is the part of the upstream client the match adapter needs.
type Source interface {
	ListEvents(ctx context.Context, season int) ([]upstream.Event, error)
	ListEventMatches(ctx context.Context, season int, eventCode string) ([]upstream.Match, error)
}

// Record is an upstream match tagged with the season it was fetched for.
type Record struct {
	Season int `json:"season"`
	upstream.Match
}

// UnmarshalJSON decodes an archived record. The embedded match's decoder would
// otherwise consume the whole object and drop Season.
func (r *Record) UnmarshalJSON(data []byte) error {
	if err := r.Match.UnmarshalJSON(data); err != nil {
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

// Adapter reconciles upstream matches and their participants.
//
// Event and team references are memoized for the lifetime of the adapter, so an
// Adapter should serve a single run.
type Adapter struct {
	db          *gorm.DB
	source      Source
	concurrency int
	events      *reconcile.KeyResolver
	teams       *reconcile.KeyResolver
	logger      *zap.Logger
}

// NewAdapter creates a match adapter. concurrency bounds parallel per-event fetches.
func NewAdapter(db *gorm.DB, source Source, concurrency int, logger *zap.Logger) *Adapter {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		db:          db,
		source:      source,
		concurrency: concurrency,
		logger:      logger,
		events: reconcile.NewKeyResolver(func(ctx context.Context, key string) (uint64, bool, error) {
			season, code, _ := strings.Cut(key, "/")
			n, err := strconv.Atoi(season)
			if err != nil {
				return 0, false, fmt.Errorf("invalid event key %q", key)
			}
			return event.LookupID(ctx, db, n, code)
		}),
		teams: reconcile.NewKeyResolver(func(ctx context.Context, key string) (uint64, bool, error) {
			n, err := strconv.Atoi(key)
			if err != nil {
				return 0, false, fmt.Errorf("invalid team key %q", key)
			}
			return team.LookupID(ctx, db, n)
		}),
	}
}

// Reconcile runs one reconciliation of the season's matches, or of one event's
// matches when scope.EventCode is set.
func (a *Adapter) Reconcile(ctx context.Context, scope reconcile.Scope, opts reconcile.Options) (*reconcile.Summary, error) {
	return reconcile.Run[Record, indexRow, Match](ctx, a, scope, opts)
}

// Name implements reconcile.Adapter.
func (a *Adapter) Name() string { return Name }

// FetchSnapshot reads the matches of every event in scope with bounded fan-out.
// Any failed event fetch fails the whole snapshot.
func (a *Adapter) FetchSnapshot(ctx context.Context, scope reconcile.Scope) ([]Record, error) {
	codes := []string{scope.EventCode}
	if scope.EventCode == "" {
		events, err := a.source.ListEvents(ctx, scope.Season)
		if err != nil {
			return nil, fmt.Errorf("fetch events: %w", err)
		}
		codes = make([]string, len(events))
		for i, e := range events {
			codes[i] = e.Code
		}
	}

	results := make([][]upstream.Match, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, code := range codes {
		g.Go(func() error {
			matches, err := a.source.ListEventMatches(gctx, scope.Season, code)
			if err != nil {
				return fmt.Errorf("fetch matches for %s: %w", code, err)
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []Record
	for i, matches := range results {
		for _, m := range matches {
			m.EventCode = codes[i]
			records = append(records, Record{Season: scope.Season, Match: m})
		}
	}

	a.logger.Debug("Fetched matches", zap.Int("events", len(codes)), zap.Int("count", len(records)))
	return records, nil
}

// LoadIndex loads the tracked projection of persisted matches in scope keyed by
// "<eventCode>:<matchNumber>". The scope's event identifiers are loaded alongside and
// seed the event resolver, so resolution needs no per-event lookup.
func (a *Adapter) LoadIndex(ctx context.Context, scope reconcile.Scope) (map[string]indexRow, error) {
	columns := make([]string, 0, len(trackedColumns)+2)
	columns = append(columns, "matches.id", "events.code AS event_code")
	for _, col := range trackedColumns {
		columns = append(columns, "matches."+col)
	}

	query := a.db.WithContext(ctx).
		Table("matches").
		Select(strings.Join(columns, ", ")).
		Joins("JOIN events ON events.id = matches.event_id").
		Where("events.season = ?", scope.Season)
	if scope.EventCode != "" {
		query = query.Where("events.code = ?", scope.EventCode)
	}

	var rows []indexRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load match index: %w", err)
	}

	index := make(map[string]indexRow, len(rows))
	for _, row := range rows {
		index[upstream.MatchKey(row.EventCode, row.MatchNumber)] = row
	}

	ids, err := event.SeasonIDs(ctx, a.db, scope.Season, scope.EventCode)
	if err != nil {
		return nil, fmt.Errorf("load event ids: %w", err)
	}
	keyed := make(map[string]uint64, len(ids))
	for code, id := range ids {
		keyed[eventKey(scope.Season, code)] = id
	}
	a.events.Preload(keyed)

	return index, nil
}

// UpstreamKey implements reconcile.Adapter.
func (a *Adapter) UpstreamKey(r Record) string { return r.Key() }

// PersistedID implements reconcile.Adapter.
func (a *Adapter) PersistedID(row indexRow) uint64 { return row.ID }

// CompareFields reports the tracked fields that differ. Participants are not tracked;
// they are rewritten whenever the match itself changes.
func (a *Adapter) CompareFields(p indexRow, r Record) []string {
	return reconcile.Diff([]reconcile.Field{
		reconcile.F("matchNumber", p.MatchNumber, r.MatchNumber),
		reconcile.F("description", p.Description, r.Description),
		reconcile.F("field", p.Field, r.Field),
		reconcile.F("tournamentLevel", p.TournamentLevel, r.TournamentLevel),
		reconcile.F("series", p.Series, r.Series),
		reconcile.F("actualStartTime", p.ActualStartTime, r.ActualStartTime),
		reconcile.F("postResultTime", p.PostResultTime, r.PostResultTime),
		reconcile.F("modifiedOn", p.ModifiedOn, r.ModifiedOn),
		reconcile.F("scoreRedFinal", p.ScoreRedFinal, r.ScoreRedFinal),
		reconcile.F("scoreRedFoul", p.ScoreRedFoul, r.ScoreRedFoul),
		reconcile.F("scoreRedAuto", p.ScoreRedAuto, r.ScoreRedAuto),
		reconcile.F("scoreBlueFinal", p.ScoreBlueFinal, r.ScoreBlueFinal),
		reconcile.F("scoreBlueFoul", p.ScoreBlueFoul, r.ScoreBlueFoul),
		reconcile.F("scoreBlueAuto", p.ScoreBlueAuto, r.ScoreBlueAuto),
	})
}

// Resolve maps the record to a row. A missing event skips the match; a missing team
// only drops that participant.
func (a *Adapter) Resolve(ctx context.Context, r Record) (Match, []reconcile.Omission, error) {
	eventID, found, err := a.events.Resolve(ctx, eventKey(r.Season, r.EventCode))
	if err != nil {
		return Match{}, nil, fmt.Errorf("resolve event %s: %w", r.EventCode, err)
	}
	if !found {
		return Match{}, nil, reconcile.Unresolved("event not found")
	}

	var omitted []reconcile.Omission
	participants := make([]MatchParticipant, 0, len(r.Teams))
	for _, t := range r.Teams {
		key := upstream.TeamKey(t.TeamNumber)
		teamID, found, err := a.teams.Resolve(ctx, key)
		if err != nil {
			return Match{}, nil, fmt.Errorf("resolve team %s: %w", key, err)
		}
		if !found {
			omitted = append(omitted, reconcile.Omission{Key: key, Reason: "team not found"})
			continue
		}
		participants = append(participants, MatchParticipant{
			TeamID:  teamID,
			Station: t.Station,
			DQ:      t.DQ,
			OnField: t.OnField,
		})
	}

	return Match{
		EventID:         eventID,
		MatchNumber:     r.MatchNumber,
		Description:     r.Description,
		Field:           r.Field,
		TournamentLevel: r.TournamentLevel,
		Series:          r.Series,
		ActualStartTime: r.ActualStartTime,
		PostResultTime:  r.PostResultTime,
		ModifiedOn:      r.ModifiedOn,
		ScoreRedFinal:   r.ScoreRedFinal,
		ScoreRedFoul:    r.ScoreRedFoul,
		ScoreRedAuto:    r.ScoreRedAuto,
		ScoreBlueFinal:  r.ScoreBlueFinal,
		ScoreBlueFoul:   r.ScoreBlueFoul,
		ScoreBlueAuto:   r.ScoreBlueAuto,
		Participants:    participants,
	}, omitted, nil
}

// Create inserts the match and its participants in one transaction.
func (a *Adapter) Create(ctx context.Context, m Match) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&m).Error
	})
}

// Update rewrites the tracked columns and replaces every participant of the match.
func (a *Adapter) Update(ctx context.Context, id uint64, m Match) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ?", id).Delete(&MatchParticipant{}).Error; err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}

		result := tx.Model(&Match{}).
			Where("id = ?", id).
			Select(trackedColumns).
			Omit(clause.Associations).
			Updates(&m)
		if result.Error != nil {
			return fmt.Errorf("update match: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("match %d no longer exists", id)
		}

		if len(m.Participants) == 0 {
			return nil
		}
		participants := make([]MatchParticipant, len(m.Participants))
		for i, p := range m.Participants {
			p.ID = 0
			p.MatchID = id
			participants[i] = p
		}
		if err := tx.Create(&participants).Error; err != nil {
			return fmt.Errorf("create participants: %w", err)
		}
		return nil
	})
}

func eventKey(season int, code string) string {
	return strconv.Itoa(season) + "/" + code
}

var _ reconcile.Adapter[Record, indexRow, Match] = (*Adapter)(nil)
