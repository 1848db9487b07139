package reconcile

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scope selects the upstream collection a run reconciles.
type Scope struct {
	// Season is the competition season (e.g. 2025).
	Season int `json:"season"`

	// EventCode narrows match runs to one event. Empty means every event of the season.
	EventCode string `json:"event_code,omitempty"`
}

// ActionType represents the classification of one upstream record.
type ActionType string

const (
	// ActionCreate inserts an entity whose natural key is not persisted yet.
	ActionCreate ActionType = "create"
	// ActionUpdate rewrites a persisted entity whose tracked fields differ.
	ActionUpdate ActionType = "update"
	// ActionNoop leaves a persisted entity untouched.
	ActionNoop ActionType = "noop"
)

// Action represents a planned write for one upstream record.
type Action[U any] struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the entity's natural key.
	Key string `json:"key"`

	// ID is the persisted internal identifier. Only set for ActionUpdate.
	ID uint64 `json:"id,omitempty"`

	// Mismatch lists the tracked fields that triggered an update.
	Mismatch []string `json:"mismatch,omitempty"`

	// Record is the full upstream record.
	Record U `json:"-"`
}

// Omission describes a dependent child row dropped during reference resolution.
type Omission struct {
	// Key is the natural key of the unresolved reference (e.g. a team number).
	Key string `json:"key"`

	// Reason explains why the row was dropped.
	Reason string `json:"reason"`
}

// Outcome records a skipped or failed entity.
type Outcome struct {
	// Key is the entity's natural key.
	Key string `json:"key"`

	// Action is the classification the entity had when it was skipped or failed.
	Action ActionType `json:"action"`

	// Reason explains the outcome, e.g. "event not found".
	Reason string `json:"reason"`
}

// Summary aggregates the result of one reconciliation run.
type Summary struct {
	RunID  string `json:"run_id"`
	Entity string `json:"entity"`
	Scope  Scope  `json:"scope"`

	// DryRun reports planned rather than applied creates/updates.
	DryRun bool `json:"dry_run"`

	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	// Duplicates counts upstream natural keys seen more than once in the fetch.
	Duplicates int `json:"duplicates"`

	// OmittedChildren counts child rows dropped because their reference was unresolved.
	OmittedChildren int `json:"omitted_children"`

	Skips    []Outcome `json:"skips,omitempty"`
	Failures []Outcome `json:"failures,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall time the run took.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Fields returns the summary counters as zap fields.
func (s *Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("fetched", s.Fetched),
		zap.Int("created", s.Created),
		zap.Int("updated", s.Updated),
		zap.Int("unchanged", s.Unchanged),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.Int("duplicates", s.Duplicates),
		zap.Int("omitted_children", s.OmittedChildren),
		zap.Bool("dry_run", s.DryRun),
		zap.Duration("duration", s.Duration()),
	}
}

// recorder collects outcomes from concurrent write units.
type recorder struct {
	mu      sync.Mutex
	summary *Summary
}

func (r *recorder) applied(t ActionType, omitted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == ActionCreate {
		r.summary.Created++
	} else {
		r.summary.Updated++
	}
	r.summary.OmittedChildren += omitted
}

func (r *recorder) skip(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Skipped++
	r.summary.Skips = append(r.summary.Skips, o)
}

func (r *recorder) fail(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Failed++
	r.summary.Failures = append(r.summary.Failures, o)
}

// finish orders outcomes by key so concurrent runs report deterministically.
func (r *recorder) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.summary.Skips, func(i, j int) bool { return r.summary.Skips[i].Key < r.summary.Skips[j].Key })
	sort.SliceStable(r.summary.Failures, func(i, j int) bool { return r.summary.Failures[i].Key < r.summary.Failures[j].Key })
	r.summary.FinishedAt = time.Now()
}
