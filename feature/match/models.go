package match

import "time"

// Match is the persisted match row. (EventID, MatchNumber) mirrors the natural key
// (event code, match number).
type Match struct {
	ID              uint64             `gorm:"column:id;primaryKey;autoIncrement"`
	EventID         uint64             `gorm:"column:event_id;uniqueIndex:idx_matches_event_number;not null"`
	MatchNumber     int                `gorm:"column:match_number;uniqueIndex:idx_matches_event_number;not null"`
	Description     *string            `gorm:"column:description"`
	Field           *string            `gorm:"column:field"`
	TournamentLevel *string            `gorm:"column:tournament_level"`
	Series          int                `gorm:"column:series"`
	ActualStartTime *time.Time         `gorm:"column:actual_start_time"`
	PostResultTime  *time.Time         `gorm:"column:post_result_time"`
	ModifiedOn      *time.Time         `gorm:"column:modified_on"`
	ScoreRedFinal   int                `gorm:"column:score_red_final"`
	ScoreRedFoul    int                `gorm:"column:score_red_foul"`
	ScoreRedAuto    int                `gorm:"column:score_red_auto"`
	ScoreBlueFinal  int                `gorm:"column:score_blue_final"`
	ScoreBlueFoul   int                `gorm:"column:score_blue_foul"`
	ScoreBlueAuto   int                `gorm:"column:score_blue_auto"`
	Participants    []MatchParticipant `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the table name.
func (Match) TableName() string {
	return "matches"
}

// MatchParticipant assigns a team to an alliance station of a match. Rows are
// positional and replaced wholesale.
type MatchParticipant struct {
	ID      uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	MatchID uint64  `gorm:"column:match_id;index;not null"`
	TeamID  uint64  `gorm:"column:team_id;index;not null"`
	Station *string `gorm:"column:station"`
	DQ      bool    `gorm:"column:dq"`
	OnField bool    `gorm:"column:on_field"`
}

// TableName overrides the table name.
func (MatchParticipant) TableName() string {
	return "match_participants"
}

// indexRow is the match projection joined with its event code.
type indexRow struct {
	ID              uint64
	EventCode       string
	MatchNumber     int
	Description     *string
	Field           *string
	TournamentLevel *string
	Series          int
	ActualStartTime *time.Time
	PostResultTime  *time.Time
	ModifiedOn      *time.Time
	ScoreRedFinal   int
	ScoreRedFoul    int
	ScoreRedAuto    int
	ScoreBlueFinal  int
	ScoreBlueFoul   int
	ScoreBlueAuto   int
}

var trackedColumns = []string{
	"match_number", "description", "field", "tournament_level", "series",
	"actual_start_time", "post_result_time", "modified_on",
	"score_red_final", "score_red_foul", "score_red_auto",
	"score_blue_final", "score_blue_foul", "score_blue_auto",
}
