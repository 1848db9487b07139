// Package event reconciles a season's upstream events and their webcast links.
package event

import "time"

// Event is the persisted event row. (Season, Code) is the natural key.
type Event struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	Season        int        `gorm:"column:season;uniqueIndex:idx_events_season_code;not null"`
	Code          string     `gorm:"column:code;size:32;uniqueIndex:idx_events_season_code;not null"`
	EventID       *string    `gorm:"column:event_id"`
	DivisionCode  *string    `gorm:"column:division_code"`
	Name          *string    `gorm:"column:name"`
	Remote        bool       `gorm:"column:remote"`
	Hybrid        bool       `gorm:"column:hybrid"`
	FieldCount    int        `gorm:"column:field_count"`
	Published     bool       `gorm:"column:published"`
	Type          *string    `gorm:"column:type"`
	TypeName      *string    `gorm:"column:type_name"`
	RegionCode    *string    `gorm:"column:region_code"`
	LeagueCode    *string    `gorm:"column:league_code"`
	DistrictCode  *string    `gorm:"column:district_code"`
	Venue         *string    `gorm:"column:venue"`
	Address       *string    `gorm:"column:address"`
	City          *string    `gorm:"column:city"`
	StateProv     *string    `gorm:"column:stateprov"`
	Country       *string    `gorm:"column:country"`
	Website       *string    `gorm:"column:website"`
	LiveStreamURL *string    `gorm:"column:live_stream_url"`
	Timezone      *string    `gorm:"column:timezone"`
	DateStart     *time.Time `gorm:"column:date_start"`
	DateEnd       *time.Time `gorm:"column:date_end"`
	Webcasts      []Webcast  `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName overrides the table name.
func (Event) TableName() string {
	return "events"
}

// Webcast is a stream URL owned by an event. It has no identity of its own.
type Webcast struct {
	ID      uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	EventID uint64 `gorm:"column:event_id;index;not null"`
	URL     string `gorm:"column:url;not null"`
}

// TableName overrides the table name.
func (Webcast) TableName() string {
	return "webcasts"
}

type indexRow struct {
	ID            uint64
	Code          string
	EventID       *string
	DivisionCode  *string
	Name          *string
	Remote        bool
	Hybrid        bool
	FieldCount    int
	Published     bool
	Type          *string
	TypeName      *string
	RegionCode    *string
	LeagueCode    *string
	DistrictCode  *string
	Venue         *string
	Address       *string
	City          *string
	StateProv     *string `gorm:"column:stateprov"`
	Country       *string
	Website       *string
	LiveStreamURL *string `gorm:"column:live_stream_url"`
	Timezone      *string
	DateStart     *time.Time
	DateEnd       *time.Time
}

var trackedColumns = []string{
	"event_id", "division_code", "name", "remote", "hybrid", "field_count",
	"published", "type", "type_name", "region_code", "league_code", "district_code",
	"venue", "address", "city", "stateprov", "country", "website", "live_stream_url",
	"timezone", "date_start", "date_end",
}
