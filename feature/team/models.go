// Package team reconciles upstream team records into the teams table.
package team

import "time"

// Team is the persisted team row. TeamNumber is the natural key.
type Team struct {
	ID                uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	TeamNumber        int     `gorm:"column:team_number;uniqueIndex;not null"`
	DisplayTeamNumber *string `gorm:"column:display_team_number"`
	TeamID            *int    `gorm:"column:team_id"`
	TeamProfileID     *int    `gorm:"column:team_profile_id"`
	NameFull          *string `gorm:"column:name_full"`
	NameShort         *string `gorm:"column:name_short"`
	SchoolName        *string `gorm:"column:school_name"`
	City              *string `gorm:"column:city"`
	StateProv         *string `gorm:"column:state_prov"`
	Country           *string `gorm:"column:country"`
	Website           *string `gorm:"column:website"`
	RookieYear        *int    `gorm:"column:rookie_year"`
	RobotName         *string `gorm:"column:robot_name"`
	DistrictCode      *string `gorm:"column:district_code"`
	HomeCMP           *string `gorm:"column:home_cmp"`
	HomeRegion        *string `gorm:"column:home_region"`
	DisplayLocation   *string `gorm:"column:display_location"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName overrides the table name.
func (Team) TableName() string {
	return "teams"
}

// indexRow is the projection loaded by the key index: natural key, internal ID and
// the tracked columns.
type indexRow struct {
	ID                uint64
	TeamNumber        int
	DisplayTeamNumber *string
	TeamID            *int
	TeamProfileID     *int
	NameFull          *string
	NameShort         *string
	SchoolName        *string
	City              *string
	StateProv         *string
	Country           *string
	Website           *string
	RookieYear        *int
	RobotName         *string
	DistrictCode      *string
	HomeCMP           *string
	HomeRegion        *string
	DisplayLocation   *string
}

// trackedColumns are compared against upstream and rewritten on update.
var trackedColumns = []string{
	"display_team_number", "team_id", "team_profile_id", "name_full", "name_short",
	"school_name", "city", "state_prov", "country", "website", "rookie_year",
	"robot_name", "district_code", "home_cmp", "home_region", "display_location",
}
