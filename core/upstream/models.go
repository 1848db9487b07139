package upstream

import (
	"fmt"
	"time"

	"ftc-sync/core/utils"

	"github.com/goccy/go-json"
)

// Team is a team record as returned by the teams endpoint.
type Team struct {
	TeamNumber        int     `json:"teamNumber"`
	DisplayTeamNumber *string `json:"displayTeamNumber"`
	TeamID            *int    `json:"teamId"`
	TeamProfileID     *int    `json:"teamProfileId"`
	NameFull          *string `json:"nameFull"`
	NameShort         *string `json:"nameShort"`
	SchoolName        *string `json:"schoolName"`
	City              *string `json:"city"`
	StateProv         *string `json:"stateProv"`
	Country           *string `json:"country"`
	Website           *string `json:"website"`
	RookieYear        *int    `json:"rookieYear"`
	RobotName         *string `json:"robotName"`
	DistrictCode      *string `json:"districtCode"`
	HomeCMP           *string `json:"homeCMP"`
	HomeRegion        *string `json:"homeRegion"`
	DisplayLocation   *string `json:"displayLocation"`
}

// TeamsPage is one page of the teams endpoint.
type TeamsPage struct {
	Teams       []Team `json:"teams"`
	TeamCount   int    `json:"teamCountTotal"`
	PageTotal   int    `json:"pageTotal"`
	PageCurrent int    `json:"pageCurrent"`
}

// Event is an event record. Coordinates are not decoded; dates are normalized to UTC.
type Event struct {
	EventID       *string    `json:"eventId"`
	Code          string     `json:"code"`
	DivisionCode  *string    `json:"divisionCode"`
	Name          *string    `json:"name"`
	Remote        bool       `json:"remote"`
	Hybrid        bool       `json:"hybrid"`
	FieldCount    int        `json:"fieldCount"`
	Published     bool       `json:"published"`
	Type          *string    `json:"type"`
	TypeName      *string    `json:"typeName"`
	RegionCode    *string    `json:"regionCode"`
	LeagueCode    *string    `json:"leagueCode"`
	DistrictCode  *string    `json:"districtCode"`
	Venue         *string    `json:"venue"`
	Address       *string    `json:"address"`
	City          *string    `json:"city"`
	StateProv     *string    `json:"stateprov"`
	Country       *string    `json:"country"`
	Website       *string    `json:"website"`
	LiveStreamURL *string    `json:"liveStreamUrl"`
	Webcasts      []string   `json:"webcasts"`
	Timezone      *string    `json:"timezone"`
	DateStart     *time.Time `json:"dateStart"`
	DateEnd       *time.Time `json:"dateEnd"`
}

// UnmarshalJSON accepts ISO dates with or without a zone as well as epoch numbers.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	data, err := normalizeTimes(data, "dateStart", "dateEnd")
	if err != nil {
		return err
	}

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p)

	if e.Webcasts == nil {
		e.Webcasts = []string{}
	}
	return nil
}

// MatchTeam is one alliance slot of a match.
type MatchTeam struct {
	TeamNumber int     `json:"teamNumber"`
	Station    *string `json:"station"`
	DQ         bool    `json:"dq"`
	OnField    bool    `json:"onField"`
}

// Match is a match result. EventCode is not part of the payload; the client sets it
// from the request so every match carries its full natural key.
type Match struct {
	EventCode       string      `json:"eventCode,omitempty"`
	MatchNumber     int         `json:"matchNumber"`
	Description     *string     `json:"description"`
	Field           *string     `json:"field"`
	TournamentLevel *string     `json:"tournamentLevel"`
	Series          int         `json:"series"`
	ActualStartTime *time.Time  `json:"actualStartTime"`
	PostResultTime  *time.Time  `json:"postResultTime"`
	ModifiedOn      *time.Time  `json:"modifiedOn"`
	ScoreRedFinal   int         `json:"scoreRedFinal"`
	ScoreRedFoul    int         `json:"scoreRedFoul"`
	ScoreRedAuto    int         `json:"scoreRedAuto"`
	ScoreBlueFinal  int         `json:"scoreBlueFinal"`
	ScoreBlueFoul   int         `json:"scoreBlueFoul"`
	ScoreBlueAuto   int         `json:"scoreBlueAuto"`
	Teams           []MatchTeam `json:"teams"`
}

// UnmarshalJSON normalizes the match timestamps.
func (m *Match) UnmarshalJSON(data []byte) error {
	type plain Match
	data, err := normalizeTimes(data, "actualStartTime", "postResultTime", "modifiedOn")
	if err != nil {
		return err
	}

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Match(p)
	return nil
}

// Key returns the match natural key, "<eventCode>:<matchNumber>".
func (m Match) Key() string {
	return MatchKey(m.EventCode, m.MatchNumber)
}

// normalizeTimes rewrites the given keys of a JSON object as RFC 3339 UTC timestamps
// (or null) so they decode into *time.Time regardless of the upstream format.
func normalizeTimes(data []byte, keys ...string) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return data, nil
	}

	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		t := utils.ParseTime(val)
		if t == nil {
			raw[key] = json.RawMessage("null")
			continue
		}
		b, err := json.Marshal(t.Format(time.RFC3339Nano))
		if err != nil {
			return nil, err
		}
		raw[key] = json.RawMessage(b)
	}

	return json.Marshal(raw)
}

type eventsResponse struct {
	Events     []Event `json:"events"`
	EventCount int     `json:"eventCount"`
}

type matchesResponse struct {
	Matches []Match `json:"matches"`
}
