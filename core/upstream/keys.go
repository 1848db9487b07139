package upstream

import "strconv"

// MatchKey composes the natural key of a match. Match numbers are only unique within an event.
func MatchKey(eventCode string, matchNumber int) string {
	return eventCode + ":" + strconv.Itoa(matchNumber)
}

// TeamKey is the natural key of a team.
func TeamKey(teamNumber int) string {
	return strconv.Itoa(teamNumber)
}
