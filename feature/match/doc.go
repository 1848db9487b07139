// Package match reconciles upstream match results and their participant rows.
//
// Matches are fetched per event with bounded concurrency and keyed by
// EVENTCODE:matchNumber. A match whose event is not persisted is skipped; a
// participant whose team is not persisted is dropped and reported as an omission
// while the match itself is still written. Participants are replaced together with
// the match in one transaction.
package match
