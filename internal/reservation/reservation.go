// Package reservation models one worksheet reservation row and the rules for
// deciding what, if anything, a processing run should do with it.
package reservation

import (
	"time"
)

// Status is the closed set of row states. The string values are what gets
// persisted to the worksheet's 狀態 column - they are the durable contract
// across runs and must not change without migrating existing sheets.
type Status string

const (
	StatusPending Status = "待產生"
	StatusIssued  Status = "已產生"
	StatusExpired Status = "已過期"
	StatusFailed  Status = "失敗"
)

// Row is one reservation as read from the worksheet. Position is the 1-based
// data row index (header row excluded) and identifies the row for write-back;
// rows are never re-matched by content.
type Row struct {
	Position int
	Email    string
	Name     string
	Company  string
	Date     string
	Start    string
	End      string
	Status   Status
	PIN      string
	Detail   string
}

// Interval is the parsed access window. Derived, never persisted.
type Interval struct {
	Start time.Time
	End   time.Time
}

// TimeParser converts the worksheet's date and time-of-day text into an
// absolute instant.
type TimeParser interface {
	Parse(dateText, timeText string) (time.Time, error)
}

// Classify decides a row's fate for this run. Pure - 'now' is injected and no
// fields are mutated. The returned detail is only meaningful for StatusFailed
// and the returned interval only for StatusPending and StatusExpired.
//
// Rules, in order:
//  1. a non-empty PIN is terminal - the row is never reprocessed
//  2. missing date/start/end fields fail the row without attempting to parse
//  3. unparseable date/time text fails the row with the parser's detail
//  4. a start at or after the end fails the row
//  5. an end before 'now' expires the row
//  6. otherwise the row is pending, eligible for issuance
func Classify(row Row, parser TimeParser, now time.Time) (Status, Interval, string) {
	if row.PIN != "" {
		return StatusIssued, Interval{}, ""
	}

	if row.Date == "" || row.Start == "" || row.End == "" {
		return StatusFailed, Interval{}, "missing fields"
	}

	start, err := parser.Parse(row.Date, row.Start)
	if err != nil {
		return StatusFailed, Interval{}, err.Error()
	}

	end, err := parser.Parse(row.Date, row.End)
	if err != nil {
		return StatusFailed, Interval{}, err.Error()
	}

	if !start.Before(end) {
		return StatusFailed, Interval{}, "start time is not before end time"
	}

	if end.Before(now) {
		return StatusExpired, Interval{Start: start, End: end}, ""
	}

	return StatusPending, Interval{Start: start, End: end}, ""
}
