// Package localtime converts the worksheet's zh-TW formatted date and
// time-of-day strings into absolute instants in the configured timezone.
package localtime

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cainozoic1865/wensco-pin-server1/internal/errs"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006/1/2",
}

var timeOfDay = regexp.MustCompile(`^([0-9]{1,2}):([0-9]{2})(?::([0-9]{2}))?$`)

type Parser struct {
	loc *time.Location
}

func NewParser(loc *time.Location) Parser {
	return Parser{loc: loc}
}

// Parse combines a calendar date and a time-of-day into an instant at zero
// seconds in the parser's timezone. The time-of-day may carry a leading or
// trailing 上午/下午 (or AM/PM) marker; without a marker the hour is taken as
// 24-hour form.
func (p Parser) Parse(dateText, timeText string) (time.Time, error) {
	date, err := p.parseDate(strings.TrimSpace(dateText))
	if err != nil {
		return time.Time{}, err
	}

	hour, minute, err := parseTimeOfDay(strings.TrimSpace(timeText))
	if err != nil {
		return time.Time{}, err
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, p.loc), nil
}

func (p Parser) parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errs.Mark(errs.New("empty date"), errs.ErrMalformedTime)
	}

	for _, layout := range dateLayouts {
		if date, err := time.ParseInLocation(layout, v, p.loc); err == nil {
			return date, nil
		}
	}

	return time.Time{}, errs.Mark(errs.Newf("invalid date '%s'", v), errs.ErrMalformedTime)
}

func parseTimeOfDay(v string) (int, int, error) {
	body, marker := stripMarker(v)
	if body == "" {
		return 0, 0, errs.Mark(errs.Newf("invalid time '%s'", v), errs.ErrMalformedTime)
	}

	match := timeOfDay.FindStringSubmatch(body)
	if match == nil {
		return 0, 0, errs.Mark(errs.Newf("invalid time '%s'", v), errs.ErrMalformedTime)
	}

	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])

	switch marker {
	case "PM":
		if hour < 12 {
			hour += 12
		}
	case "AM":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, errs.Mark(errs.Newf("invalid time '%s'", v), errs.ErrMalformedTime)
	}

	return hour, minute, nil
}

// stripMarker removes an AM/PM marker from either end of the time string and
// reports which was present ("AM", "PM" or "").
func stripMarker(v string) (string, string) {
	markers := []struct {
		text   string
		period string
	}{
		{"上午", "AM"},
		{"下午", "PM"},
		{"AM", "AM"},
		{"PM", "PM"},
		{"am", "AM"},
		{"pm", "PM"},
	}

	for _, m := range markers {
		if strings.HasPrefix(v, m.text) {
			return strings.TrimSpace(strings.TrimPrefix(v, m.text)), m.period
		}

		if strings.HasSuffix(v, m.text) {
			return strings.TrimSpace(strings.TrimSuffix(v, m.text)), m.period
		}
	}

	return v, ""
}
