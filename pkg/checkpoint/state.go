// Package checkpoint persists crawl progress so an interrupted harvest resumes
// where it stopped.
package checkpoint

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidState is returned when a checkpoint violates its invariants.
var ErrInvalidState = errors.New("invalid checkpoint state")

// DayLayout is the text form of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date without time of day or zone.
type Day struct {
	t time.Time
}

// NewDay returns the given calendar date.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the calendar date of now in its own location.
func Today(now time.Time) Day {
	y, m, d := now.Date()

	return NewDay(y, m, d)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}

	return Day{t: t}, nil
}

// AddDays returns the day n days later (earlier for negative n).
func (d Day) AddDays(n int) Day {
	return Day{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool {
	return d.t.Before(o.t)
}

// IsZero reports whether d is unset.
func (d Day) IsZero() bool {
	return d.t.IsZero()
}

// Time returns midnight UTC of d.
func (d Day) Time() time.Time {
	return d.t
}

func (d Day) String() string {
	return d.t.Format(DayLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// CrawlState is the resumable position of the search driver.
// The JSON form is the collector_state.json document.
type CrawlState struct {
	// KeywordIndex grows without bound; the keyword is chosen modulo the list length.
	KeywordIndex int `json:"keyword_index"`
	// DateEnd is the inclusive last day of the current window.
	DateEnd Day `json:"date_end"`
	// Page is the 1-based search result page to fetch next.
	Page int `json:"page"`
}

// FirstPage is the page every window starts from.
const FirstPage = 1

// Default returns the initial state: first keyword, window ending today, first page.
func Default(today Day) CrawlState {
	return CrawlState{KeywordIndex: 0, DateEnd: today, Page: FirstPage}
}

// NextPage returns the state after one page of the current window was processed.
func (s CrawlState) NextPage() CrawlState {
	s.Page++

	return s
}

// Advance slides the window back by widthDays, moves to the next keyword and
// restarts paging.
func (s CrawlState) Advance(widthDays int) CrawlState {
	return CrawlState{
		KeywordIndex: s.KeywordIndex + 1,
		DateEnd:      s.DateEnd.AddDays(-widthDays),
		Page:         FirstPage,
	}
}

// Keyword returns the keyword the state points at.
func (s CrawlState) Keyword(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}

	return keywords[s.KeywordIndex%len(keywords)]
}

// Validate checks the state invariants.
func (s CrawlState) Validate() error {
	switch {
	case s.Page < FirstPage:
		return fmt.Errorf("%w: page %d < %d", ErrInvalidState, s.Page, FirstPage)
	case s.KeywordIndex < 0:
		return fmt.Errorf("%w: negative keyword index %d", ErrInvalidState, s.KeywordIndex)
	case s.DateEnd.IsZero():
		return fmt.Errorf("%w: missing date_end", ErrInvalidState)
	default:
		return nil
	}
}
