package engine

import (
	"fmt"
	"time"

	"github.com/camuig/llm-arena/internal/config"
)

// Calendar is a weekly trading window: the same session hours on each
// trading weekday, in one timezone.
type Calendar struct {
	loc        *time.Location
	openMin    int
	closeMin   int
	weekdays   map[time.Weekday]bool
	alwaysOpen bool
}

func NewCalendar(loc *time.Location, openMin, closeMin int, weekdays []time.Weekday) *Calendar {
	days := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		days[d] = true
	}
	return &Calendar{loc: loc, openMin: openMin, closeMin: closeMin, weekdays: days}
}

// AlwaysOpen returns a calendar with no closed periods.
func AlwaysOpen() *Calendar {
	return &Calendar{loc: time.UTC, alwaysOpen: true}
}

func CalendarFromConfig(cfg *config.Config) (*Calendar, error) {
	if cfg.Market.AlwaysOpen {
		return AlwaysOpen(), nil
	}
	weekdays, err := cfg.TradingWeekdays()
	if err != nil {
		return nil, fmt.Errorf("trading weekdays: %w", err)
	}
	openMin, closeMin := cfg.SessionMinutes()
	return NewCalendar(cfg.MarketLocation(), openMin, closeMin, weekdays), nil
}

// IsOpen reports whether t falls in [open, close) on a trading weekday.
func (c *Calendar) IsOpen(t time.Time) bool {
	if c.alwaysOpen {
		return true
	}
	local := t.In(c.loc)
	if !c.weekdays[local.Weekday()] {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= c.openMin && minutes < c.closeMin
}

// NextOpen returns t when the window is open, otherwise the next session
// opening after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	if c.IsOpen(t) {
		return t
	}
	local := t.In(c.loc)
	for i := 0; i <= 7; i++ {
		day := local.AddDate(0, 0, i)
		open := time.Date(day.Year(), day.Month(), day.Day(), c.openMin/60, c.openMin%60, 0, 0, c.loc)
		if c.weekdays[open.Weekday()] && open.After(t) {
			return open
		}
	}
	// No trading weekdays configured; re-check in a day.
	return t.Add(24 * time.Hour)
}
