// Package scheduler gates when the optimizer is allowed to change persisted
// target weights. The score model's forward-return horizon is multi-day;
// rebalancing more often than that horizon trades on noise.
package scheduler

import "time"

// WindowState is the two-state rebalance machine
type WindowState int

const (
	// MonitorOnly permits regime classification and the emergency brake,
	// never the eligibility gate or optimizer
	MonitorOnly WindowState = iota

	// RebalanceWindow is the designated weekly rebalance day
	RebalanceWindow
)

func (s WindowState) String() string {
	if s == RebalanceWindow {
		return "REBALANCE_WINDOW"
	}
	return "MONITOR_ONLY"
}

// WeeklyLock decides the window state for an evaluation date
type WeeklyLock struct {
	weekday time.Weekday
}

// NewWeeklyLock creates a lock rebalancing on the given weekday
func NewWeeklyLock(weekday time.Weekday) *WeeklyLock {
	return &WeeklyLock{weekday: weekday}
}

// Window returns the state for an evaluation date. A brake lock (lockedUntil
// in the future) keeps the window closed even on the rebalance weekday.
func (l *WeeklyLock) Window(asOf, lockedUntil time.Time) WindowState {
	if asOf.Weekday() != l.weekday {
		return MonitorOnly
	}
	if !lockedUntil.IsZero() && asOf.Before(lockedUntil) {
		return MonitorOnly
	}
	return RebalanceWindow
}

// NextBoundary returns midnight of the next rebalance weekday strictly after
// the given date. A brake sets locked_until to this boundary so mid-week
// re-evaluations cannot reopen the window early.
func (l *WeeklyLock) NextBoundary(after time.Time) time.Time {
	days := int(l.weekday-after.Weekday()+7) % 7
	if days == 0 {
		days = 7
	}
	next := after.AddDate(0, 0, days)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
}
