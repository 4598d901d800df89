package model

import "time"

// PermissionFilter narrows a permission query. Zero fields do not filter.
//
// From is inclusive and To is exclusive, so a calendar month is
// [first day 00:00, first day of next month 00:00).
type PermissionFilter struct {
	Category    *string
	Tag         string
	From        time.Time
	To          time.Time
	MinImpact   int
	WithOutcome bool
}

// Match applies the filter to a single permission in memory.
func (f PermissionFilter) Match(p Permission) bool {
	if f.Category != nil && !p.InCategory(*f.Category) {
		return false
	}
	if f.Tag != "" && !p.HasTag(f.Tag) {
		return false
	}
	if !f.From.IsZero() && p.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !p.Date.Before(f.To) {
		return false
	}
	if f.MinImpact > 0 && p.EmotionalImpact < f.MinImpact {
		return false
	}
	if f.WithOutcome && !p.HasOutcome() {
		return false
	}
	return true
}

// MonthRange returns [start of month, start of next month) in loc for the
// month containing t.
func MonthRange(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}
