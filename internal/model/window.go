package model

import "time"

// Window selects a time range for analytics queries.
type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowAll   Window = "all"
)

// AnalyticsCutoff returns the inclusive lower bound for record-level
// analytics. "day" is local midnight today, "week" 7 days back, "month"
// 30 days back, "all" unbounded (zero time). Unrecognized tokens fall
// back to "month".
//
// TrendCutoff treats unrecognized tokens as unbounded instead; the two
// deliberately disagree to match long-standing API behavior.
func AnalyticsCutoff(w Window, now time.Time) time.Time {
	switch w {
	case WindowDay:
		return midnight(now)
	case WindowWeek:
		return now.AddDate(0, 0, -7)
	case WindowAll:
		return time.Time{}
	case WindowMonth:
		return now.AddDate(0, 0, -30)
	default:
		return now.AddDate(0, 0, -30)
	}
}

// TrendCutoff returns the inclusive lower bound for trend aggregation.
// Unrecognized tokens (including "all") are unbounded.
func TrendCutoff(w Window, now time.Time) time.Time {
	switch w {
	case WindowDay:
		return midnight(now)
	case WindowWeek:
		return now.AddDate(0, 0, -7)
	case WindowMonth:
		return now.AddDate(0, 0, -30)
	default:
		return time.Time{}
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
