package domain

import "time"

// WindowKind identifies a fixed rate-limit window.
type WindowKind string

const (
	WindowPerMinute WindowKind = "per_minute"
	WindowPerDay    WindowKind = "per_day"
)

// Duration returns the length of the window.
func (k WindowKind) Duration() time.Duration {
	if k == WindowPerDay {
		return 24 * time.Hour
	}
	return time.Minute
}

// Start returns the UTC start of the window containing t.
func (k WindowKind) Start(t time.Time) time.Time {
	t = t.UTC()
	if k == WindowPerDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Minute)
}

// UsageWindow is one counter a request must fit in.
type UsageWindow struct {
	Kind  WindowKind
	Start time.Time
	Limit int
}

// End returns the instant the window rolls over.
func (w UsageWindow) End() time.Time {
	return w.Start.Add(w.Kind.Duration())
}
