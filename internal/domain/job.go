package domain

import (
	"strings"
	"time"
)

// Mode enumerates the supported output styles.
type Mode string

const (
	ModeMainWhite      Mode = "main_white"
	ModeLifestyle      Mode = "lifestyle"
	ModeFeatureCallout Mode = "feature_callout"
	ModePackaging      Mode = "packaging"
)

// Modes lists every supported mode in a stable order.
var Modes = []Mode{ModeMainWhite, ModeLifestyle, ModeFeatureCallout, ModePackaging}

// ParseMode normalizes raw input into a supported mode.
func ParseMode(raw string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Modes {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// TransitionSources returns the states a job may be in when moving to target.
func TransitionSources(target JobStatus) []JobStatus {
	switch target {
	case JobStatusRunning:
		return []JobStatus{JobStatusQueued}
	case JobStatusSucceeded:
		return []JobStatus{JobStatusRunning}
	case JobStatusFailed:
		return []JobStatus{JobStatusQueued, JobStatusRunning}
	default:
		return nil
	}
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to JobStatus) bool {
	for _, s := range TransitionSources(to) {
		if s == from {
			return true
		}
	}
	return false
}

// Job tracks a single generation request from admission to a terminal state.
// Error is set only when Status is failed; CostUnits is positive only when
// Status is succeeded.
type Job struct {
	ID            string
	UserID        string
	ProjectID     string
	Mode          Mode
	InputAssetID  string
	Status        JobStatus
	Error         string
	CostUnits     int
	OutputAssetID string
	Inputs        []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
}
