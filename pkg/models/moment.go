// Package models contains shared data models used across the reelforge codebase.
package models

// Moment categories produced by the compute service.
const (
	MomentCategoryCeremony  = "ceremony"
	MomentCategoryReception = "reception"
	MomentCategoryEmotional = "emotional"
	MomentCategoryGroup     = "group"
)

// Moment is one detected highlight candidate. Once appended to a job it is
// immutable.
type Moment struct {
	Category         string  `json:"category"`
	Subtype          string  `json:"subtype"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Confidence       float64 `json:"confidence"`
	Description      string  `json:"description"`
}

// Valid checks the structural invariants on a moment: a known category,
// positive duration, and confidence within [0, 1].
func (m Moment) Valid() bool {
	switch m.Category {
	case MomentCategoryCeremony, MomentCategoryReception, MomentCategoryEmotional, MomentCategoryGroup:
	default:
		return false
	}
	if m.DurationSeconds <= 0 {
		return false
	}
	return m.Confidence >= 0 && m.Confidence <= 1
}
