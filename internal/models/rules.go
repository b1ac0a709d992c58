package models

import "math"

// Default academic rule constants. The service config may override the
// tunable ones; these are the canonical defaults shared by the engine
// and any backfill tooling.
const (
	GradeScaleMin    = 1.0
	GradeScaleMax    = 20.0
	PassingGrade     = 10.0
	DefaultCreditCap = 35
	PartialSlots     = 4
)

// ValidGrade reports whether v lies inside the inclusive grading scale.
// Out-of-range values are rejected, never clamped.
func ValidGrade(v, min, max float64) bool {
	return v >= min && v <= max
}

// Round2 rounds to two decimal places, the storage precision for grades.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MeanOfPartials returns the arithmetic mean of the four partial slots.
// ok is false until every slot is present.
func MeanOfPartials(partials [4]*float64) (mean float64, ok bool) {
	sum := 0.0
	for _, p := range partials {
		if p == nil {
			return 0, false
		}
		sum += *p
	}
	return sum / PartialSlots, true
}

// RequiredFinalPartial computes the score still needed on the missing
// fourth partial for the mean to reach the passing grade. Only
// meaningful when exactly three partials are present.
func RequiredFinalPartial(partials [4]*float64, passing float64) (required float64, ok bool) {
	sum := 0.0
	present := 0
	for _, p := range partials {
		if p != nil {
			sum += *p
			present++
		}
	}
	if present != PartialSlots-1 {
		return 0, false
	}
	return Round2(passing*PartialSlots - sum), true
}

// StatusForGrade derives the terminal status from a final grade.
func StatusForGrade(final, passing float64) DetailStatus {
	if final >= passing {
		return DetailStatusPassed
	}
	return DetailStatusFailed
}

// Overlaps reports whether two same-day time ranges overlap using
// open-interval semantics: ranges that exactly abut do not overlap.
func Overlaps(aDay, aStart, aEnd, bDay, bStart, bEnd int) bool {
	if aDay != bDay {
		return false
	}
	return aStart < bEnd && aEnd > bStart
}
