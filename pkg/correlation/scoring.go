package correlation

import (
	"math"
	"time"
)

// Digestion window: a meal is attributable to a symptom logged between 2 and 8
// hours after it, with 3 to 5 hours weighted most heavily.
const (
	WindowStart     = 2 * time.Hour
	WindowEnd       = 8 * time.Hour
	PeakWindowStart = 3 * time.Hour
	PeakWindowEnd   = 5 * time.Hour

	// MaxConfidence caps every confidence and correlation score.
	MaxConfidence = 0.95

	MinDiscomfortForPattern = 3
	FlagDiscomfortThreshold = 7
	neutralDiscomfort       = 5
)

// withinWindow reports whether a meal at mealAt precedes eventAt by at least
// WindowStart and at most WindowEnd.
func withinWindow(eventAt, mealAt time.Time) bool {
	gap := eventAt.Sub(mealAt)
	return gap >= WindowStart && gap <= WindowEnd
}

func foodConfidence(ratio, avgDiscomfort float64, totalOccurrences int) float64 {
	sample := math.Min(float64(totalOccurrences)/20, 0.2)
	return clampScore(0.5*ratio + 0.3*(avgDiscomfort/10) + sample)
}

// classifyRisk uses strict inequalities: a ratio of exactly 0.6 is medium.
func classifyRisk(ratio float64) RiskLevel {
	switch {
	case ratio > 0.6:
		return RiskHigh
	case ratio > 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}

func baseScore(hoursDiff float64) float64 {
	switch {
	case hoursDiff >= 3 && hoursDiff <= 5:
		return 0.8
	case hoursDiff >= 2 && hoursDiff <= 6:
		return 0.7
	default:
		return 0.5
	}
}

// mealScore scores a single meal against a symptom event. A missing discomfort
// rating counts as the neutral midpoint for the score but never flags.
func mealScore(hoursDiff float64, discomfort *int) (score float64, flagged bool) {
	level := neutralDiscomfort
	if discomfort != nil {
		level = *discomfort
	}
	multiplier := float64(level) / 10
	score = clampScore(baseScore(hoursDiff) * (0.7 + multiplier*0.3))
	flagged = discomfort != nil && *discomfort >= FlagDiscomfortThreshold
	return score, flagged
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(MaxConfidence, v)
}

func percent(fraction float64) int {
	p := int(math.Round(fraction * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
