package correlation

import (
	"sort"
	"time"
)

// lookback returns the inclusive window of meal times considered for a symptom
// logged at eventAt.
func lookback(eventAt time.Time) (from, to time.Time) {
	return eventAt.Add(-WindowEnd), eventAt.Add(-WindowStart)
}

// planCorrelations scores every candidate meal against event. Meals outside the
// look-back window are skipped, so callers may pass a loosely filtered list.
func planCorrelations(event SymptomEvent, meals []MealEvent) []Correlation {
	planned := make([]Correlation, 0, len(meals))
	for _, meal := range meals {
		if !withinWindow(event.LoggedAt, meal.OccurredAt) {
			continue
		}
		hours := event.LoggedAt.Sub(meal.OccurredAt).Hours()
		score, flagged := mealScore(hours, event.DiscomfortLevel)
		planned = append(planned, Correlation{
			SymptomEventID:   event.ID,
			MealEventID:      meal.ID,
			CorrelationScore: score,
			IsFlagged:        flagged,
			HoursBefore:      round1(hours),
		})
	}
	sort.Slice(planned, func(i, j int) bool {
		return planned[i].MealEventID < planned[j].MealEventID
	})
	return planned
}
