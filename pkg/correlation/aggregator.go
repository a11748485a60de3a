package correlation

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// History bounds for the pattern report.
const (
	ReportSymptomLimit = 50
	ReportMealLimit    = 100

	maxRankedFoods   = 10
	maxTopSymptoms   = 5
	maxPeakHours     = 3
	minTotalForFood  = 3
	minLinkedForFood = 2

	dominantSymptomShare = 50
)

const keepLoggingInsight = "Keep logging your meals and symptoms. A few more weeks of entries will make food patterns easier to spot."

// Analysis is the aggregator's internal result, with fractions rather than
// the percentages exposed by Report.
type Analysis struct {
	TotalSymptomLogs int
	TotalMeals       int
	AvgDiscomfort    float64
	Foods            []FoodCorrelationStat
	TopSymptoms      []SymptomFrequency
	PeakHours        []PeakHour
	Insights         []string
}

type foodTally struct {
	total         int
	linked        int
	discomfortSum int
}

// Aggregator builds the pattern report from already loaded history. It never
// touches storage.
type Aggregator struct {
	catalog  SensitivityCatalog
	location *time.Location
}

func NewAggregator(catalog SensitivityCatalog, location *time.Location) *Aggregator {
	if location == nil {
		location = time.UTC
	}
	return &Aggregator{catalog: catalog, location: location}
}

func (a *Aggregator) Analyze(symptoms []SymptomEvent, meals []MealEvent) Analysis {
	tallies := make(map[string]*foodTally)
	tally := func(food string) *foodTally {
		t, ok := tallies[food]
		if !ok {
			t = &foodTally{}
			tallies[food] = t
		}
		return t
	}

	for _, meal := range meals {
		for _, item := range meal.Items {
			tally(normalizeFoodName(item.FoodName)).total++
		}
	}

	var severeCount, severeSum int
	for _, event := range symptoms {
		if event.DiscomfortLevel == nil || *event.DiscomfortLevel < MinDiscomfortForPattern {
			continue
		}
		level := *event.DiscomfortLevel
		severeCount++
		severeSum += level

		for _, meal := range meals {
			if !withinWindow(event.LoggedAt, meal.OccurredAt) {
				continue
			}
			for _, item := range meal.Items {
				t := tally(normalizeFoodName(item.FoodName))
				t.linked++
				t.discomfortSum += level
			}
		}
	}

	analysis := Analysis{
		TotalSymptomLogs: len(symptoms),
		TotalMeals:       len(meals),
		Foods:            rankFoods(tallies),
		TopSymptoms:      topSymptoms(symptoms),
		PeakHours:        a.peakHours(symptoms),
	}
	if severeCount > 0 {
		analysis.AvgDiscomfort = float64(severeSum) / float64(severeCount)
	}
	analysis.Insights = a.insights(analysis)
	return analysis
}

func rankFoods(tallies map[string]*foodTally) []FoodCorrelationStat {
	stats := make([]FoodCorrelationStat, 0, len(tallies))
	for food, t := range tallies {
		if t.total < minTotalForFood || t.linked < minLinkedForFood {
			continue
		}
		ratio := float64(t.linked) / float64(t.total)
		avg := float64(t.discomfortSum) / float64(t.linked)
		stats = append(stats, FoodCorrelationStat{
			Food:               food,
			TotalOccurrences:   t.total,
			SymptomOccurrences: t.linked,
			CorrelationRatio:   ratio,
			AvgDiscomfort:      avg,
			Confidence:         foodConfidence(ratio, avg, t.total),
			RiskLevel:          classifyRisk(ratio),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Confidence != stats[j].Confidence {
			return stats[i].Confidence > stats[j].Confidence
		}
		if stats[i].SymptomOccurrences != stats[j].SymptomOccurrences {
			return stats[i].SymptomOccurrences > stats[j].SymptomOccurrences
		}
		return stats[i].Food < stats[j].Food
	})

	if len(stats) > maxRankedFoods {
		stats = stats[:maxRankedFoods]
	}
	return stats
}

func topSymptoms(events []SymptomEvent) []SymptomFrequency {
	counts := make(map[string]int)
	for _, event := range events {
		for _, symptom := range event.Symptoms {
			if symptom = strings.TrimSpace(symptom); symptom != "" {
				counts[symptom]++
			}
		}
	}

	out := make([]SymptomFrequency, 0, len(counts))
	for symptom, count := range counts {
		out = append(out, SymptomFrequency{
			Symptom:    symptom,
			Count:      count,
			Percentage: percent(float64(count) / float64(len(events))),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Symptom < out[j].Symptom
	})
	if len(out) > maxTopSymptoms {
		out = out[:maxTopSymptoms]
	}
	return out
}

func (a *Aggregator) peakHours(events []SymptomEvent) []PeakHour {
	var buckets [24]int
	for _, event := range events {
		buckets[event.LoggedAt.In(a.location).Hour()]++
	}

	out := make([]PeakHour, 0, maxPeakHours)
	for hour, count := range buckets {
		if count > 0 {
			out = append(out, PeakHour{Hour: hour, Label: hourLabel(hour), Count: count})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > maxPeakHours {
		out = out[:maxPeakHours]
	}
	return out
}

func hourLabel(hour int) string {
	return fmt.Sprintf("%02d:00-%02d:00", hour, (hour+1)%24)
}

func (a *Aggregator) insights(analysis Analysis) []string {
	var insights []string

	var highRisk, flagged []string
	for _, food := range analysis.Foods {
		if food.RiskLevel == RiskHigh {
			highRisk = append(highRisk, food.Food)
		}
		if food.RiskLevel == RiskHigh || food.RiskLevel == RiskMedium {
			flagged = append(flagged, food.Food)
		}
	}

	if len(highRisk) > 0 {
		insights = append(insights, fmt.Sprintf(
			"Strong association found between your symptoms and: %s. Consider discussing an elimination trial with your practitioner.",
			strings.Join(highRisk, ", ")))
	}

	if len(analysis.TopSymptoms) > 0 && analysis.TopSymptoms[0].Percentage > dominantSymptomShare {
		top := analysis.TopSymptoms[0]
		insights = append(insights, fmt.Sprintf(
			"%s is your most frequent symptom, present in %d%% of your logged episodes.",
			top.Symptom, top.Percentage))
	}

	for _, group := range a.catalog.Groups {
		for _, food := range flagged {
			if group.Matches(food) {
				insights = append(insights, group.Insight)
				break
			}
		}
	}

	if len(insights) == 0 {
		insights = append(insights, keepLoggingInsight)
	}
	return insights
}

// Report converts the analysis to its wire shape.
func (a Analysis) Report() Report {
	report := Report{
		Summary: ReportSummary{
			TotalSymptomLogs: a.TotalSymptomLogs,
			TotalMeals:       a.TotalMeals,
			AvgDiscomfort:    round1(a.AvgDiscomfort),
		},
		Correlations: make([]FoodCorrelation, 0, len(a.Foods)),
		TopSymptoms:  append([]SymptomFrequency{}, a.TopSymptoms...),
		PeakHours:    append([]PeakHour{}, a.PeakHours...),
		Insights:     append([]string{}, a.Insights...),
	}
	for _, food := range a.Foods {
		if food.RiskLevel == RiskHigh {
			report.Summary.HighRiskFoods++
		}
		report.Correlations = append(report.Correlations, FoodCorrelation{
			Food:               food.Food,
			TotalOccurrences:   food.TotalOccurrences,
			SymptomOccurrences: food.SymptomOccurrences,
			CorrelationRatio:   percent(food.CorrelationRatio),
			AvgDiscomfort:      round1(food.AvgDiscomfort),
			Confidence:         percent(food.Confidence),
			RiskLevel:          food.RiskLevel,
		})
	}
	return report
}

func normalizeFoodName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return UnknownFood
	}
	return name
}
