package correlation

import "time"

// UnknownFood is the display name used for a meal line item whose food
// reference could not be resolved.
const UnknownFood = "Unknown"

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SymptomEvent is one patient-reported episode. DiscomfortLevel is nil when the
// patient did not rate it.
type SymptomEvent struct {
	ID              string
	PatientID       string
	LoggedAt        time.Time
	Symptoms        []string
	DiscomfortLevel *int
	Notes           string
}

type MealLineItem struct {
	FoodName string
}

type MealEvent struct {
	ID         string
	PatientID  string
	OccurredAt time.Time
	Items      []MealLineItem
}

// FoodCorrelationStat is the per-food co-occurrence statistic. Ratios are
// fractions in [0, 1]; Confidence is capped at MaxConfidence.
type FoodCorrelationStat struct {
	Food               string
	TotalOccurrences   int
	SymptomOccurrences int
	CorrelationRatio   float64
	AvgDiscomfort      float64
	Confidence         float64
	RiskLevel          RiskLevel
}

type SymptomFrequency struct {
	Symptom    string `json:"symptom"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type PeakHour struct {
	Hour  int    `json:"hour"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Correlation is the persisted score for one (symptom event, meal) pair.
type Correlation struct {
	ID               string    `json:"id"`
	SymptomEventID   string    `json:"symptomEventId"`
	MealEventID      string    `json:"mealEventId"`
	CorrelationScore float64   `json:"correlationScore"`
	IsFlagged        bool      `json:"isFlagged"`
	HoursBefore      float64   `json:"hoursBefore"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Report is the wire shape of GetCorrelationReport. Ratios and confidence are
// integer percentages here.
type Report struct {
	Summary      ReportSummary      `json:"summary"`
	Correlations []FoodCorrelation  `json:"correlations"`
	TopSymptoms  []SymptomFrequency `json:"topSymptoms"`
	PeakHours    []PeakHour         `json:"peakHours"`
	Insights     []string           `json:"insights"`
}

type ReportSummary struct {
	TotalSymptomLogs int     `json:"totalSymptomLogs"`
	TotalMeals       int     `json:"totalMeals"`
	AvgDiscomfort    float64 `json:"avgDiscomfort"`
	HighRiskFoods    int     `json:"highRiskFoods"`
}

type FoodCorrelation struct {
	Food               string    `json:"food"`
	TotalOccurrences   int       `json:"totalOccurrences"`
	SymptomOccurrences int       `json:"symptomOccurrences"`
	CorrelationRatio   int       `json:"correlationRatio"`
	AvgDiscomfort      float64   `json:"avgDiscomfort"`
	Confidence         int       `json:"confidence"`
	RiskLevel          RiskLevel `json:"riskLevel"`
}

type RunResult struct {
	CorrelationsCreated int `json:"correlationsCreated"`
}
