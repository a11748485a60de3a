package correlation

import (
	"time"

	"gorm.io/datatypes"
)

// Read models. patients, symptom_logs, meals, meal_items and foods are written
// by the logging features; this package only owns symptom_meal_correlations.

type patientRow struct {
	ID       string `gorm:"primaryKey;column:id;type:uuid"`
	TenantID string `gorm:"column:tenant_id;index"`
}

func (patientRow) TableName() string { return "patients" }

type symptomLogRow struct {
	ID              string         `gorm:"primaryKey;column:id;type:uuid"`
	TenantID        string         `gorm:"column:tenant_id;index:idx_symptom_logs_patient,priority:1"`
	PatientID       string         `gorm:"column:patient_id;type:uuid;index:idx_symptom_logs_patient,priority:2"`
	LoggedAt        time.Time      `gorm:"column:logged_at;index:idx_symptom_logs_patient,priority:3"`
	Symptoms        datatypes.JSON `gorm:"column:symptoms"`
	DiscomfortLevel *int           `gorm:"column:discomfort_level"`
	Notes           string         `gorm:"column:notes"`
}

func (symptomLogRow) TableName() string { return "symptom_logs" }

type mealRow struct {
	ID         string    `gorm:"primaryKey;column:id;type:uuid"`
	TenantID   string    `gorm:"column:tenant_id;index:idx_meals_patient,priority:1"`
	PatientID  string    `gorm:"column:patient_id;type:uuid;index:idx_meals_patient,priority:2"`
	OccurredAt time.Time `gorm:"column:occurred_at;index:idx_meals_patient,priority:3"`
}

func (mealRow) TableName() string { return "meals" }

type mealItemRow struct {
	ID       string  `gorm:"primaryKey;column:id;type:uuid"`
	MealID   string  `gorm:"column:meal_id;type:uuid;index"`
	FoodID   *string `gorm:"column:food_id;type:uuid"`
	Position int     `gorm:"column:position"`
}

func (mealItemRow) TableName() string { return "meal_items" }

type foodRow struct {
	ID   string `gorm:"primaryKey;column:id;type:uuid"`
	Name string `gorm:"column:name"`
}

func (foodRow) TableName() string { return "foods" }

type correlationRow struct {
	ID               string    `gorm:"primaryKey;column:id;type:uuid"`
	TenantID         string    `gorm:"column:tenant_id;index"`
	SymptomEventID   string    `gorm:"column:symptom_event_id;type:uuid;uniqueIndex:idx_symptom_meal_pair,priority:1"`
	MealEventID      string    `gorm:"column:meal_event_id;type:uuid;uniqueIndex:idx_symptom_meal_pair,priority:2"`
	CorrelationScore float64   `gorm:"column:correlation_score"`
	IsFlagged        bool      `gorm:"column:is_flagged"`
	HoursBefore      float64   `gorm:"column:hours_before"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (correlationRow) TableName() string { return "symptom_meal_correlations" }

func (r correlationRow) toDomain() Correlation {
	return Correlation{
		ID:               r.ID,
		SymptomEventID:   r.SymptomEventID,
		MealEventID:      r.MealEventID,
		CorrelationScore: r.CorrelationScore,
		IsFlagged:        r.IsFlagged,
		HoursBefore:      r.HoursBefore,
		UpdatedAt:        r.UpdatedAt,
	}
}
