package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the storage boundary of the engine. Every call is confined to
// the given tenant scope.
type Repository interface {
	PatientExists(ctx context.Context, scope tenant.Scope, patientID string) (bool, error)
	RecentSymptomEvents(ctx context.Context, scope tenant.Scope, patientID string, limit int) ([]SymptomEvent, error)
	RecentMeals(ctx context.Context, scope tenant.Scope, patientID string, limit int) ([]MealEvent, error)
	GetSymptomEvent(ctx context.Context, scope tenant.Scope, id string) (*SymptomEvent, error)
	MealsBetween(ctx context.Context, scope tenant.Scope, patientID string, from, to time.Time) ([]MealEvent, error)
	UpsertCorrelation(ctx context.Context, scope tenant.Scope, c *Correlation) error
	ListCorrelations(ctx context.Context, scope tenant.Scope, symptomEventID string) ([]Correlation, error)
}

type GormRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db, now: time.Now}
}

// AutoMigrate creates the correlation table and its composite unique index.
func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&correlationRow{})
}

// AutoMigrateReadModels creates the tables owned by the logging features. Only
// used for local development and the CLI seed path.
func (r *GormRepository) AutoMigrateReadModels() error {
	return r.db.AutoMigrate(&patientRow{}, &symptomLogRow{}, &mealRow{}, &mealItemRow{}, &foodRow{})
}

func (r *GormRepository) PatientExists(ctx context.Context, scope tenant.Scope, patientID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&patientRow{}).
		Where("tenant_id = ? AND id = ?", scope.TenantID, patientID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormRepository) RecentSymptomEvents(ctx context.Context, scope tenant.Scope, patientID string, limit int) ([]SymptomEvent, error) {
	var rows []symptomLogRow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND patient_id = ?", scope.TenantID, patientID).
		Order("logged_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]SymptomEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toDomain())
	}
	return events, nil
}

func (r *GormRepository) GetSymptomEvent(ctx context.Context, scope tenant.Scope, id string) (*SymptomEvent, error) {
	var row symptomLogRow
	result := r.db.WithContext(ctx).First(&row, "tenant_id = ? AND id = ?", scope.TenantID, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrSymptomEventNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	event := row.toDomain()
	return &event, nil
}

func (r *GormRepository) RecentMeals(ctx context.Context, scope tenant.Scope, patientID string, limit int) ([]MealEvent, error) {
	var rows []mealRow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND patient_id = ?", scope.TenantID, patientID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

func (r *GormRepository) MealsBetween(ctx context.Context, scope tenant.Scope, patientID string, from, to time.Time) ([]MealEvent, error) {
	var rows []mealRow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND patient_id = ?", scope.TenantID, patientID).
		Where("occurred_at BETWEEN ? AND ?", from, to).
		Order("occurred_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.withItems(ctx, rows)
}

// withItems resolves the line items of meals to food names. Items whose food
// reference is missing or dangling resolve to UnknownFood.
func (r *GormRepository) withItems(ctx context.Context, rows []mealRow) ([]MealEvent, error) {
	if len(rows) == 0 {
		return []MealEvent{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var items []struct {
		MealID   string
		FoodName *string
	}
	err := r.db.WithContext(ctx).
		Table("meal_items AS mi").
		Select("mi.meal_id AS meal_id, f.name AS food_name").
		Joins("LEFT JOIN foods AS f ON f.id = mi.food_id").
		Where("mi.meal_id IN ?", ids).
		Order("mi.meal_id, mi.position").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("resolving meal items: %w", err)
	}

	byMeal := make(map[string][]MealLineItem, len(rows))
	unresolved := 0
	for _, item := range items {
		name := UnknownFood
		if item.FoodName != nil && *item.FoodName != "" {
			name = *item.FoodName
		} else {
			unresolved++
		}
		byMeal[item.MealID] = append(byMeal[item.MealID], MealLineItem{FoodName: name})
	}
	if unresolved > 0 {
		logger.Log.WithField("unresolved_items", unresolved).Debug("meal items without a resolvable food")
	}

	meals := make([]MealEvent, 0, len(rows))
	for _, row := range rows {
		meals = append(meals, MealEvent{
			ID:         row.ID,
			PatientID:  row.PatientID,
			OccurredAt: row.OccurredAt,
			Items:      byMeal[row.ID],
		})
	}
	return meals, nil
}

// upsertOnPair turns an insert into an update of the score columns when the
// (symptom_event_id, meal_event_id) pair already exists.
func upsertOnPair() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "symptom_event_id"}, {Name: "meal_event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"correlation_score", "is_flagged", "hours_before", "updated_at",
		}),
	}
}

// UpsertCorrelation is a single INSERT ... ON CONFLICT statement, so concurrent
// runs for the same symptom event converge on one row per pair.
func (r *GormRepository) UpsertCorrelation(ctx context.Context, scope tenant.Scope, c *Correlation) error {
	now := r.now().UTC()
	row := correlationRow{
		ID:               uuid.New().String(),
		TenantID:         scope.TenantID,
		SymptomEventID:   c.SymptomEventID,
		MealEventID:      c.MealEventID,
		CorrelationScore: c.CorrelationScore,
		IsFlagged:        c.IsFlagged,
		HoursBefore:      c.HoursBefore,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := r.db.WithContext(ctx).
		Clauses(upsertOnPair(), clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Create(&row).Error
	if err != nil {
		return err
	}
	c.ID = row.ID
	c.UpdatedAt = now
	return nil
}

func (r *GormRepository) ListCorrelations(ctx context.Context, scope tenant.Scope, symptomEventID string) ([]Correlation, error) {
	var rows []correlationRow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND symptom_event_id = ?", scope.TenantID, symptomEventID).
		Order("correlation_score DESC, meal_event_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Correlation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r symptomLogRow) toDomain() SymptomEvent {
	event := SymptomEvent{
		ID:              r.ID,
		PatientID:       r.PatientID,
		LoggedAt:        r.LoggedAt,
		DiscomfortLevel: r.DiscomfortLevel,
		Notes:           r.Notes,
	}
	if len(r.Symptoms) > 0 {
		if err := json.Unmarshal(r.Symptoms, &event.Symptoms); err != nil {
			logger.Log.WithError(err).WithField("symptom_event_id", r.ID).Warn("unreadable symptom list")
		}
	}
	return event
}
