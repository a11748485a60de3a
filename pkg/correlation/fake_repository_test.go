package correlation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/tenant"
)

func init() {
	logger.Silence()
}

// =========== In-memory repository ===========

type pairKey struct {
	symptomEventID string
	mealEventID    string
}

type fakeRepo struct {
	mu           sync.Mutex
	patients     map[string]string // patient id -> tenant id
	symptoms     map[string]map[string]SymptomEvent
	meals        map[string][]MealEvent
	correlations map[pairKey]Correlation
	upserts      int
	failUpsertAt int
	failReads    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:     map[string]string{},
		symptoms:     map[string]map[string]SymptomEvent{},
		meals:        map[string][]MealEvent{},
		correlations: map[pairKey]Correlation{},
	}
}

func (f *fakeRepo) addPatient(tenantID, patientID string) {
	f.patients[patientID] = tenantID
}

func (f *fakeRepo) addSymptom(tenantID string, e SymptomEvent) {
	if f.symptoms[tenantID] == nil {
		f.symptoms[tenantID] = map[string]SymptomEvent{}
	}
	f.symptoms[tenantID][e.ID] = e
}

func (f *fakeRepo) addMeal(tenantID string, m MealEvent) {
	f.meals[tenantID] = append(f.meals[tenantID], m)
}

func (f *fakeRepo) PatientExists(_ context.Context, scope tenant.Scope, patientID string) (bool, error) {
	if f.failReads != nil {
		return false, f.failReads
	}
	return f.patients[patientID] == scope.TenantID, nil
}

func (f *fakeRepo) RecentSymptomEvents(_ context.Context, scope tenant.Scope, patientID string, limit int) ([]SymptomEvent, error) {
	if f.failReads != nil {
		return nil, f.failReads
	}
	var out []SymptomEvent
	for _, e := range f.symptoms[scope.TenantID] {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoggedAt.After(out[j].LoggedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) RecentMeals(_ context.Context, scope tenant.Scope, patientID string, limit int) ([]MealEvent, error) {
	if f.failReads != nil {
		return nil, f.failReads
	}
	var out []MealEvent
	for _, m := range f.meals[scope.TenantID] {
		if m.PatientID == patientID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) GetSymptomEvent(_ context.Context, scope tenant.Scope, id string) (*SymptomEvent, error) {
	e, ok := f.symptoms[scope.TenantID][id]
	if !ok {
		return nil, ErrSymptomEventNotFound
	}
	return &e, nil
}

func (f *fakeRepo) MealsBetween(_ context.Context, scope tenant.Scope, patientID string, from, to time.Time) ([]MealEvent, error) {
	if f.failReads != nil {
		return nil, f.failReads
	}
	var out []MealEvent
	for _, m := range f.meals[scope.TenantID] {
		if m.PatientID == patientID && !m.OccurredAt.Before(from) && !m.OccurredAt.After(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertCorrelation(_ context.Context, _ tenant.Scope, c *Correlation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failUpsertAt > 0 && f.upserts == f.failUpsertAt {
		return errors.New("storage unavailable")
	}
	key := pairKey{c.SymptomEventID, c.MealEventID}
	if existing, ok := f.correlations[key]; ok {
		c.ID = existing.ID
	} else {
		c.ID = uuid.New().String()
	}
	f.correlations[key] = *c
	return nil
}

func (f *fakeRepo) ListCorrelations(_ context.Context, _ tenant.Scope, symptomEventID string) ([]Correlation, error) {
	var out []Correlation
	for key, c := range f.correlations {
		if key.symptomEventID == symptomEventID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CorrelationScore != out[j].CorrelationScore {
			return out[i].CorrelationScore > out[j].CorrelationScore
		}
		return out[i].MealEventID < out[j].MealEventID
	})
	return out, nil
}

// =========== Fixtures ===========

var baseTime = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func newMeal(patientID string, at time.Time, foods ...string) MealEvent {
	items := make([]MealLineItem, 0, len(foods))
	for _, f := range foods {
		items = append(items, MealLineItem{FoodName: f})
	}
	return MealEvent{ID: uuid.New().String(), PatientID: patientID, OccurredAt: at, Items: items}
}

func newSymptom(patientID string, at time.Time, discomfort *int, symptoms ...string) SymptomEvent {
	if len(symptoms) == 0 {
		symptoms = []string{"bloating"}
	}
	return SymptomEvent{
		ID:              uuid.New().String(),
		PatientID:       patientID,
		LoggedAt:        at,
		Symptoms:        symptoms,
		DiscomfortLevel: discomfort,
	}
}

// history builds day-spaced meals. linkedMeal adds a meal at noon followed by
// a symptom three hours later; plainMeal adds a meal with no symptom after it.
type history struct {
	patientID string
	symptoms  []SymptomEvent
	meals     []MealEvent
}

func (h *history) day(d int) time.Time {
	return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func (h *history) linkedMeal(d, discomfort int, foods ...string) {
	at := h.day(d)
	h.meals = append(h.meals, newMeal(h.patientID, at, foods...))
	h.symptoms = append(h.symptoms, newSymptom(h.patientID, at.Add(3*time.Hour), intPtr(discomfort)))
}

func (h *history) plainMeal(d int, foods ...string) {
	h.meals = append(h.meals, newMeal(h.patientID, h.day(d), foods...))
}
