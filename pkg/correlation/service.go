package correlation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/models"
	"github.com/nourish-clinic/platform/pkg/common/tenant"
	"github.com/nourish-clinic/platform/pkg/observability/metrics"
)

const eventSource = "correlation-service"

// Publisher announces finished correlation runs. *kafka.Producer satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, partitionKey string, event models.Event) error
}

type EventFactory func(eventType, source string, data map[string]interface{}) models.Event

type Option func(*Service)

func WithPublisher(p Publisher, newEvent EventFactory) Option {
	return func(s *Service) {
		s.publisher = p
		s.newEvent = newEvent
	}
}

type Service struct {
	repo       Repository
	aggregator *Aggregator
	publisher  Publisher
	newEvent   EventFactory
}

func NewService(repo Repository, aggregator *Aggregator, opts ...Option) *Service {
	svc := &Service{repo: repo, aggregator: aggregator}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// GetCorrelationReport analyses the most recent symptom and meal history of a
// patient. It reads only.
func (s *Service) GetCorrelationReport(ctx context.Context, scope tenant.Scope, patientID string) (*Report, error) {
	if err := validateRequest(scope, "patient", patientID); err != nil {
		return nil, err
	}

	if err := s.ensurePatient(ctx, scope, patientID); err != nil {
		return nil, err
	}

	symptoms, err := s.repo.RecentSymptomEvents(ctx, scope, patientID, ReportSymptomLimit)
	if err != nil {
		return nil, fmt.Errorf("loading symptom events: %w", err)
	}
	meals, err := s.repo.RecentMeals(ctx, scope, patientID, ReportMealLimit)
	if err != nil {
		return nil, fmt.Errorf("loading meals: %w", err)
	}

	report := s.aggregator.Analyze(symptoms, meals).Report()
	metrics.ObserveReport()

	logger.Log.WithFields(map[string]interface{}{
		"tenant_id":    scope.TenantID,
		"patient_id":   patientID,
		"symptom_logs": report.Summary.TotalSymptomLogs,
		"meals":        report.Summary.TotalMeals,
		"correlations": len(report.Correlations),
	}).Debug("correlation report generated")

	return &report, nil
}

// RunCorrelation scores every meal in the look-back window of a symptom event
// and upserts one row per (symptom event, meal) pair. On a persistence failure
// the result still carries the number of rows actually written.
func (s *Service) RunCorrelation(ctx context.Context, scope tenant.Scope, symptomEventID string) (RunResult, error) {
	if err := validateRequest(scope, "symptom event", symptomEventID); err != nil {
		return RunResult{}, err
	}

	event, err := s.repo.GetSymptomEvent(ctx, scope, symptomEventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.ObserveNotFound()
		}
		return RunResult{}, err
	}

	from, to := lookback(event.LoggedAt)
	meals, err := s.repo.MealsBetween(ctx, scope, event.PatientID, from, to)
	if err != nil {
		return RunResult{}, fmt.Errorf("loading candidate meals: %w", err)
	}

	planned := planCorrelations(*event, meals)
	var result RunResult
	flagged := 0
	for i := range planned {
		if err := s.repo.UpsertCorrelation(ctx, scope, &planned[i]); err != nil {
			metrics.ObserveCorrelationRun(result.CorrelationsCreated, flagged, true)
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"tenant_id":        scope.TenantID,
				"symptom_event_id": symptomEventID,
				"meal_event_id":    planned[i].MealEventID,
				"written":          result.CorrelationsCreated,
			}).Error("failed to upsert correlation")
			return result, fmt.Errorf("upserting correlation for meal %s: %w", planned[i].MealEventID, err)
		}
		result.CorrelationsCreated++
		if planned[i].IsFlagged {
			flagged++
		}
	}
	metrics.ObserveCorrelationRun(result.CorrelationsCreated, flagged, false)

	s.announce(ctx, scope, event, result, flagged > 0)
	return result, nil
}

// ListCorrelations returns the stored rows of a symptom event, strongest first.
func (s *Service) ListCorrelations(ctx context.Context, scope tenant.Scope, symptomEventID string) ([]Correlation, error) {
	if err := validateRequest(scope, "symptom event", symptomEventID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetSymptomEvent(ctx, scope, symptomEventID); err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.ObserveNotFound()
		}
		return nil, err
	}
	return s.repo.ListCorrelations(ctx, scope, symptomEventID)
}

type BackfillResult struct {
	SymptomEvents       int `json:"symptomEvents"`
	CorrelationsCreated int `json:"correlationsCreated"`
}

// Backfill re-runs the correlator for the patient's recent symptom events. It
// stops at the first failure and reports what was written until then.
func (s *Service) Backfill(ctx context.Context, scope tenant.Scope, patientID string) (BackfillResult, error) {
	if err := validateRequest(scope, "patient", patientID); err != nil {
		return BackfillResult{}, err
	}
	if err := s.ensurePatient(ctx, scope, patientID); err != nil {
		return BackfillResult{}, err
	}

	events, err := s.repo.RecentSymptomEvents(ctx, scope, patientID, ReportSymptomLimit)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("loading symptom events: %w", err)
	}

	var out BackfillResult
	for _, event := range events {
		res, err := s.RunCorrelation(ctx, scope, event.ID)
		out.CorrelationsCreated += res.CorrelationsCreated
		if err != nil {
			return out, err
		}
		out.SymptomEvents++
	}
	return out, nil
}

func (s *Service) ensurePatient(ctx context.Context, scope tenant.Scope, patientID string) error {
	exists, err := s.repo.PatientExists(ctx, scope, patientID)
	if err != nil {
		return fmt.Errorf("looking up patient: %w", err)
	}
	if !exists {
		metrics.ObserveNotFound()
		return ErrPatientNotFound
	}
	return nil
}

func (s *Service) announce(ctx context.Context, scope tenant.Scope, event *SymptomEvent, result RunResult, flagged bool) {
	if s.publisher == nil || s.newEvent == nil {
		return
	}
	payload := models.SymptomCorrelated{
		TenantID:            scope.TenantID,
		SymptomEventID:      event.ID,
		PatientID:           event.PatientID,
		CorrelationsCreated: result.CorrelationsCreated,
		Flagged:             flagged,
	}
	msg := s.newEvent(models.EventSymptomCorrelated, eventSource, nil)
	payload.CorrelatedAt = msg.Timestamp
	msg.Data = payload.ToData()

	if err := s.publisher.PublishEvent(ctx, scope.TenantID+":"+event.ID, msg); err != nil {
		logger.Log.WithError(err).WithField("symptom_event_id", event.ID).Warn("failed to announce correlation run")
	}
}

func validateRequest(scope tenant.Scope, kind, id string) error {
	if err := scope.Validate(); err != nil {
		return ValidationError{reason: err}
	}
	if id == "" {
		return invalid("%s id required", kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return invalid("%s id %q is not a valid uuid", kind, id)
	}
	return nil
}
