package correlation

import (
	"context"
	"errors"
	"fmt"

	"github.com/nourish-clinic/platform/pkg/common/kafka"
	"github.com/nourish-clinic/platform/pkg/common/logger"
	"github.com/nourish-clinic/platform/pkg/common/models"
	"github.com/nourish-clinic/platform/pkg/common/tenant"
	"github.com/nourish-clinic/platform/pkg/observability/metrics"
)

// Claimer guards against two workers processing the same trigger event.
// *idempotency.Store satisfies it.
type Claimer interface {
	Claim(ctx context.Context, id string) (bool, error)
	Complete(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

// TriggerHandler runs the event correlator for symptom.logged events.
type TriggerHandler struct {
	service *Service
	claims  Claimer
}

func NewTriggerHandler(service *Service, claims Claimer) *TriggerHandler {
	return &TriggerHandler{service: service, claims: claims}
}

// Handle satisfies kafka.EventHandler. A nil return commits the message.
func (h *TriggerHandler) Handle(ctx context.Context, event models.Event) error {
	if event.Type != models.EventSymptomLogged {
		return nil
	}

	tenantID, err := event.StringField("tenant_id")
	if err != nil {
		return fmt.Errorf("%w: %v", kafka.ErrPoison, err)
	}
	symptomEventID, err := event.StringField("symptom_event_id")
	if err != nil {
		return fmt.Errorf("%w: %v", kafka.ErrPoison, err)
	}
	scope := tenant.Scope{TenantID: tenantID}

	log := logger.Log.WithFields(map[string]interface{}{
		"event_id":         event.ID,
		"tenant_id":        tenantID,
		"symptom_event_id": symptomEventID,
	})

	if h.claims != nil {
		claimed, err := h.claims.Claim(ctx, event.ID)
		if err != nil {
			return err
		}
		if !claimed {
			metrics.ObserveSkippedTrigger()
			log.Debug("trigger event already handled")
			return nil
		}
	}

	result, err := h.service.RunCorrelation(ctx, scope, symptomEventID)
	switch {
	case err == nil:
		log.WithField("correlations_created", result.CorrelationsCreated).Info("symptom event correlated")
		h.complete(ctx, event.ID)
		return nil
	case IsValidationError(err):
		h.complete(ctx, event.ID)
		return fmt.Errorf("%w: %v", kafka.ErrPoison, err)
	case errors.Is(err, ErrNotFound):
		log.Warn("symptom event vanished before correlation")
		h.complete(ctx, event.ID)
		return nil
	default:
		if h.claims != nil {
			if relErr := h.claims.Release(ctx, event.ID); relErr != nil {
				log.WithError(relErr).Warn("failed to release trigger claim")
			}
		}
		return err
	}
}

func (h *TriggerHandler) complete(ctx context.Context, id string) {
	if h.claims == nil {
		return
	}
	if err := h.claims.Complete(ctx, id); err != nil {
		logger.Log.WithError(err).WithField("event_id", id).Warn("failed to mark trigger event complete")
	}
}
