package models

import (
	"fmt"
	"time"
)

// Event types carried on the symptom and correlation topics.
const (
	EventSymptomLogged     = "symptom.logged"
	EventSymptomCorrelated = "symptom.correlated"
	EventSymptomRejected   = "symptom.rejected"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// StringField returns a non-empty string value from the event payload.
func (e Event) StringField(key string) (string, error) {
	raw, ok := e.Data[key]
	if !ok {
		return "", fmt.Errorf("event %s: missing %q", e.ID, key)
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", fmt.Errorf("event %s: %q must be a non-empty string", e.ID, key)
	}
	return value, nil
}

// SymptomLogged is published by the symptom logging feature after a new entry is stored.
type SymptomLogged struct {
	TenantID       string `json:"tenant_id"`
	SymptomEventID string `json:"symptom_event_id"`
	PatientID      string `json:"patient_id,omitempty"`
}

func (s SymptomLogged) ToData() map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":        s.TenantID,
		"symptom_event_id": s.SymptomEventID,
		"patient_id":       s.PatientID,
	}
}

// SymptomCorrelated is published after the event correlator finished a symptom event.
type SymptomCorrelated struct {
	TenantID            string    `json:"tenant_id"`
	SymptomEventID      string    `json:"symptom_event_id"`
	PatientID           string    `json:"patient_id"`
	CorrelationsCreated int       `json:"correlations_created"`
	Flagged             bool      `json:"flagged"`
	CorrelatedAt        time.Time `json:"correlated_at"`
}

func (s SymptomCorrelated) ToData() map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":            s.TenantID,
		"symptom_event_id":     s.SymptomEventID,
		"patient_id":           s.PatientID,
		"correlations_created": s.CorrelationsCreated,
		"flagged":              s.Flagged,
		"correlated_at":        s.CorrelatedAt.Format(time.RFC3339),
	}
}
