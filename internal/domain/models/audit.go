package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wrensec/keygate/pkg/constants"
)

// AuditEvent is a single audit trail event. Validation outcomes and key
// lifecycle changes are both recorded through this shape; a downstream
// consumer decides what to persist.
type AuditEvent struct {
	EventID   uuid.UUID                `json:"event_id"`
	EventType constants.AuditEventType `json:"event_type"`
	APIKey    string                   `json:"api_key"`
	IsValid   bool                     `json:"is_valid"`
	Reason    string                   `json:"reason,omitempty"`
	Strategy  constants.AuthStrategy   `json:"strategy,omitempty"`
	IPAddress string                   `json:"ip_address,omitempty"`
	UserAgent string                   `json:"user_agent,omitempty"`
	TraceID   string                   `json:"trace_id,omitempty"`
	Metadata  json.RawMessage          `json:"metadata,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// NewAuditEvent creates an audit event with a fresh id and timestamp.
func NewAuditEvent(eventType constants.AuditEventType, apiKey string) *AuditEvent {
	return &AuditEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		APIKey:    apiKey,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationEvent builds the per-request audit event from a validation
// outcome.
func NewValidationEvent(outcome ValidationOutcome) *AuditEvent {
	e := NewAuditEvent(constants.AuditEventKeyValidated, outcome.APIKey)
	e.IsValid = outcome.IsValid
	e.Reason = string(outcome.Reason)
	e.Strategy = outcome.Strategy
	return e
}

// WithContextInfo sets request-scoped context information.
func (e *AuditEvent) WithContextInfo(ip, ua, traceID string) *AuditEvent {
	e.IPAddress = ip
	e.UserAgent = ua
	e.TraceID = traceID
	return e
}

// WithMetadata attaches event-specific JSON metadata.
func (e *AuditEvent) WithMetadata(data interface{}) *AuditEvent {
	raw, err := json.Marshal(data)
	if err == nil {
		e.Metadata = raw
	}
	return e
}
