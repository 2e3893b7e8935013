package audit

import (
	"context"

	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/pkg/logger"
)

// LogSink writes audit events to the structured log. It is the sink of last
// resort when Kafka is disabled, keeping the audit trail greppable.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a logger-backed audit sink.
func NewLogSink(log logger.Logger) service.AuditService {
	return &LogSink{logger: log.WithComponent("audit")}
}

// LogEvent records the event as a structured log entry. It never fails.
func (s *LogSink) LogEvent(ctx context.Context, event *models.AuditEvent) error {
	s.logger.Info(ctx, "audit event",
		logger.String("event_id", event.EventID.String()),
		logger.String("event_type", string(event.EventType)),
		logger.String("api_key", logger.MaskKey(event.APIKey)),
		logger.Bool("is_valid", event.IsValid),
		logger.String("reason", event.Reason),
		logger.String("strategy", string(event.Strategy)),
		logger.String("ip_address", event.IPAddress),
	)
	return nil
}

// Close is a no-op; the underlying logger outlives the sink.
func (s *LogSink) Close() error { return nil }
