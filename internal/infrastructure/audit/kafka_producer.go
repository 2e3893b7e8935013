// Package audit publishes audit events to downstream consumers. The Kafka
// producer is the production sink; the log sink covers deployments without a
// broker.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"github.com/wrensec/keygate/internal/config"
	"github.com/wrensec/keygate/internal/domain/models"
	"github.com/wrensec/keygate/internal/domain/service"
	"github.com/wrensec/keygate/pkg/logger"
)

// KafkaProducer is a Kafka-backed implementation of the AuditService.
type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

// NewKafkaProducer creates a producer writing to the configured audit topic.
// Messages are keyed by api key so events for one credential stay ordered
// within a partition.
func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) (service.AuditService, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return &KafkaProducer{
		writer: writer,
		logger: log.WithComponent("kafka-audit"),
	}, nil
}

// LogEvent sends one audit event to the topic. Failures are returned to the
// caller, who decides whether they matter; validation paths log and continue.
func (p *KafkaProducer) LogEvent(ctx context.Context, event *models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal audit event", err)
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.APIKey),
		Value: payload,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to write audit event to kafka", err,
			logger.String("event_type", string(event.EventType)))
	}
	return err
}

// Close flushes and closes the underlying Kafka writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
