// Package events publishes committed audit entries to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medcycle/config"
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// consecutiveFailures trips the breaker.
const consecutiveFailures = 5

var ErrExporterUnavailable = errors.New("audit exporter unavailable")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditExporter writes audit entries to a topic keyed by resource id, so all
// entries for one record land on the same partition in order. Writes go
// through a circuit breaker: while the broker is down batches fail fast
// instead of stalling the export worker.
type AuditExporter struct {
	writer       messageWriter
	breaker      *gobreaker.CircuitBreaker[struct{}]
	writeTimeout time.Duration
	log          *zap.Logger
}

func NewAuditExporter(cfg config.KafkaConfig, log *zap.Logger) *AuditExporter {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newAuditExporter(w, cfg, log)
}

func newAuditExporter(w messageWriter, cfg config.KafkaConfig, log *zap.Logger) *AuditExporter {
	log = log.Named("audit-export")
	return &AuditExporter{
		writer:       w,
		writeTimeout: cfg.WriteTimeout,
		log:          log,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "kafka-audit",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= consecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

func (e *AuditExporter) Export(ctx context.Context, entries []*domain.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(entries))
	for _, entry := range entries {
		msg, err := encode(entry)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	_, err := e.breaker.Execute(func() (struct{}, error) {
		if e.writeTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.writeTimeout)
			defer cancel()
		}
		return struct{}{}, e.writer.WriteMessages(ctx, msgs...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrExporterUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("writing %d audit entries: %w", len(msgs), err)
	}
	return nil
}

func (e *AuditExporter) Close() error {
	return e.writer.Close()
}

func encode(entry *domain.AuditLog) (kafka.Message, error) {
	value, err := json.Marshal(entry)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding audit entry %s: %w", entry.ID, err)
	}

	key := string(entry.ResourceType)
	if entry.ResourceID != nil {
		key += ":" + entry.ResourceID.String()
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.Action)},
			{Key: "status", Value: []byte(entry.Status)},
		},
	}, nil
}
