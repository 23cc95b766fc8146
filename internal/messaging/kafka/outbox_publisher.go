package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в Kafka.
type OutboxTopicPublisher struct {
	producer *Producer
	// topic фиксирует topic; пустое значение включает маршрутизацию по типу агрегата.
	topic string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// Publish отправляет событие в Envelope с ключом агрегата.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	topic := p.topic
	if topic == "" {
		topic = TopicFor(event.AggregateType)
	}

	envelope := NewEnvelope(event)
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}

	return p.producer.Send(ctx, topic, envelope.Key(), encoded, map[string]string{
		HeaderEventType: event.EventType,
	})
}

// LogPublisher пишет события в лог. Используется, когда Kafka не настроена.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт publisher, который только логирует события.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

// Publish логирует событие.
func (p *LogPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.WithFields(log.Fields{
		"outbox_id":      event.ID,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"event_type":     event.EventType,
	}).Info("outbox event")
	return nil
}

var (
	_ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
	_ domain.OutboxPublisher = (*LogPublisher)(nil)
)
