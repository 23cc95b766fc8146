package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicCatalogEvents   = "storefront.catalog.events"
	TopicDeadLetterQueue = "storefront.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
)

// TopicFor выбирает topic по типу агрегата outbox-сообщения.
func TopicFor(aggregateType string) string {
	if aggregateType == domain.AggregateProduct {
		return TopicCatalogEvents
	}
	return TopicOrderEvents
}

// Envelope — формат события в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage) Envelope {
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   time.Now().UTC(),
	}
}

// Key возвращает ключ партиционирования: события одного агрегата попадают в одну партицию.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// ParseEnvelope парсит Envelope из сообщения
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return envelope, nil
}

// ConsumerDeadLetter — сообщение, которое consumer не смог обработать.
type ConsumerDeadLetter struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

// OutboxDeadLetter — outbox-сообщение, которое не удалось опубликовать после всех попыток.
type OutboxDeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal %T: %v", v, err))
	}
	return data
}
