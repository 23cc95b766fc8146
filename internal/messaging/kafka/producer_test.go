package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func newMockProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()

	mockProducer := mocks.NewSyncProducer(t, nil)
	return &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}, mockProducer
}

func TestProducer_PublishEvent(t *testing.T) {
	producer, mockProducer := newMockProducer(t)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var decoded map[string]any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded["order_id"] != float64(42) {
			return fmt.Errorf("unexpected payload %s", value)
		}
		return nil
	})

	err := producer.PublishEvent(context.Background(), TopicOrderEvents, "42", map[string]any{"order_id": 42})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	producer, mockProducer := newMockProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(context.Background(), TopicOrderEvents, "42", map[string]any{"order_id": 42})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer, mockProducer := newMockProducer(t)

	if err := producer.PublishEvent(context.Background(), TopicOrderEvents, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_SendCanceledContext(t *testing.T) {
	producer, mockProducer := newMockProducer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := producer.Send(ctx, TopicOrderEvents, "k", []byte("{}"), nil); err == nil {
		t.Fatal("expected context error")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_SendHeaders(t *testing.T) {
	producer, mockProducer := newMockProducer(t)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		for _, header := range msg.Headers {
			if string(header.Key) == HeaderEventType && string(header.Value) == "order.created" {
				return nil
			}
		}
		return fmt.Errorf("event type header is missing")
	})

	if err := producer.Send(context.Background(), TopicOrderEvents, "1", []byte("{}"), map[string]string{HeaderEventType: "order.created"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewProducerInvalidBroker(t *testing.T) {
	if _, err := NewProducer([]string{"127.0.0.1:1"}, "storefront-test"); err == nil {
		t.Fatal("expected error for unreachable broker")
	}
}
