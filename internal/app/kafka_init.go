package app

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cache"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const cacheInvalidatorMaxRetries = 3

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой и nil, err если брокеры недоступны.
func initKafkaProducer(brokers, clientID string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := Config{KafkaBrokers: brokers}.brokerList()
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList, clientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", strings.Join(brokerList, ",")).Info("kafka producer initialized")
	return producer, nil
}

// outboxPublishers основной publisher для outbox worker и publisher для DLQ.
type outboxPublishers struct {
	main    domain.OutboxPublisher
	dlq     domain.OutboxPublisher
	breaker *kafka.BreakerPublisher
}

// buildOutboxPublishers собирает publishers поверх producer.
// Без producer события только логируются, а DLQ не используется.
func buildOutboxPublishers(producer *kafka.Producer, logger *log.Entry) outboxPublishers {
	if producer == nil {
		return outboxPublishers{main: kafka.NewLogPublisher(logger.WithField("publisher", "log"))}
	}

	breaker := kafka.NewBreakerPublisher(kafka.NewOutboxPublisher(producer, ""), kafka.BreakerSettings{
		Name:             "outbox-kafka",
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
	})
	return outboxPublishers{
		main:    breaker,
		dlq:     kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
		breaker: breaker,
	}
}

// startCacheInvalidator подписывает реплику на события каталога, чтобы сбрасывать общий кеш.
// Возвращает nil, если Kafka не настроена или consumer не создан.
func startCacheInvalidator(ctx context.Context, cfg Config, productCache cache.ProductCache, dlq *kafka.Producer, logger *log.Entry) *kafka.Consumer {
	brokers := cfg.brokerList()
	if len(brokers) == 0 || dlq == nil {
		return nil
	}
	if _, noop := productCache.(cache.Noop); noop {
		return nil
	}

	consumer, err := kafka.NewConsumer(
		brokers,
		cfg.KafkaCatalogGroup,
		[]string{kafka.TopicCatalogEvents},
		kafka.NewCacheInvalidationHandler(productCache, logger.WithField("component", "cache-invalidator")),
		dlq,
		cacheInvalidatorMaxRetries,
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create catalog consumer, cache invalidation relies on local deletes")
		return nil
	}
	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Warn("failed to start catalog consumer")
		_ = consumer.Stop()
		return nil
	}
	return consumer
}

// stopConsumer останавливает consumer если он не nil.
func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
