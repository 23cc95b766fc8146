// Команда dlq-reprocess перечитывает storefront.dlq и возвращает сообщения в исходные topics.
// По умолчанию работает в dry-run и только логирует кандидатов.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	envKafkaBrokers    = "STOREFRONT_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	sourceTopic string
	// targetTopic пустой: outbox-события маршрутизируются по типу агрегата, сообщения consumer'а в исходный topic.
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

type replayMessage struct {
	topic     string
	key       string
	value     []byte
	eventType string
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

type saramaConsumerAdapter struct {
	consumer sarama.Consumer
}

func (a saramaConsumerAdapter) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := a.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (a saramaConsumerAdapter) Close() error {
	if a.consumer == nil {
		return nil
	}
	return a.consumer.Close()
}

// newReplayDependencies подменяется в тестах.
var newReplayDependencies = func(cfg config) (offsetClient, partitionConsumerSource, replayProducer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.ClientID = "storefront-dlq-reprocess"
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	rawConsumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	consumer := saramaConsumerAdapter{consumer: rawConsumer}

	if !cfg.execute {
		return client, consumer, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.ClientID = "storefront-dlq-reprocess"
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return client, consumer, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	if err := newRootCommand().Execute(); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

type rawFlags struct {
	brokers     string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func newRootCommand() *cobra.Command {
	var flags rawFlags
	cmd := &cobra.Command{
		Use:           "dlq-reprocess",
		Short:         "replay dead-lettered storefront events",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(flags, os.LookupEnv)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&flags.brokers, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	cmd.Flags().StringVar(&flags.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	cmd.Flags().StringVar(&flags.targetTopic, "target-topic", "", "force a single target topic (default: route by event origin)")
	cmd.Flags().IntVar(&flags.limit, "limit", defaultReplayLimit, "max number of messages to scan/replay")
	cmd.Flags().BoolVar(&flags.execute, "execute", false, "execute replay; default is dry-run")
	cmd.Flags().BoolVar(&flags.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	cmd.Flags().DurationVar(&flags.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	return cmd
}

func buildConfig(flags rawFlags, lookup func(string) (string, bool)) (config, error) {
	brokersRaw := flags.brokers
	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw, _ = lookup(envKafkaBrokers)
	}

	cfg := config{
		brokers:     parseBrokers(brokersRaw),
		sourceTopic: strings.TrimSpace(flags.sourceTopic),
		targetTopic: strings.TrimSpace(flags.targetTopic),
		limit:       flags.limit,
		execute:     flags.execute,
		fromNewest:  flags.fromNewest,
		idleTimeout: flags.idleTimeout,
	}
	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (--brokers or %s)", envKafkaBrokers)
	case cfg.sourceTopic == "":
		return config{}, errors.New("source-topic is required")
	case cfg.sourceTopic == cfg.targetTopic:
		return config{}, errors.New("target-topic must differ from source-topic")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"source_topic": cfg.sourceTopic,
		"target_topic": cfg.targetTopic,
		"limit":        cfg.limit,
		"execute":      cfg.execute,
		"from_newest":  cfg.fromNewest,
	}).Info("starting dlq replay")

	client, consumer, producer, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		if consumer != nil {
			_ = consumer.Close()
		}
		if client != nil {
			_ = client.Close()
		}
	}()

	return runReplay(ctx, cfg, client, consumer, producer)
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func runReplay(ctx context.Context, cfg config, client offsetClient, consumer partitionConsumerSource, producer replayProducer) error {
	if client == nil || consumer == nil {
		return errors.New("kafka client and consumer are required")
	}
	if cfg.execute && producer == nil {
		return errors.New("producer is required in execute mode")
	}

	partitions, err := client.Partitions(cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		log.WithField("topic", cfg.sourceTopic).Warn("source topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total replayStats
	for _, partition := range partitions {
		if total.processed >= cfg.limit {
			break
		}
		stats, err := processPartition(ctx, consumer, client, producer, cfg, partition, cfg.limit-total.processed)
		total.add(stats)
		if err != nil {
			return err
		}
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":      mode,
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
	}).Info("dlq replay finished")
	return nil
}

// offsetWindow возвращает диапазон [start, end) для чтения партиции.
func offsetWindow(client offsetClient, cfg config, partition int32, limit int) (start, end int64, err error) {
	oldest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := client.GetOffset(cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}

	start = oldest
	if cfg.fromNewest {
		start = max(newest-int64(limit), oldest)
	}
	return start, newest, nil
}

func processPartition(
	ctx context.Context,
	consumer partitionConsumerSource,
	client offsetClient,
	producer replayProducer,
	cfg config,
	partition int32,
	limit int,
) (replayStats, error) {
	var stats replayStats
	if limit <= 0 {
		return stats, nil
	}

	start, end, err := offsetWindow(client, cfg, partition, limit)
	if err != nil {
		return stats, err
	}
	if end <= start {
		return stats, nil
	}

	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return stats, nil
			}
			idle.Reset(cfg.idleTimeout)

			stats.processed++
			if err := handleMessage(producer, cfg, msg, &stats); err != nil {
				return stats, err
			}
			if msg.Offset+1 >= end {
				return stats, nil
			}
		}
	}
	return stats, nil
}

func handleMessage(producer replayProducer, cfg config, msg *sarama.ConsumerMessage, stats *replayStats) error {
	logger := log.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	replay, ok, err := extractReplayMessage(msg, cfg.targetTopic)
	if err != nil {
		stats.skipped++
		logger.WithError(err).Warn("skip unsupported dlq message")
		return nil
	}
	if !ok {
		stats.skipped++
		return nil
	}

	if cfg.execute {
		if err := publishReplay(producer, replay); err != nil {
			return fmt.Errorf("publish replay message: %w", err)
		}
	} else {
		logger.WithFields(log.Fields{
			"target_topic": replay.topic,
			"key":          replay.key,
			"event_type":   replay.eventType,
		}).Info("dlq replay candidate")
	}
	stats.replayed++
	return nil
}

func publishReplay(producer replayProducer, msg replayMessage) error {
	if producer == nil {
		return errors.New("producer is nil")
	}

	producerMessage := &sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Timestamp: time.Now().UTC(),
	}
	if msg.eventType != "" {
		producerMessage.Headers = []sarama.RecordHeader{{Key: []byte(kafka.HeaderEventType), Value: []byte(msg.eventType)}}
	}

	_, _, err := producer.SendMessage(producerMessage)
	return err
}

// extractReplayMessage распознаёт оба формата DLQ: kafka.ConsumerDeadLetter
// и kafka.Envelope с kafka.OutboxDeadLetter в payload. Остальное пропускается.
func extractReplayMessage(msg *sarama.ConsumerMessage, targetTopic string) (replayMessage, bool, error) {
	var consumerLetter kafka.ConsumerDeadLetter
	if err := json.Unmarshal(msg.Value, &consumerLetter); err == nil && consumerLetter.OriginalValue != "" {
		topic := firstNonEmpty(targetTopic, consumerLetter.OriginalTopic, kafka.TopicOrderEvents)
		return replayMessage{
			topic: topic,
			key:   consumerLetter.OriginalKey,
			value: []byte(consumerLetter.OriginalValue),
		}, true, nil
	}

	var envelope kafka.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return replayMessage{}, false, nil
	}

	var outboxLetter kafka.OutboxDeadLetter
	if err := json.Unmarshal(envelope.Payload, &outboxLetter); err != nil {
		return replayMessage{}, false, fmt.Errorf("decode outbox dead letter: %w", err)
	}
	if len(outboxLetter.Payload) == 0 {
		return replayMessage{}, false, errors.New("outbox dead letter does not contain original event payload")
	}

	replay := kafka.Envelope{
		ID:            firstNonEmpty(outboxLetter.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(outboxLetter.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(outboxLetter.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(outboxLetter.EventType, envelope.EventType),
		Payload:       outboxLetter.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return replayMessage{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}

	return replayMessage{
		topic:     firstNonEmpty(targetTopic, kafka.TopicFor(replay.AggregateType)),
		key:       replay.Key(),
		value:     encoded,
		eventType: replay.EventType,
	}, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
