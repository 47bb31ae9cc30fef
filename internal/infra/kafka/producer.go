package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
)

// Producer wraps a Sarama async producer. Audit events are fire-and-forget,
// so delivery failures are drained into the log rather than surfaced to the
// request path.
type Producer struct {
	producer    sarama.AsyncProducer
	logger      *zap.Logger
	topicPrefix string
}

// NewProducer initializes the Kafka async producer and starts the error
// drain goroutine.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0

	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer:    producer,
		logger:      logger,
		topicPrefix: cfg.TopicPrefix,
	}

	go p.drainErrors()

	logger.Info("Kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return p, nil
}

// drainErrors logs delivery failures until Close shuts the channel.
func (p *Producer) drainErrors() {
	for err := range p.producer.Errors() {
		p.logger.Error("Kafka producer error",
			zap.Error(err.Err),
			zap.String("topic", err.Msg.Topic),
			zap.Int32("partition", err.Msg.Partition),
			zap.Int64("offset", err.Msg.Offset),
		)
	}
}

// Producer returns the underlying Sarama AsyncProducer.
func (p *Producer) Producer() sarama.AsyncProducer {
	return p.producer
}

// Close flushes pending messages and closes the producer. Sarama closes the
// error channel afterwards, which stops the drain goroutine.
func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka producer")
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// TopicName returns the full topic name with the configured prefix.
func (p *Producer) TopicName(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}

	prefix := p.topicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}

	return prefix + eventType
}
