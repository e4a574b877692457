package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// ForecastMessage is the payload published for each finished run
type ForecastMessage struct {
	Run    models.ForecastRun     `json:"run"`
	Points []models.ForecastPoint `json:"points"`
}

// Publisher publishes finished forecast runs
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.SugaredLogger
}

// NewPublisher connects a synchronous producer to the brokers
func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	sc := newSaramaConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	sc.Producer.Compression = sarama.CompressionSnappy

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(p, cfg.ForecastTopic), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(p sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{
		producer: p,
		topic:    topic,
		logger:   log.With("component", "kafka-publisher", "topic", topic),
	}
}

// Publish sends one run keyed by its backend so a backend's runs stay ordered
func (p *Publisher) Publish(run models.ForecastRun, points []models.ForecastPoint) error {
	body, err := json.Marshal(ForecastMessage{Run: run, Points: points})
	if err != nil {
		return fmt.Errorf("encode forecast run %s: %w", run.ID, err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(run.Backend),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("run_id"), Value: []byte(run.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish forecast run %s: %w", run.ID, err)
	}
	p.logger.Debugw("forecast run published", "run_id", run.ID, "partition", partition, "offset", offset, "bytes", len(body))
	return nil
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
