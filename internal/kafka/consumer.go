package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/reference"
)

const clientID = "smart-grid-load-forecast"

func newSaramaConfig() *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = clientID
	sc.Version = sarama.V2_8_0_0
	return sc
}

// MessageProcessor is a function that processes batches of metered load readings
type MessageProcessor func([]models.MeterReading) error

// Consumer represents a Kafka consumer
type Consumer struct {
	id         string
	config     config.KafkaConfig
	consumer   sarama.ConsumerGroup
	processor  MessageProcessor
	msgBuffer  []models.MeterReading
	bufferLock sync.Mutex
	lastFlush  time.Time
	inflight   sync.WaitGroup
	logger     *zap.SugaredLogger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(id string, config config.KafkaConfig, processor MessageProcessor) (*Consumer, error) {
	sc := newSaramaConfig()
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin

	// Metered load arrives hourly per load area; small fetches are plenty
	sc.Consumer.Fetch.Min = 1
	sc.Consumer.Fetch.Default = 256 * 1024
	sc.Consumer.MaxWaitTime = 500 * time.Millisecond

	client, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group %s: %w", config.GroupID, err)
	}

	return &Consumer{
		id:        id,
		config:    config,
		consumer:  client,
		processor: processor,
		msgBuffer: make([]models.MeterReading, 0, config.BatchSize),
		lastFlush: time.Now(),
		logger:    log.With("component", "kafka-consumer", "consumer", id, "topic", config.Topic),
	}, nil
}

// Consume starts consuming messages from Kafka
func (c *Consumer) Consume(ctx context.Context) error {
	// Setup error handling
	errorChan := make(chan error, 1)
	go func() {
		for err := range c.consumer.Errors() {
			c.logger.Errorw("consumer group error", "error", err)
			select {
			case errorChan <- err:
			default:
			}
		}
	}()

	// Setup message handling
	handler := &consumerGroupHandler{
		consumer: c,
		ctx:      ctx,
	}

	// Setup periodic flushing
	flushTicker := time.NewTicker(c.config.BatchTimeout)
	defer flushTicker.Stop()

	stop := make(chan struct{})
	var ticking sync.WaitGroup
	ticking.Add(1)
	go func() {
		defer ticking.Done()
		for {
			select {
			case <-flushTicker.C:
				c.flushBuffer()
			case <-stop:
				return
			}
		}
	}()

	// Hand over the last batch and wait for every flush before returning
	defer func() {
		close(stop)
		ticking.Wait()
		c.drain()
	}()

	// Consume
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errorChan:
			return err
		default:
			if err := c.consumer.Consume(ctx, []string{c.config.Topic}, handler); err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return err
				}
				return nil
			}
		}
	}
}

// Close leaves the consumer group
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// addMessage adds a message to the buffer and flushes if needed
func (c *Consumer) addMessage(reading models.MeterReading) {
	c.bufferLock.Lock()
	defer c.bufferLock.Unlock()

	c.msgBuffer = append(c.msgBuffer, reading)

	// Flush if buffer is full
	if len(c.msgBuffer) >= c.config.BatchSize {
		c.flushBufferLocked()
	}
}

// flushBuffer flushes the message buffer
func (c *Consumer) flushBuffer() {
	c.bufferLock.Lock()
	defer c.bufferLock.Unlock()

	c.flushBufferLocked()
}

// flushBufferLocked flushes the message buffer while holding the lock
func (c *Consumer) flushBufferLocked() {
	if len(c.msgBuffer) == 0 {
		return
	}

	// Create a copy of the buffer
	messages := make([]models.MeterReading, len(c.msgBuffer))
	copy(messages, c.msgBuffer)

	// Clear the buffer
	c.msgBuffer = c.msgBuffer[:0]
	c.lastFlush = time.Now()

	// Process messages in a separate goroutine
	c.inflight.Add(1)
	go func(msgs []models.MeterReading) {
		defer c.inflight.Done()
		if err := c.processor(msgs); err != nil {
			c.logger.Errorw("error processing readings", "count", len(msgs), "error", err)
		}
	}(messages)
}

// drain flushes the buffer and waits until the processor has seen every batch
func (c *Consumer) drain() {
	c.flushBuffer()
	c.inflight.Wait()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ctx      context.Context
}

func (h *consumerGroupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if h.ctx.Err() != nil {
			return h.ctx.Err()
		}

		reading, err := DecodeReading(message.Value)
		if err != nil {
			h.consumer.logger.Warnw("skipping undecodable reading", "partition", message.Partition, "offset", message.Offset, "error", err)
			session.MarkMessage(message, "")
			continue
		}

		h.consumer.addMessage(reading)
		session.MarkMessage(message, "")
	}
	return nil
}

// wireReading is the JSON shape of a metered load message
type wireReading struct {
	Timestamp string  `json:"datetime_beginning_ept"`
	Zone      string  `json:"zone"`
	LoadMW    float64 `json:"mw"`
}

// DecodeReading parses one metered load message
func DecodeReading(b []byte) (models.MeterReading, error) {
	var w wireReading
	if err := json.Unmarshal(b, &w); err != nil {
		return models.MeterReading{}, err
	}
	if w.Zone == "" {
		return models.MeterReading{}, errors.New("reading without zone")
	}
	ts, err := reference.ParseTimestamp(w.Timestamp)
	if err != nil {
		return models.MeterReading{}, err
	}
	return models.MeterReading{Timestamp: ts, Zone: w.Zone, LoadMW: w.LoadMW}, nil
}
