package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-forwarder/core"
	glog "github.com/goliatone/go-logger/glog"
	streadway "github.com/streadway/amqp"
)

const (
	DefaultQueueName   = "forwarder.fragments"
	DefaultConsumerTag = "go-forwarder"
	DefaultPrefetch    = 16
)

// Fragment is the JSON body carried by each delivery.
type Fragment struct {
	Sender     string     `json:"sender"`
	Content    string     `json:"content"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

type FragmentIngester interface {
	OnRawFragment(sender string, content string, capturedAt time.Time) core.IngestResult
}

// Channel is the subset of *streadway.Channel used by the consumer and
// publisher.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args streadway.Table) (streadway.Queue, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args streadway.Table) (<-chan streadway.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Publish(exchange, key string, mandatory, immediate bool, msg streadway.Publishing) error
}

type Option func(*FragmentConsumer)

func WithQueueName(name string) Option {
	return func(c *FragmentConsumer) {
		if name = strings.TrimSpace(name); name != "" {
			c.queue = name
		}
	}
}

func WithConsumerTag(tag string) Option {
	return func(c *FragmentConsumer) {
		if tag = strings.TrimSpace(tag); tag != "" {
			c.consumerTag = tag
		}
	}
}

func WithPrefetch(count int) Option {
	return func(c *FragmentConsumer) {
		if count > 0 {
			c.prefetch = count
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *FragmentConsumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// FragmentConsumer feeds fragments from a durable queue into the ingestion
// gate. Deliveries are acked manually once the gate has seen them. Bodies that
// cannot be decoded are acked and dropped since redelivery would not fix them.
type FragmentConsumer struct {
	channel     Channel
	ingester    FragmentIngester
	queue       string
	consumerTag string
	prefetch    int
	logger      core.Logger
}

func NewFragmentConsumer(channel Channel, ingester FragmentIngester, opts ...Option) (*FragmentConsumer, error) {
	if channel == nil {
		return nil, fmt.Errorf("amqp: channel is required")
	}
	if ingester == nil {
		return nil, fmt.Errorf("amqp: fragment ingester is required")
	}
	consumer := &FragmentConsumer{
		channel:     channel,
		ingester:    ingester,
		queue:       DefaultQueueName,
		consumerTag: DefaultConsumerTag,
		prefetch:    DefaultPrefetch,
		logger:      glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(consumer)
		}
	}
	return consumer, nil
}

func (c *FragmentConsumer) Queue() string {
	if c == nil {
		return ""
	}
	return c.queue
}

// Run declares the queue and consumes until ctx is done or the broker closes
// the delivery channel.
func (c *FragmentConsumer) Run(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("amqp: consumer is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := declareQueue(c.channel, c.queue); err != nil {
		return err
	}
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("amqp: set qos: %w", err)
	}
	deliveries, err := c.channel.Consume(c.queue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp: consume %s: %w", c.queue, err)
	}
	c.logger.Info("amqp fragment consumer started", "queue", c.queue, "consumer", c.consumerTag)

	for {
		select {
		case <-ctx.Done():
			if err := c.channel.Cancel(c.consumerTag, false); err != nil {
				c.logger.Warn("amqp consumer cancel failed", "error", err)
			}
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp: delivery channel closed for %s", c.queue)
			}
			c.Handle(delivery)
		}
	}
}

// Handle processes one delivery and acks it.
func (c *FragmentConsumer) Handle(delivery streadway.Delivery) core.IngestResult {
	var fragment Fragment
	if err := json.Unmarshal(delivery.Body, &fragment); err != nil {
		c.logger.Warn("amqp fragment dropped: malformed body", "delivery_tag", delivery.DeliveryTag, "error", err)
		c.ack(delivery)
		return core.IngestResultRejected
	}

	capturedAt := time.Time{}
	if fragment.CapturedAt != nil {
		capturedAt = fragment.CapturedAt.UTC()
	} else if !delivery.Timestamp.IsZero() {
		capturedAt = delivery.Timestamp.UTC()
	}
	result := c.ingester.OnRawFragment(fragment.Sender, fragment.Content, capturedAt)
	if result == core.IngestResultRejected {
		c.logger.Warn("amqp fragment dropped: rejected by gate", "delivery_tag", delivery.DeliveryTag, "sender", fragment.Sender)
	} else {
		c.logger.Debug("amqp fragment ingested", "delivery_tag", delivery.DeliveryTag, "result", string(result))
	}
	c.ack(delivery)
	return result
}

func (c *FragmentConsumer) ack(delivery streadway.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("amqp ack failed", "delivery_tag", delivery.DeliveryTag, "error", err)
	}
}

// PublishFragment declares the queue and publishes one persistent fragment.
func PublishFragment(channel Channel, queue string, fragment Fragment) error {
	if channel == nil {
		return fmt.Errorf("amqp: channel is required")
	}
	if queue = strings.TrimSpace(queue); queue == "" {
		queue = DefaultQueueName
	}
	if err := declareQueue(channel, queue); err != nil {
		return err
	}
	body, err := json.Marshal(fragment)
	if err != nil {
		return fmt.Errorf("amqp: encode fragment: %w", err)
	}
	return channel.Publish("", queue, false, false, streadway.Publishing{
		ContentType:  "application/json",
		DeliveryMode: streadway.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func declareQueue(channel Channel, queue string) error {
	if _, err := channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("amqp: declare queue %s: %w", queue, err)
	}
	return nil
}
