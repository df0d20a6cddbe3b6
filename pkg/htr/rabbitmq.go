// Package htr talks to the handwriting recognition worker over RabbitMQ: requests go out
// on one durable queue and recognition results come back on another.
package htr

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Message is a delivery from the result queue.
type Message struct {
	Body          []byte
	CorrelationID string
	Timestamp     time.Time
	Redelivered   bool
	Ack           func() error
	Nack          func(requeue bool) error
}

// Dial opens a connection to the broker.
func Dial(url string) (*amqp.Connection, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url must not be empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return conn, nil
}

func declare(channel *amqp.Channel, queue string) error {
	_, err := channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return nil
}

// Publisher sends recognition requests.
type Publisher struct {
	channel *amqp.Channel
	queue   string
	logger  zerolog.Logger
}

// NewPublisher opens a channel on conn and declares the request queue.
func NewPublisher(conn *amqp.Connection, queue string, logger zerolog.Logger) (*Publisher, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declare(channel, queue); err != nil {
		_ = channel.Close()
		return nil, err
	}

	return &Publisher{
		channel: channel,
		queue:   queue,
		logger:  logger.With().Str("component", "htr_publisher").Logger(),
	}, nil
}

// Publish sends body to the request queue as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, correlationID string, body []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := p.channel.PublishWithContext(
		publishCtx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish htr request: %w", err)
	}

	p.logger.Debug().Str("correlation_id", correlationID).Msg("htr request published")
	return nil
}

// Close releases the channel.
func (p *Publisher) Close() error {
	return p.channel.Close()
}

// Consumer reads recognition results.
type Consumer struct {
	channel     *amqp.Channel
	queue       string
	consumerTag string
	logger      zerolog.Logger
}

// NewConsumer opens a channel on conn and declares the result queue.
func NewConsumer(conn *amqp.Connection, queue, consumerTag string, logger zerolog.Logger) (*Consumer, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declare(channel, queue); err != nil {
		_ = channel.Close()
		return nil, err
	}

	return &Consumer{
		channel:     channel,
		queue:       queue,
		consumerTag: consumerTag,
		logger:      logger.With().Str("component", "htr_consumer").Logger(),
	}, nil
}

// Consume starts delivery with manual acknowledgements. The returned channel closes when
// ctx is done or the broker closes the subscription.
func (c *Consumer) Consume(ctx context.Context) (<-chan Message, error) {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := c.channel.Consume(
		c.queue,
		c.consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", c.queue, err)
	}

	output := make(chan Message)

	go func() {
		defer close(output)

		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Msg("stopping htr consumer")
				return
			case delivery, ok := <-deliveries:
				if !ok {
					c.logger.Warn().Msg("htr delivery channel closed")
					return
				}

				message := Message{
					Body:          delivery.Body,
					CorrelationID: delivery.CorrelationId,
					Timestamp:     delivery.Timestamp,
					Redelivered:   delivery.Redelivered,
					Ack:           func() error { return delivery.Ack(false) },
					Nack:          func(requeue bool) error { return delivery.Nack(false, requeue) },
				}

				select {
				case output <- message:
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				}
			}
		}
	}()

	c.logger.Info().Str("queue", c.queue).Str("consumer_tag", c.consumerTag).Msg("htr consumer started")
	return output, nil
}

// Close cancels the subscription and releases the channel.
func (c *Consumer) Close() error {
	if err := c.channel.Cancel(c.consumerTag, false); err != nil {
		c.logger.Error().Err(err).Msg("failed to cancel htr consumer")
	}
	return c.channel.Close()
}
