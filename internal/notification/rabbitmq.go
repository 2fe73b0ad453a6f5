package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const rabbitPublishTimeout = 5 * time.Second

// RabbitMQPublisher publishes events to a durable topic exchange.
type RabbitMQPublisher struct {
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// ConnectRabbitMQ dials the broker at url.
func ConnectRabbitMQ(url string) (*amqp.Connection, error) {
	if url == "" {
		return nil, fmt.Errorf("rabbitmq url must not be empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// NewRabbitMQPublisher opens a channel on conn and declares the exchange.
func NewRabbitMQPublisher(conn *amqp.Connection, exchange, routingKey string) (*RabbitMQPublisher, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQPublisher{
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

func (p *RabbitMQPublisher) Name() string { return "rabbitmq" }

func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, rabbitPublishTimeout)
	defer cancel()

	return p.channel.PublishWithContext(
		publishCtx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.SentAt,
			Type:         event.Type,
		},
	)
}

// Close releases the channel. The connection is owned by the caller.
func (p *RabbitMQPublisher) Close() error {
	return p.channel.Close()
}
