package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/models"
)

// Routing keys on the events exchange
const (
	RoutingContributionSubmitted = "contribution.submitted"
	RoutingMarkToggled           = "mark.toggled"
)

// EventPublisher publishes domain events to a RabbitMQ topic exchange
type EventPublisher struct {
	mu           sync.RWMutex
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	url          string
}

// NewEventPublisher connects and declares the exchange
func NewEventPublisher(url, exchangeName string) (*EventPublisher, error) {
	conn, channel, err := dialExchange(url, exchangeName)
	if err != nil {
		return nil, err
	}

	publisher := &EventPublisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		url:          url,
	}

	go publisher.handleReconnect(conn)

	log.Info().
		Str("exchange", exchangeName).
		Msg("RabbitMQ publisher initialized")

	return publisher, nil
}

func dialExchange(url, exchangeName string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return conn, channel, nil
}

// PublishContributionSubmitted publishes a contribution.submitted event
func (p *EventPublisher) PublishContributionSubmitted(ctx context.Context, event models.ContributionSubmittedEvent) error {
	return p.publish(ctx, RoutingContributionSubmitted, event)
}

// PublishMarkToggled publishes a mark.toggled event
func (p *EventPublisher) PublishMarkToggled(ctx context.Context, event models.MarkToggledEvent) error {
	return p.publish(ctx, RoutingMarkToggled, event)
}

func (p *EventPublisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.RLock()
	channel := p.channel
	p.mu.RUnlock()

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			MessageId:    uuid.New().String(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Info().
		Str("routing_key", routingKey).
		Str("exchange", p.exchangeName).
		Int("body_size", len(body)).
		Msg("Message published to RabbitMQ")

	return nil
}

func (p *EventPublisher) handleReconnect(conn *amqp.Connection) {
	closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))

	closeErr, ok := <-closeChan
	if !ok || closeErr == nil {
		// Closed on purpose
		return
	}

	log.Error().
		Err(closeErr).
		Msg("RabbitMQ connection closed, attempting to reconnect...")

	for {
		time.Sleep(5 * time.Second)

		newConn, channel, err := dialExchange(p.url, p.exchangeName)
		if err != nil {
			log.Error().Err(err).Msg("Failed to reconnect to RabbitMQ")
			continue
		}

		p.mu.Lock()
		p.conn = newConn
		p.channel = channel
		p.mu.Unlock()

		log.Info().Msg("Successfully reconnected to RabbitMQ")
		go p.handleReconnect(newConn)
		return
	}
}

// Close closes the RabbitMQ connection
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close RabbitMQ connection")
			return err
		}
	}
	log.Info().Msg("RabbitMQ publisher closed")
	return nil
}

// HealthCheck verifies the RabbitMQ connection
func (p *EventPublisher) HealthCheck() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}
	if p.channel == nil {
		return fmt.Errorf("RabbitMQ channel is nil")
	}
	return nil
}
