package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/storage"
)

const draftCleanupQueue = "q.floratio.draft_cleanup"

// DraftDeleter removes saved drafts
type DraftDeleter interface {
	DeleteDraft(ctx context.Context, owner, key string) error
}

// DraftCleanupConsumer deletes the saved draft a submitted contribution was
// built from
type DraftCleanupConsumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	drafts       DraftDeleter
	exchangeName string
}

func NewDraftCleanupConsumer(url, exchangeName string, drafts DraftDeleter) (*DraftCleanupConsumer, error) {
	conn, channel, err := dialExchange(url, exchangeName)
	if err != nil {
		return nil, err
	}

	return &DraftCleanupConsumer{
		conn:         conn,
		channel:      channel,
		drafts:       drafts,
		exchangeName: exchangeName,
	}, nil
}

func (c *DraftCleanupConsumer) Start() error {
	q, err := c.channel.QueueDeclare(
		draftCleanupQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		q.Name,
		RoutingContributionSubmitted,
		c.exchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue to %s: %w", RoutingContributionSubmitted, err)
	}

	msgs, err := c.channel.Consume(
		q.Name, // queue
		"",     // consumer tag
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go c.consumeLoop(msgs)

	log.Info().Str("queue", q.Name).Msg("Draft cleanup consumer started")
	return nil
}

func (c *DraftCleanupConsumer) consumeLoop(msgs <-chan amqp.Delivery) {
	for d := range msgs {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		ack, requeue := c.handle(ctx, d.RoutingKey, d.Body)
		cancel()

		if ack {
			d.Ack(false)
		} else {
			d.Nack(false, requeue)
		}
	}
}

// handle processes one message and reports whether to ack it, and if not,
// whether to requeue it
func (c *DraftCleanupConsumer) handle(ctx context.Context, routingKey string, body []byte) (ack bool, requeue bool) {
	log.Info().Str("routing_key", routingKey).Msg("Received contribution event")

	var event models.ContributionSubmittedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal contribution event")
		return false, false
	}

	owner := event.UserID
	if owner == "" {
		owner = event.Username
	}
	if event.DraftKey == "" || owner == "" {
		// Submitted without a saved draft
		return true, false
	}

	err := c.drafts.DeleteDraft(ctx, owner, event.DraftKey)
	switch {
	case errors.Is(err, storage.ErrDraftNotFound):
		log.Debug().Str("draft", event.DraftKey).Msg("Draft already gone")
	case err != nil:
		log.Error().Err(err).Str("draft", event.DraftKey).Msg("Failed to delete submitted draft")
		return false, true
	default:
		log.Info().
			Str("draft", event.DraftKey).
			Str("contribution_id", event.ContributionID).
			Msg("Deleted draft of submitted contribution")
	}
	return true, false
}

func (c *DraftCleanupConsumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
