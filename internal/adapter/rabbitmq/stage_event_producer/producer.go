package stage_event_producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"costume-portal/internal/adapter/rabbitmq"
	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/pkg/config"
	"costume-portal/pkg/logger"
)

// StageEventProducer publishes committed stage transitions to RabbitMQ
type StageEventProducer struct {
	conn *rabbitmq.Connection
	log  logger.Logger
}

// NewStageEventProducer creates a new producer for stage transition events
func NewStageEventProducer(ctx context.Context, cfg config.Config) (*StageEventProducer, error) {
	log := logger.InitLogger("stage_event_producer", logger.LevelDebug)

	conn, err := rabbitmq.NewConnection(ctx, cfg)
	if err != nil {
		log.Error(ctx, types.ActionRabbitMQConnectFailed, "failed to create RabbitMQ connection", err)
		return nil, fmt.Errorf("failed to create RabbitMQ connection: %w", err)
	}

	// Set up RabbitMQ
	if err := rabbitmq.SetupRabbitMQ(ctx, conn, log); err != nil {
		conn.Close()
		log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to setup RabbitMQ", err)
		return nil, fmt.Errorf("failed to setup RabbitMQ: %w", err)
	}

	return &StageEventProducer{
		conn: conn,
		log:  log,
	}, nil
}

// PublishStageTransitioned publishes a stage transition event to the topic
// exchange, routed by the stage the order entered.
func (p *StageEventProducer) PublishStageTransitioned(ctx context.Context, event models.StageTransitioned) error {
	jsonBody, err := json.Marshal(event)
	if err != nil {
		p.log.Error(ctx, types.ActionRabbitmqPublishFailed, "failed to marshal stage event", err)
		return fmt.Errorf("failed to marshal stage event: %w", err)
	}

	routingKey := fmt.Sprintf("stage.%s", event.ToStage)

	err = p.conn.PublishWithContext(
		ctx,
		rabbitmq.StageEventsExchange, // exchange name
		routingKey,                   // routing key
		false,                        // mandatory
		false,                        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent, // message persisted to disk
			Timestamp:    time.Now(),
			Body:         jsonBody,
		},
	)

	if err != nil {
		p.log.Error(ctx, types.ActionRabbitmqPublishFailed, "failed to publish stage event", err)
		return fmt.Errorf("failed to publish stage event: %w", err)
	}

	p.log.Debug(ctx, types.ActionTransitionPublished, "stage event published successfully",
		"order_number", event.OrderNumber,
		"routing_key", routingKey,
		"is_revert", event.IsRevert,
	)

	return nil
}

// Close closes the connection to RabbitMQ
func (p *StageEventProducer) Close() error {
	return p.conn.Close()
}
