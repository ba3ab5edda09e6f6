// internal/adapter/rabbitmq/setup.go
package rabbitmq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"costume-portal/internal/core/domain/types"
	"costume-portal/pkg/logger"
)

// Exchange and queue constants
const (
	StageEventsExchange = "stage_events"

	DispatchQueue          = "dispatch_queue"
	DeliveryCallbacksQueue = "delivery_callbacks_queue"

	DeadLetterQueue    = "dead_letter_queue"
	DeadLetterExchange = "dead_letter_exchange"
)

// SetupRabbitMQ configures all necessary exchanges, queues and bindings
func SetupRabbitMQ(ctx context.Context, conn *Connection, log logger.Logger) error {
	ch := conn.Channel()

	log.Info(ctx, types.ActionRabbitMQSetup, "setting up RabbitMQ exchanges and queues")

	// Setup dead letter exchange for storing unprocessable messages
	if err := setupDeadLetterExchange(ctx, ch, log); err != nil {
		return err
	}

	// Setup stage events exchange (topic exchange)
	if err := setupStageEventsExchange(ctx, ch, log); err != nil {
		return err
	}

	// Setup dispatch queue bound to every stage routing key
	if err := setupDispatchQueue(ctx, ch, log); err != nil {
		return err
	}

	// Setup the provider delivery callbacks queue
	if err := setupDeliveryCallbacksQueue(ctx, ch, log); err != nil {
		return err
	}

	log.Info(ctx, types.ActionRabbitMQSetupComplete, "RabbitMQ setup completed successfully")

	return nil
}

// setupDeadLetterExchange configures exchange and queue for "dead letters"
func setupDeadLetterExchange(ctx context.Context, ch *amqp091.Channel, log logger.Logger) error {
	// Declare exchange for "dead letters"
	err := ch.ExchangeDeclare(
		DeadLetterExchange, // name
		"fanout",           // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to declare dead letter exchange", err)
		return fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}

	// Declare queue for "dead letters"
	_, err = ch.QueueDeclare(
		DeadLetterQueue, // name
		true,            // durable
		false,           // auto-deleted
		false,           // exclusive
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to declare dead letter queue", err)
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	// Bind queue to exchange
	err = ch.QueueBind(
		DeadLetterQueue,    // queue name
		"",                 // routing key (irrelevant for fanout)
		DeadLetterExchange, // exchange name
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to bind dead letter queue", err)
		return fmt.Errorf("failed to bind dead letter queue: %w", err)
	}

	return nil
}

// setupStageEventsExchange configures the exchange for stage transitions
func setupStageEventsExchange(ctx context.Context, ch *amqp091.Channel, log logger.Logger) error {
	err := ch.ExchangeDeclare(
		StageEventsExchange, // name
		"topic",             // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to declare stage events exchange", err)
		return fmt.Errorf("failed to declare stage events exchange: %w", err)
	}

	return nil
}

// setupDispatchQueue configures the queue the dispatch worker consumes
func setupDispatchQueue(ctx context.Context, ch *amqp091.Channel, log logger.Logger) error {
	// Arguments for Dead Letter Exchange
	args := amqp091.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	}

	_, err := ch.QueueDeclare(
		DispatchQueue, // name
		true,          // durable
		false,         // auto-deleted
		false,         // exclusive
		false,         // no-wait
		args,          // arguments
	)
	if err != nil {
		log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to declare dispatch queue", err)
		return fmt.Errorf("failed to declare dispatch queue: %w", err)
	}

	// Bind dispatch queue to all stage transitions
	err = ch.QueueBind(
		DispatchQueue,       // queue name
		"stage.#",           // routing key (all stages)
		StageEventsExchange, // exchange name
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to bind dispatch queue", err)
		return fmt.Errorf("failed to bind dispatch queue: %w", err)
	}

	return nil
}

// setupDeliveryCallbacksQueue configures the queue for provider delivery callbacks
func setupDeliveryCallbacksQueue(ctx context.Context, ch *amqp091.Channel, log logger.Logger) error {
	args := amqp091.Table{
		"x-dead-letter-exchange": DeadLetterExchange,
	}

	_, err := ch.QueueDeclare(
		DeliveryCallbacksQueue, // name
		true,                   // durable
		false,                  // auto-deleted
		false,                  // exclusive
		false,                  // no-wait
		args,                   // arguments
	)
	if err != nil {
		log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to declare delivery callbacks queue", err)
		return fmt.Errorf("failed to declare delivery callbacks queue: %w", err)
	}

	return nil
}
