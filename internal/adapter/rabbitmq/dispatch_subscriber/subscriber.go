// internal/adapter/rabbitmq/dispatch_subscriber/subscriber.go
package dispatch_subscriber

import (
	"context"
	"errors"
	"fmt"

	"costume-portal/internal/adapter/rabbitmq"
	"costume-portal/internal/core/domain/models"
	"costume-portal/internal/core/domain/types"
	"costume-portal/pkg/config"
	"costume-portal/pkg/logger"
)

// DispatchSubscriber consumes stage transition events and provider delivery
// callbacks for the dispatch worker
type DispatchSubscriber struct {
	conn       *rabbitmq.Connection
	log        logger.Logger
	workerName string
	prefetch   int
}

// NewDispatchSubscriber creates a new dispatch subscriber
func NewDispatchSubscriber(ctx context.Context, cfg config.Config, workerName string, prefetch int) (*DispatchSubscriber, error) {
	log := logger.InitLogger(fmt.Sprintf("dispatch_subscriber_%s", workerName), logger.LevelDebug)

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

	return &DispatchSubscriber{
		conn:       conn,
		log:        log,
		workerName: workerName,
		prefetch:   prefetch,
	}, nil
}

// ConsumeStageEvents starts consuming stage transition events from the
// dispatch queue
func (s *DispatchSubscriber) ConsumeStageEvents(ctx context.Context, handler rabbitmq.MessageHandler) error {
	ch := s.conn.Channel()

	// Set prefetch count
	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		s.log.Error(ctx, types.ActionRabbitMQSetupFailed, "failed to set QoS", err)
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		rabbitmq.DispatchQueue, // queue name
		s.workerName,           // consumer name (unique for each worker)
		false,                  // auto-ack
		false,                  // exclusive
		false,                  // no-local
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		s.log.Error(ctx, types.ActionRabbitMQConsumeFailed, "failed to start consuming", err)
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	s.log.Info(ctx, types.ActionRabbitMQConsumeStarted, "started consuming from dispatch queue",
		"queue", rabbitmq.DispatchQueue,
		"prefetch", s.prefetch,
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, types.ActionGracefulShutdown, "stopping consumption due to context cancellation")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				s.log.Error(ctx, types.ActionRabbitMQConsumeFailed, "message channel closed", errors.New("channel closed"))
				return errors.New("message channel closed")
			}

			orderNumber, _ := rabbitmq.ExtractOrderNumber(msg)
			s.log.Debug(ctx, types.ActionDispatchStarted, "processing stage event from queue",
				"order_number", orderNumber,
			)

			if err := handler.HandleMessage(ctx, msg); err != nil {
				s.log.Error(ctx, types.ActionMessageProcessingFailed, "failed to process message", err,
					"order_number", orderNumber,
				)
				// Return message to queue (or send to DLQ depending on error)
				if errors.Is(err, models.ErrorDbTransactionFailed) || errors.Is(err, models.ErrorRabbitmqPublishFailed) {
					// Temporary error, return to queue
					if err := msg.Nack(false, true); err != nil {
						s.log.Error(ctx, types.ActionRabbitMQNackFailed, "failed to nack message", err)
					}
				} else {
					// Permanent error (e.g., malformed event), send to DLQ
					if err := msg.Nack(false, false); err != nil {
						s.log.Error(ctx, types.ActionRabbitMQNackFailed, "failed to nack message to DLQ", err)
					}
				}
				continue
			}

			// Successful processing, acknowledge message
			if err := msg.Ack(false); err != nil {
				s.log.Error(ctx, types.ActionRabbitMQAckFailed, "failed to ack message", err)
			}
		}
	}
}

// ConsumeDeliveryCallbacks starts consuming provider delivery callbacks
func (s *DispatchSubscriber) ConsumeDeliveryCallbacks(ctx context.Context, handler rabbitmq.MessageHandler) error {
	ch := s.conn.Channel()

	msgs, err := ch.Consume(
		rabbitmq.DeliveryCallbacksQueue, // queue name
		"",                              // consumer name (empty for auto-generation)
		false,                           // auto-ack
		false,                           // exclusive
		false,                           // no-local
		false,                           // no-wait
		nil,                             // arguments
	)
	if err != nil {
		s.log.Error(ctx, types.ActionRabbitMQConsumeFailed, "failed to start consuming delivery callbacks", err)
		return fmt.Errorf("failed to start consuming delivery callbacks: %w", err)
	}

	s.log.Info(ctx, types.ActionRabbitMQConsumeStarted, "started consuming from delivery callbacks queue")

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, types.ActionGracefulShutdown, "stopping consumption due to context cancellation")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				s.log.Error(ctx, types.ActionRabbitMQConsumeFailed, "callback channel closed", errors.New("channel closed"))
				return errors.New("callback channel closed")
			}

			s.log.Debug(ctx, types.ActionDeliveryConfirmed, "received delivery callback")

			if err := handler.HandleMessage(ctx, msg); err != nil {
				s.log.Error(ctx, types.ActionMessageProcessingFailed, "failed to process delivery callback", err)
				// Callbacks for unknown notifications cannot succeed later
				if err := msg.Nack(false, false); err != nil {
					s.log.Error(ctx, types.ActionRabbitMQNackFailed, "failed to nack delivery callback", err)
				}
				continue
			}

			// Successful processing, acknowledge message
			if err := msg.Ack(false); err != nil {
				s.log.Error(ctx, types.ActionRabbitMQAckFailed, "failed to ack delivery callback", err)
			}
		}
	}
}

// Close closes the connection to RabbitMQ
func (s *DispatchSubscriber) Close() error {
	return s.conn.Close()
}
