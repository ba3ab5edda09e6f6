package rabbitmq

import (
	"context"

	"github.com/rabbitmq/amqp091-go"
)

// MessageHandler processes one consumed delivery. The returned error decides
// the ack: nil acks, a transient error requeues, anything else dead-letters.
type MessageHandler interface {
	HandleMessage(ctx context.Context, delivery amqp091.Delivery) error
}

// MessageHandlerFunc adapts a plain function to MessageHandler.
type MessageHandlerFunc func(ctx context.Context, delivery amqp091.Delivery) error

func (f MessageHandlerFunc) HandleMessage(ctx context.Context, delivery amqp091.Delivery) error {
	return f(ctx, delivery)
}
