package rabbitmq

import (
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"
)

// ExtractOrderNumber pulls the order number out of a stage event body for
// log correlation, without decoding the full event.
func ExtractOrderNumber(delivery amqp091.Delivery) (string, error) {
	var message struct {
		OrderNumber string `json:"order_number"`
	}

	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		return "", err
	}

	return message.OrderNumber, nil
}
