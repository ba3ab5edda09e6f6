package transport

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"costume-portal/internal/core/domain/models"
	"costume-portal/pkg/logger"
)

// smsCostCents is what the stub provider charges per segment.
const smsCostCents = 2

// ConsoleTransport is the development transport: it validates the
// destination the way a real provider would, prints the message, and maps
// outcomes onto the deterministic provider statuses the tracker expects.
// Production deployments swap in a real provider adapter behind the same
// port.
type ConsoleTransport struct {
	log logger.Logger
}

func NewConsoleTransport() *ConsoleTransport {
	return &ConsoleTransport{
		log: logger.InitLogger("console_transport", logger.LevelDebug),
	}
}

func (t *ConsoleTransport) Send(ctx context.Context, ch models.Channel, recipient, subject, body string) (models.SendResult, error) {
	if err := ctx.Err(); err != nil {
		return models.SendResult{}, err
	}

	if detail, ok := validateRecipient(ch, recipient); !ok {
		return models.SendResult{
			Status:      models.ProviderFailedPermanent,
			ErrorDetail: detail,
		}, nil
	}

	switch ch {
	case models.ChannelEmail:
		fmt.Printf("[email] to=%s subject=%q\n%s\n", recipient, subject, body)
	case models.ChannelSMS:
		fmt.Printf("[sms] to=%s\n%s\n", recipient, body)
	}

	result := models.SendResult{
		Status:            models.ProviderSent,
		ProviderMessageID: uuid.NewString(),
	}
	if ch == models.ChannelSMS {
		result.CostCents = smsCostCents
	}

	return result, nil
}

// validateRecipient mirrors the checks providers run before accepting a
// message; failures here are permanent, not worth retrying.
func validateRecipient(ch models.Channel, recipient string) (string, bool) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "empty destination", false
	}

	switch ch {
	case models.ChannelEmail:
		at := strings.Index(recipient, "@")
		if at < 1 || at == len(recipient)-1 || !strings.Contains(recipient[at:], ".") {
			return "invalid email address", false
		}
	case models.ChannelSMS:
		digits := 0
		for _, r := range recipient {
			switch {
			case unicode.IsDigit(r):
				digits++
			case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
			default:
				return "invalid phone number", false
			}
		}
		if digits < 7 {
			return "invalid phone number", false
		}
	default:
		return fmt.Sprintf("unsupported channel %q", ch), false
	}

	return "", true
}
