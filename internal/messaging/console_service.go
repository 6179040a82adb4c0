package messaging

import (
	"context"
	"log/slog"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
)

// ConsoleService is the transport for the generic webhook channel. Replies
// are returned synchronously in the webhook response, so delivery here only
// logs the message.
type ConsoleService struct{}

// NewConsoleService creates the generic channel transport.
func NewConsoleService() *ConsoleService {
	return &ConsoleService{}
}

// Send logs the outbound message.
func (s *ConsoleService) Send(ctx context.Context, to string, msg models.Outbound) error {
	slog.Info("ConsoleService.Send: reply delivered in webhook response", "to", to, "type", msg.Type, "text", msg.Text)
	return nil
}
