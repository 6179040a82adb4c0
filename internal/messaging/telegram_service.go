package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramBotAPI is the slice of the Telegram SDK the transport uses.
type telegramBotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramService sends messages through the Telegram Bot API.
type TelegramService struct {
	bot telegramBotAPI
}

// NewTelegramService creates a Telegram transport from a bot token.
func NewTelegramService(token string) (*TelegramService, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token missing")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	slog.Info("NewTelegramService: bot authorized", "username", bot.Self.UserName)
	return &TelegramService{bot: bot}, nil
}

// Send delivers a message to the given chat ID. Template messages fall back
// to their text body since Telegram has no template concept.
func (s *TelegramService) Send(ctx context.Context, to string, msg models.Outbound) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}
	body := msg.Text
	if msg.Type == models.OutboundTemplate && body == "" {
		body = msg.TemplateName
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, body)); err != nil {
		slog.Error("TelegramService.Send: request failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	slog.Debug("TelegramService.Send: message delivered", "chatID", chatID)
	return nil
}

// ParseTelegramUpdate converts a Telegram bot update into an inbound message.
// Updates without a message, such as edits or callbacks, return false.
func ParseTelegramUpdate(update tgbotapi.Update) (models.InboundMessage, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return models.InboundMessage{}, false
	}
	in := models.InboundMessage{
		Platform:       models.PlatformTelegram,
		TelegramID:     strconv.FormatInt(msg.From.ID, 10),
		TelegramChatID: strconv.FormatInt(msg.Chat.ID, 10),
		FirstName:      msg.From.FirstName,
		LastName:       msg.From.LastName,
		Username:       msg.From.UserName,
		Content:        msg.Text,
		MessageType:    models.MessageTypeText,
	}
	// Share Contact delivers the phone number as a contact attachment.
	if msg.Contact != nil && msg.Contact.PhoneNumber != "" {
		in.PhoneNumber = msg.Contact.PhoneNumber
		if in.Content == "" {
			in.Content = "Мой номер телефона: " + msg.Contact.PhoneNumber
		}
	}
	switch {
	case len(msg.Photo) > 0:
		in.Content = "[Image received]"
		in.MessageType = models.MessageTypeImage
	case msg.Document != nil:
		in.Content = "[Document received]"
		in.MessageType = models.MessageTypeDocument
	case msg.Location != nil:
		in.Content = "[Location received]"
		in.MessageType = models.MessageTypeLocation
	}
	return in, true
}
