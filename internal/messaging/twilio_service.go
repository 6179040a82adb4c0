package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// whatsappPrefix is Twilio's address scheme for WhatsApp numbers.
const whatsappPrefix = "whatsapp:"

// twilioMessageAPI is the slice of the Twilio SDK the transport uses.
type twilioMessageAPI interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioService sends WhatsApp messages through the Twilio API. It is the
// alternative to the Cloud transport for deployments already on Twilio.
type TwilioService struct {
	api  twilioMessageAPI
	from string
}

// NewTwilioService creates a Twilio-backed WhatsApp transport. The from number
// is the Twilio WhatsApp sender, with or without the whatsapp: prefix.
func NewTwilioService(accountSID, authToken, from string) (*TwilioService, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("twilio credentials missing")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioService{api: client.Api, from: ensureWhatsAppPrefix(from)}, nil
}

// Send delivers a message via Twilio. Template messages are rendered to their
// greeting text because Twilio manages templates out of band.
func (s *TwilioService) Send(ctx context.Context, to string, msg models.Outbound) error {
	body := msg.Text
	if msg.Type == models.OutboundTemplate && body == "" {
		body = msg.TemplateName
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(ensureWhatsAppPrefix(to))
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioService.Send: request failed", "error", err, "to", to)
		return fmt.Errorf("failed to send twilio message: %w", err)
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("TwilioService.Send: message delivered", "to", to, "sid", sid)
	return nil
}

// ParseTwilioWebhook extracts an inbound message from Twilio's form-encoded
// webhook body.
func ParseTwilioWebhook(form url.Values) (models.InboundMessage, error) {
	from := strings.TrimPrefix(form.Get("From"), whatsappPrefix)
	if from == "" {
		return models.InboundMessage{}, fmt.Errorf("twilio webhook missing From")
	}
	in := models.InboundMessage{
		Platform:    models.PlatformWhatsApp,
		PhoneNumber: from,
		WhatsAppID:  strings.TrimPrefix(form.Get("WaId"), whatsappPrefix),
		ProfileName: form.Get("ProfileName"),
		Content:     form.Get("Body"),
		MessageType: models.MessageTypeText,
	}
	if in.WhatsAppID == "" {
		in.WhatsAppID = from
	}
	if form.Get("NumMedia") != "" && form.Get("NumMedia") != "0" {
		in.Content = "[Media received]"
		in.MessageType = models.MessageTypeImage
	}
	return in, nil
}

func ensureWhatsAppPrefix(number string) string {
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}
