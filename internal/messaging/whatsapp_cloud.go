package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
)

// graphAPIBase is the Meta Graph API endpoint the Cloud transport talks to.
const graphAPIBase = "https://graph.facebook.com/v22.0"

// templateLanguage is the default language code sent with template messages.
const templateLanguage = "ru"

// CloudOpts holds configuration options for the WhatsApp Cloud transport.
type CloudOpts struct {
	APIBase          string
	AccessToken      string
	PhoneNumberID    string
	VerifyToken      string
	TemplateLanguage string
	HTTPClient       *http.Client
}

// CloudOption defines a configuration option for the WhatsApp Cloud transport.
type CloudOption func(*CloudOpts)

// WithCloudAPIBase overrides the Graph API base URL, used in tests.
func WithCloudAPIBase(base string) CloudOption {
	return func(o *CloudOpts) {
		o.APIBase = base
	}
}

// WithCloudHTTPClient overrides the HTTP client used for Graph API calls.
func WithCloudHTTPClient(c *http.Client) CloudOption {
	return func(o *CloudOpts) {
		o.HTTPClient = c
	}
}

// WithTemplateLanguage sets the language code sent with template messages.
func WithTemplateLanguage(code string) CloudOption {
	return func(o *CloudOpts) {
		o.TemplateLanguage = code
	}
}

// CloudService sends messages through the WhatsApp Business Cloud API.
type CloudService struct {
	apiBase          string
	accessToken      string
	phoneNumberID    string
	verifyToken      string
	templateLanguage string
	client           *http.Client
}

// NewCloudService creates a WhatsApp Cloud API transport.
func NewCloudService(accessToken, phoneNumberID, verifyToken string, opts ...CloudOption) (*CloudService, error) {
	if accessToken == "" || phoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp cloud credentials missing")
	}
	cfg := CloudOpts{
		APIBase:          graphAPIBase,
		TemplateLanguage: templateLanguage,
		HTTPClient:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &CloudService{
		apiBase:          cfg.APIBase,
		accessToken:      accessToken,
		phoneNumberID:    phoneNumberID,
		verifyToken:      verifyToken,
		templateLanguage: cfg.TemplateLanguage,
		client:           cfg.HTTPClient,
	}, nil
}

type cloudTextBody struct {
	Body string `json:"body"`
}

type cloudTemplateLanguage struct {
	Code string `json:"code"`
}

type cloudTemplate struct {
	Name     string                `json:"name"`
	Language cloudTemplateLanguage `json:"language"`
}

type cloudMessageRequest struct {
	MessagingProduct string         `json:"messaging_product"`
	RecipientType    string         `json:"recipient_type"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *cloudTextBody `json:"text,omitempty"`
	Template         *cloudTemplate `json:"template,omitempty"`
}

// Send delivers a text or template message to the given phone number.
func (s *CloudService) Send(ctx context.Context, to string, msg models.Outbound) error {
	req := cloudMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
	}
	switch msg.Type {
	case models.OutboundTemplate:
		req.Type = "template"
		req.Template = &cloudTemplate{Name: msg.TemplateName, Language: cloudTemplateLanguage{Code: s.templateLanguage}}
	default:
		req.Type = "text"
		req.Text = &cloudTextBody{Body: msg.Text}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	url := fmt.Sprintf("%s/%s/messages", s.apiBase, s.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		slog.Error("CloudService.Send: request failed", "error", err, "to", to)
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("CloudService.Send: API error", "status", resp.StatusCode, "body", string(body), "to", to)
		return fmt.Errorf("whatsapp API returned status %d", resp.StatusCode)
	}
	slog.Debug("CloudService.Send: message delivered", "to", to, "type", req.Type)
	return nil
}

// VerifyToken handles the Cloud API webhook verification handshake. It returns
// the challenge to echo back, or an error when the token does not match.
func (s *CloudService) VerifyToken(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token != s.verifyToken {
		return "", fmt.Errorf("webhook verification failed")
	}
	return challenge, nil
}

// Cloud API webhook payload, trimmed to the fields the parser reads.
type cloudWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseCloudWebhook extracts inbound messages from a Cloud API webhook body.
// Status-only deliveries produce an empty slice, not an error.
func ParseCloudWebhook(body []byte) ([]models.InboundMessage, error) {
	var payload cloudWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse whatsapp webhook: %w", err)
	}

	var out []models.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value
			profileName := ""
			waID := ""
			if len(value.Contacts) > 0 {
				profileName = value.Contacts[0].Profile.Name
				waID = value.Contacts[0].WaID
			}
			for _, m := range value.Messages {
				in := models.InboundMessage{
					Platform:    models.PlatformWhatsApp,
					PhoneNumber: m.From,
					WhatsAppID:  waID,
					ProfileName: profileName,
				}
				if in.WhatsAppID == "" {
					in.WhatsAppID = m.From
				}
				if ts, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
					in.Timestamp = time.Unix(ts, 0).UTC()
				}
				in.Content, in.MessageType = describeContent(m.Type, m.Text.Body)
				out = append(out, in)
			}
		}
	}
	return out, nil
}

// describeContent maps a Cloud API message type to stored content. Non-text
// messages become placeholders so the dialogue can acknowledge them.
func describeContent(msgType, text string) (string, models.MessageType) {
	switch msgType {
	case "text", "":
		return text, models.MessageTypeText
	case "image":
		return "[Image received]", models.MessageTypeImage
	case "document":
		return "[Document received]", models.MessageTypeDocument
	case "location":
		return "[Location received]", models.MessageTypeLocation
	default:
		return fmt.Sprintf("[%s received]", msgType), models.MessageTypeText
	}
}
