// Package contact normalizes client phone numbers and platform identifiers.
//
// Inbound webhooks carry identifiers in platform-specific shapes (raw phone
// strings, WhatsApp IDs, Telegram user and chat IDs). This package turns them
// into the canonical form the store keys conversations on: E.164 phone
// numbers plus per-platform identifier sets.
package contact

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the fallback region used to parse national-format numbers.
const DefaultRegion = "KZ"

// Info is the normalized contact identity for one inbound message.
type Info struct {
	Platform       models.Platform
	PhoneNumber    string // E.164 when known
	WhatsAppID     string
	ProfileName    string
	TelegramID     string
	TelegramChatID string
	FirstName      string
	LastName       string
	Username       string
}

// Normalizer resolves inbound payloads into canonical contact identities.
type Normalizer struct {
	region string
}

// NewNormalizer creates a Normalizer with the given default region.
// An empty region falls back to DefaultRegion.
func NewNormalizer(region string) *Normalizer {
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: region}
}

// NormalizePhone cleans and validates a raw phone number and returns it in
// E.164 format. Numbers without a country code are parsed against the default
// region, so national forms like "87071234567" become "+77071234567".
func (n *Normalizer) NormalizePhone(raw string) (string, error) {
	cleaned := cleanPhone(raw)
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty input", models.ErrInvalidPhoneNumber)
	}
	num, err := phonenumbers.Parse(cleaned, n.region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidPhoneNumber, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %s", models.ErrInvalidPhoneNumber, cleaned)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// FormatForDisplay renders a phone number in international format for
// prompts and notifications. The input is returned unchanged if it cannot
// be parsed.
func FormatForDisplay(phone string) string {
	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
}

// Resolve builds the canonical contact identity for an inbound message.
// WhatsApp and generic messages must carry a valid phone number; Telegram
// messages are keyed on chat and user IDs and only normalize a phone when
// one is present.
func (n *Normalizer) Resolve(in models.InboundMessage) (Info, error) {
	info := Info{
		Platform:       in.Platform,
		ProfileName:    in.ProfileName,
		TelegramID:     in.TelegramID,
		TelegramChatID: in.TelegramChatID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Username:       in.Username,
	}

	switch in.Platform {
	case models.PlatformWhatsApp:
		raw := in.PhoneNumber
		if raw == "" {
			raw = in.WhatsAppID
		}
		phone, err := n.NormalizePhone(raw)
		if err != nil {
			slog.Warn("Normalizer.Resolve: whatsapp phone rejected", "error", err)
			return Info{}, err
		}
		info.PhoneNumber = phone
		info.WhatsAppID = in.WhatsAppID
		if info.WhatsAppID == "" {
			// The phone number doubles as the WhatsApp identifier when the
			// webhook did not carry a separate one.
			info.WhatsAppID = phone
		}
	case models.PlatformTelegram:
		if in.TelegramChatID == "" && in.TelegramID == "" {
			slog.Warn("Normalizer.Resolve: telegram message without identifiers")
			return Info{}, fmt.Errorf("telegram identifiers missing: %w", models.ErrUnsupportedPlatform)
		}
		if in.PhoneNumber != "" {
			phone, err := n.NormalizePhone(in.PhoneNumber)
			if err != nil {
				slog.Warn("Normalizer.Resolve: telegram phone ignored", "error", err)
			} else {
				info.PhoneNumber = phone
			}
		}
	case models.PlatformGeneric:
		phone, err := n.NormalizePhone(in.PhoneNumber)
		if err != nil {
			slog.Warn("Normalizer.Resolve: generic phone rejected", "error", err)
			return Info{}, err
		}
		info.PhoneNumber = phone
	default:
		slog.Error("Normalizer.Resolve: unknown platform", "platform", in.Platform)
		return Info{}, fmt.Errorf("%w: %s", models.ErrUnsupportedPlatform, in.Platform)
	}
	return info, nil
}

// DeliveryAddress returns the identifier a transport needs to reply to this
// contact.
func (i Info) DeliveryAddress() string {
	switch i.Platform {
	case models.PlatformTelegram:
		if i.TelegramChatID != "" {
			return i.TelegramChatID
		}
		return i.TelegramID
	default:
		return i.PhoneNumber
	}
}

// SenderID returns the identifier recorded on inbound messages from this
// contact.
func (i Info) SenderID() string {
	switch i.Platform {
	case models.PlatformWhatsApp:
		return i.WhatsAppID
	case models.PlatformTelegram:
		return i.TelegramID
	default:
		return i.PhoneNumber
	}
}

// DisplayName returns the best human-readable name available for the contact.
func (i Info) DisplayName() string {
	if i.ProfileName != "" {
		return i.ProfileName
	}
	full := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if full != "" {
		return full
	}
	if i.Username != "" {
		return "@" + i.Username
	}
	return ""
}

func cleanPhone(raw string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(strings.TrimSpace(raw))
}
