package flow

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/contact"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/google/uuid"
)

// Accepted layouts for dates and times coming out of the LLM. Tried in order.
var (
	bookingDateFormats = []string{"2006-01-02", "02.01.2006", "02/01/2006"}
	bookingTimeFormats = []string{"15:04", "15:04:05", "3:04 PM"}
)

// Assembler converts advisory extraction arguments into a typed Booking.
// It is strict about identity fields and tolerant about scheduling fields:
// an unparseable date or time is dropped, never an error.
type Assembler struct {
	contacts *contact.Normalizer
}

// NewAssembler creates an Assembler using the given contact normalizer.
func NewAssembler(contacts *contact.Normalizer) *Assembler {
	return &Assembler{contacts: contacts}
}

// Assemble builds a pending Booking from extraction arguments.
func (a *Assembler) Assemble(conversationID uuid.UUID, args *models.BookingArgs) (*models.Booking, error) {
	clientName := strings.TrimSpace(args.ClientName)
	if clientName == "" {
		return nil, models.ErrMissingClientName
	}
	service := strings.TrimSpace(args.ServiceDescription)
	if service == "" {
		return nil, models.ErrMissingServiceDescription
	}
	method, ok := models.ParseContactMethod(args.PreferredContactMethod)
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrMissingContactMethod, args.PreferredContactMethod)
	}

	phone, err := a.contacts.NormalizePhone(args.Phone)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:                     uuid.New(),
		ConversationID:         conversationID,
		ClientName:             clientName,
		Phone:                  phone,
		WhatsApp:               a.resolveWhatsApp(args, phone),
		PreferredContactMethod: method,
		ServiceDescription:     service,
		AdditionalNotes:        strings.TrimSpace(args.AdditionalNotes),
		Status:                 models.BookingStatusPending,
	}

	if args.PreferredContactTime != "" {
		if tod, ok := models.ParseTimeOfDay(args.PreferredContactTime); ok {
			booking.PreferredContactTime = tod
		} else {
			slog.Warn("Assembler.Assemble: dropping invalid preferred contact time", "value", args.PreferredContactTime)
		}
	}
	if args.TimeOfDay != "" {
		if tod, ok := models.ParseTimeOfDay(args.TimeOfDay); ok {
			booking.TimeOfDay = tod
		} else {
			slog.Warn("Assembler.Assemble: dropping invalid time of day", "value", args.TimeOfDay)
		}
	}
	booking.BookingDate = parseBookingDate(args.BookingDate)
	booking.BookingTime = parseBookingTime(args.BookingTime)

	return booking, nil
}

// resolveWhatsApp picks the WhatsApp number for the booking. The contact
// phone is used unless the client explicitly supplied a different number.
func (a *Assembler) resolveWhatsApp(args *models.BookingArgs, phone string) string {
	usePhone := args.UsePhoneForWhatsApp == nil || *args.UsePhoneForWhatsApp
	if usePhone || strings.TrimSpace(args.WhatsApp) == "" {
		return phone
	}
	whatsapp, err := a.contacts.NormalizePhone(args.WhatsApp)
	if err != nil {
		slog.Warn("Assembler.resolveWhatsApp: separate whatsapp number invalid, falling back to phone", "error", err)
		return phone
	}
	return whatsapp
}

func parseBookingDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range bookingDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	slog.Warn("flow.parseBookingDate: dropping unparseable date", "value", raw)
	return nil
}

func parseBookingTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range bookingTimeFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	slog.Warn("flow.parseBookingTime: dropping unparseable time", "value", raw)
	return nil
}
