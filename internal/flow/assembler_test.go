package flow

import (
	"errors"
	"testing"

	"github.com/Inverseit/crm-whatsapp-service/internal/contact"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/google/uuid"
)

func newTestAssembler() *Assembler {
	return NewAssembler(contact.NewNormalizer("KZ"))
}

func validArgs() *models.BookingArgs {
	return &models.BookingArgs{
		ClientName:             "Айгерим",
		Phone:                  "87071234567",
		PreferredContactMethod: "whatsapp_message",
		ServiceDescription:     "Маникюр с покрытием",
	}
}

func TestAssembleMinimal(t *testing.T) {
	convID := uuid.New()
	booking, err := newTestAssembler().Assemble(convID, validArgs())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if booking.ConversationID != convID {
		t.Errorf("conversation ID = %s, want %s", booking.ConversationID, convID)
	}
	if booking.Phone != "+77071234567" {
		t.Errorf("phone = %s, want +77071234567", booking.Phone)
	}
	if booking.WhatsApp != "+77071234567" {
		t.Errorf("whatsapp should default to phone, got %s", booking.WhatsApp)
	}
	if booking.Status != models.BookingStatusPending {
		t.Errorf("status = %s, want pending", booking.Status)
	}
	if booking.BookingDate != nil || booking.BookingTime != nil {
		t.Error("date and time should be nil when not provided")
	}
}

func TestAssembleMissingRequiredFields(t *testing.T) {
	asm := newTestAssembler()
	convID := uuid.New()

	args := validArgs()
	args.ClientName = "  "
	if _, err := asm.Assemble(convID, args); !errors.Is(err, models.ErrMissingClientName) {
		t.Errorf("blank name: err = %v, want ErrMissingClientName", err)
	}

	args = validArgs()
	args.ServiceDescription = ""
	if _, err := asm.Assemble(convID, args); !errors.Is(err, models.ErrMissingServiceDescription) {
		t.Errorf("blank service: err = %v, want ErrMissingServiceDescription", err)
	}

	args = validArgs()
	args.PreferredContactMethod = "carrier_pigeon"
	if _, err := asm.Assemble(convID, args); !errors.Is(err, models.ErrMissingContactMethod) {
		t.Errorf("bad method: err = %v, want ErrMissingContactMethod", err)
	}

	args = validArgs()
	args.Phone = "12345"
	if _, err := asm.Assemble(convID, args); !errors.Is(err, models.ErrInvalidPhoneNumber) {
		t.Errorf("bad phone: err = %v, want ErrInvalidPhoneNumber", err)
	}
}

func TestAssembleDateFormats(t *testing.T) {
	asm := newTestAssembler()
	for _, raw := range []string{"2025-09-05", "05.09.2025", "05/09/2025"} {
		args := validArgs()
		args.BookingDate = raw
		booking, err := asm.Assemble(uuid.New(), args)
		if err != nil {
			t.Fatalf("Assemble(%q) failed: %v", raw, err)
		}
		if booking.BookingDate == nil {
			t.Fatalf("date %q was dropped", raw)
		}
		if got := booking.BookingDate.Format("2006-01-02"); got != "2025-09-05" {
			t.Errorf("date %q parsed as %s, want 2025-09-05", raw, got)
		}
	}
}

func TestAssembleTimeFormats(t *testing.T) {
	asm := newTestAssembler()
	cases := map[string]string{
		"14:30":    "14:30",
		"14:30:15": "14:30",
		"2:30 PM":  "14:30",
	}
	for raw, want := range cases {
		args := validArgs()
		args.BookingTime = raw
		booking, err := asm.Assemble(uuid.New(), args)
		if err != nil {
			t.Fatalf("Assemble(%q) failed: %v", raw, err)
		}
		if booking.BookingTime == nil {
			t.Fatalf("time %q was dropped", raw)
		}
		if got := booking.BookingTime.Format("15:04"); got != want {
			t.Errorf("time %q parsed as %s, want %s", raw, got, want)
		}
	}
}

func TestAssembleDropsUnparseableScheduling(t *testing.T) {
	args := validArgs()
	args.BookingDate = "в следующий вторник"
	args.BookingTime = "после обеда"
	args.PreferredContactTime = "noonish"
	args.TimeOfDay = "night"
	booking, err := newTestAssembler().Assemble(uuid.New(), args)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if booking.BookingDate != nil {
		t.Error("unparseable date should be dropped")
	}
	if booking.BookingTime != nil {
		t.Error("unparseable time should be dropped")
	}
	if booking.PreferredContactTime != "" {
		t.Error("invalid preferred contact time should be dropped")
	}
	if booking.TimeOfDay != "" {
		t.Error("invalid time of day should be dropped")
	}
}

func TestAssembleSeparateWhatsAppNumber(t *testing.T) {
	asm := newTestAssembler()
	usePhone := false

	args := validArgs()
	args.UsePhoneForWhatsApp = &usePhone
	args.WhatsApp = "8 707 765-43-21"
	booking, err := asm.Assemble(uuid.New(), args)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if booking.WhatsApp != "+77077654321" {
		t.Errorf("whatsapp = %s, want +77077654321", booking.WhatsApp)
	}

	// An invalid separate number falls back to the contact phone.
	args = validArgs()
	args.UsePhoneForWhatsApp = &usePhone
	args.WhatsApp = "not a number"
	booking, err = asm.Assemble(uuid.New(), args)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if booking.WhatsApp != booking.Phone {
		t.Errorf("invalid whatsapp should fall back to phone, got %s", booking.WhatsApp)
	}
}

func TestAssembleValidPreferences(t *testing.T) {
	args := validArgs()
	args.PreferredContactTime = "morning"
	args.TimeOfDay = "evening"
	args.AdditionalNotes = "  аллергия на гель-лак  "
	booking, err := newTestAssembler().Assemble(uuid.New(), args)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if booking.PreferredContactTime != models.TimeOfDayMorning {
		t.Errorf("preferred contact time = %s, want morning", booking.PreferredContactTime)
	}
	if booking.TimeOfDay != models.TimeOfDayEvening {
		t.Errorf("time of day = %s, want evening", booking.TimeOfDay)
	}
	if booking.AdditionalNotes != "аллергия на гель-лак" {
		t.Errorf("notes not trimmed: %q", booking.AdditionalNotes)
	}
}
