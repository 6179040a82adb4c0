package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/google/uuid"
)

// Layouts used to persist booking dates and times as text columns.
const (
	dateColumnLayout = "2006-01-02"
	timeColumnLayout = "15:04:05"
)

// nilIfEmpty converts empty strings to nil so they land as NULL columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// strVal unwraps a nullable text column into a plain string.
func strVal(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// dateColumn formats an optional date for storage.
func dateColumn(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateColumnLayout)
}

// timeColumn formats an optional time-of-day for storage.
func timeColumn(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(timeColumnLayout)
}

func parseDateColumn(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(dateColumnLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeColumn(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeColumnLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		c                         models.Conversation
		id                        string
		phone, waID, tgID, tgChat sql.NullString
	)
	if err := row.Scan(&id, &phone, &waID, &tgID, &tgChat, &c.State, &c.IsComplete, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id %q: %w", id, err)
	}
	c.ID = parsed
	c.PhoneNumber = strVal(phone)
	c.WhatsAppID = strVal(waID)
	c.TelegramID = strVal(tgID)
	c.TelegramChatID = strVal(tgChat)
	return &c, nil
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		m          models.Message
		id, convID string
	)
	if err := row.Scan(&id, &convID, &m.Content, &m.MessageType, &m.SenderID, &m.IsFromBot, &m.Platform, &m.IsComplete, &m.CreatedAt); err != nil {
		return nil, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", id, err)
	}
	parsedConv, err := uuid.Parse(convID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id %q: %w", convID, err)
	}
	m.ID = parsedID
	m.ConversationID = parsedConv
	return &m, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                                   models.Booking
		id, convID                          string
		whatsapp, contactTime               sql.NullString
		bookingDate, bookingTime, timeOfDay sql.NullString
		notes                               sql.NullString
	)
	if err := row.Scan(&id, &convID, &b.ClientName, &b.Phone, &whatsapp, &b.PreferredContactMethod, &contactTime,
		&b.ServiceDescription, &bookingDate, &bookingTime, &timeOfDay, &notes, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid booking id %q: %w", id, err)
	}
	parsedConv, err := uuid.Parse(convID)
	if err != nil {
		return nil, fmt.Errorf("invalid conversation id %q: %w", convID, err)
	}
	b.ID = parsedID
	b.ConversationID = parsedConv
	b.WhatsApp = strVal(whatsapp)
	b.PreferredContactTime = models.TimeOfDay(strVal(contactTime))
	b.BookingDate = parseDateColumn(bookingDate)
	b.BookingTime = parseTimeColumn(bookingTime)
	b.TimeOfDay = models.TimeOfDay(strVal(timeOfDay))
	b.AdditionalNotes = strVal(notes)
	return &b, nil
}
