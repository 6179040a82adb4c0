// Package store provides storage backends for the salon booking service.
//
// It persists conversations, their message histories and finalized bookings.
// Two backends are supported: SQLite for single-node deployments and
// PostgreSQL for shared ones. Both run their schema migrations on startup.
package store

import (
	"context"
	"strings"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/google/uuid"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database DSN.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports which backend a DSN belongs to: "postgres" for
// PostgreSQL URLs and key/value DSNs, "sqlite" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// ConversationLookup carries the identifiers used to find an existing
// conversation for an inbound message. Empty fields are ignored.
type ConversationLookup struct {
	Platform       models.Platform
	PhoneNumber    string
	WhatsAppID     string
	TelegramID     string
	TelegramChatID string
}

// ConversationUpdate is a partial update of a conversation row. Nil fields
// are left untouched.
type ConversationUpdate struct {
	State          *models.ConversationState
	IsComplete     *bool
	PhoneNumber    *string
	WhatsAppID     *string
	TelegramID     *string
	TelegramChatID *string
}

// Store defines the persistence operations the conversation engine and the
// API surface depend on.
type Store interface {
	// FindConversation looks up a conversation by platform identifiers.
	// Returns (nil, nil) when no conversation matches.
	FindConversation(ctx context.Context, lookup ConversationLookup) (*models.Conversation, error)

	// GetConversation fetches a conversation by ID.
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// CreateConversation inserts a new conversation row.
	CreateConversation(ctx context.Context, c *models.Conversation) error

	// UpdateConversation applies a partial update to a conversation.
	UpdateConversation(ctx context.Context, id uuid.UUID, upd ConversationUpdate) error

	// AddMessage appends a message to a conversation's history.
	AddMessage(ctx context.Context, m *models.Message) error

	// ListOpenMessages returns the messages of the current booking cycle in
	// chronological order.
	ListOpenMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	// ListMessages returns all messages of a conversation in chronological order.
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	// CloseMessages marks every message of a conversation as belonging to a
	// finalized booking cycle.
	CloseMessages(ctx context.Context, conversationID uuid.UUID) error

	// CreateBooking inserts a booking. It refuses bookings for conversations
	// already marked complete.
	CreateBooking(ctx context.Context, b *models.Booking) error

	// GetBooking fetches a booking by ID.
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)

	// ListBookings returns all bookings, newest first.
	ListBookings(ctx context.Context) ([]models.Booking, error)

	// UpdateBookingStatus changes a booking's lifecycle status.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error

	// Close releases database resources.
	Close() error
}
