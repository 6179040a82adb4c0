// Package store provides storage backends for the salon booking service.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Connection pool tuning for the PostgreSQL backend.
const (
	pgMaxOpenConns    = 10
	pgMaxIdleConns    = 5
	pgConnMaxLifetime = time.Hour
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversations, messages and bookings in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(pgMaxOpenConns)
	db.SetMaxIdleConns(pgMaxIdleConns)
	db.SetConnMaxLifetime(pgConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied")

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// FindConversation looks up a conversation by platform identifiers.
func (s *PostgresStore) FindConversation(ctx context.Context, lookup ConversationLookup) (*models.Conversation, error) {
	var (
		where string
		args  []interface{}
	)
	switch lookup.Platform {
	case models.PlatformWhatsApp:
		where = "whatsapp_id = $1 OR phone_number = $2"
		args = []interface{}{lookup.WhatsAppID, lookup.PhoneNumber}
	case models.PlatformTelegram:
		where = "telegram_chat_id = $1 OR telegram_id = $2"
		args = []interface{}{lookup.TelegramChatID, lookup.TelegramID}
	case models.PlatformGeneric:
		where = "phone_number = $1"
		args = []interface{}{lookup.PhoneNumber}
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedPlatform, lookup.Platform)
	}

	query := "SELECT " + conversationColumns + " FROM conversations WHERE " + where + " ORDER BY created_at DESC LIMIT 1"
	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.FindConversation failed", "error", err, "platform", lookup.Platform)
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return conv, nil
}

// GetConversation fetches a conversation by ID.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := "SELECT " + conversationColumns + " FROM conversations WHERE id = $1"
	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("PostgresStore.GetConversation failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// CreateConversation inserts a new conversation row.
func (s *PostgresStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.State == "" {
		c.State = models.StateGreeting
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, phone_number, whatsapp_id, telegram_id, telegram_chat_id, state, is_complete, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID.String(), nilIfEmpty(c.PhoneNumber), nilIfEmpty(c.WhatsAppID), nilIfEmpty(c.TelegramID), nilIfEmpty(c.TelegramChatID),
		string(c.State), c.IsComplete, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.CreateConversation failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// UpdateConversation applies a partial update to a conversation.
func (s *PostgresStore) UpdateConversation(ctx context.Context, id uuid.UUID, upd ConversationUpdate) error {
	sets := []string{"updated_at = $1"}
	args := []interface{}{time.Now().UTC()}
	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	if upd.State != nil {
		add("state", string(*upd.State))
	}
	if upd.IsComplete != nil {
		add("is_complete", *upd.IsComplete)
	}
	if upd.PhoneNumber != nil {
		add("phone_number", nilIfEmpty(*upd.PhoneNumber))
	}
	if upd.WhatsAppID != nil {
		add("whatsapp_id", nilIfEmpty(*upd.WhatsAppID))
	}
	if upd.TelegramID != nil {
		add("telegram_id", nilIfEmpty(*upd.TelegramID))
	}
	if upd.TelegramChatID != nil {
		add("telegram_chat_id", nilIfEmpty(*upd.TelegramChatID))
	}
	args = append(args, id.String())

	query := fmt.Sprintf("UPDATE conversations SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore.UpdateConversation failed", "error", err, "id", id)
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrConversationNotFound
	}
	return nil
}

// AddMessage appends a message to a conversation's history.
func (s *PostgresStore) AddMessage(ctx context.Context, m *models.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.MessageType == "" {
		m.MessageType = models.MessageTypeText
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, content, message_type, sender_id, is_from_bot, platform, is_complete, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID.String(), m.ConversationID.String(), m.Content, string(m.MessageType), m.SenderID, m.IsFromBot, string(m.Platform), m.IsComplete, m.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore.AddMessage failed", "error", err, "conversation_id", m.ConversationID)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListOpenMessages returns the messages of the current booking cycle.
func (s *PostgresStore) ListOpenMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE conversation_id = $1 AND is_complete = FALSE ORDER BY created_at ASC"
	return s.queryMessages(ctx, query, conversationID.String())
}

// ListMessages returns all messages of a conversation.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC"
	return s.queryMessages(ctx, query, conversationID.String())
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore message query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("PostgresStore message scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// CloseMessages marks every message of a conversation as complete.
func (s *PostgresStore) CloseMessages(ctx context.Context, conversationID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET is_complete = TRUE WHERE conversation_id = $1`, conversationID.String())
	if err != nil {
		slog.Error("PostgresStore.CloseMessages failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to close messages: %w", err)
	}
	return nil
}

// CreateBooking inserts a booking after checking the conversation is still open.
func (s *PostgresStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	var isComplete bool
	err := s.db.QueryRowContext(ctx, `SELECT is_complete FROM conversations WHERE id = $1`, b.ConversationID.String()).Scan(&isComplete)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("PostgresStore.CreateBooking conversation check failed", "error", err, "conversation_id", b.ConversationID)
		return fmt.Errorf("failed to check conversation: %w", err)
	}
	if isComplete {
		return models.ErrConversationCompleted
	}

	now := time.Now().UTC()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = models.BookingStatusPending
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, conversation_id, client_name, phone, whatsapp, preferred_contact_method, preferred_contact_time,
		 service_description, booking_date, booking_time, time_of_day, additional_notes, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		b.ID.String(), b.ConversationID.String(), b.ClientName, b.Phone, nilIfEmpty(b.WhatsApp), string(b.PreferredContactMethod),
		nilIfEmpty(string(b.PreferredContactTime)), b.ServiceDescription, dateColumn(b.BookingDate), timeColumn(b.BookingTime),
		nilIfEmpty(string(b.TimeOfDay)), nilIfEmpty(b.AdditionalNotes), string(b.Status), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.CreateBooking failed", "error", err, "conversation_id", b.ConversationID)
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// GetBooking fetches a booking by ID.
func (s *PostgresStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM bookings WHERE id = $1"
	b, err := scanBooking(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		slog.Error("PostgresStore.GetBooking failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns all bookings, newest first.
func (s *PostgresStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM bookings ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("PostgresStore.ListBookings query failed", "error", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			slog.Error("PostgresStore.ListBookings scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking rows: %w", err)
	}
	return bookings, nil
}

// UpdateBookingStatus changes a booking's lifecycle status.
func (s *PostgresStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error {
	if !models.IsValidBookingStatus(status) {
		return models.ErrInvalidBookingStatus
	}
	res, err := s.db.ExecContext(ctx, `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id.String())
	if err != nil {
		slog.Error("PostgresStore.UpdateBookingStatus failed", "error", err, "id", id)
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}
