// Package store provides storage backends for the salon booking service.
//
// This file implements the SQLite-backed store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists conversations, messages and bookings in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path; missing parent directories are created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied")

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const conversationColumns = "id, phone_number, whatsapp_id, telegram_id, telegram_chat_id, state, is_complete, created_at, updated_at"

// FindConversation looks up a conversation by platform identifiers.
func (s *SQLiteStore) FindConversation(ctx context.Context, lookup ConversationLookup) (*models.Conversation, error) {
	var (
		where string
		args  []interface{}
	)
	switch lookup.Platform {
	case models.PlatformWhatsApp:
		where = "whatsapp_id = ? OR phone_number = ?"
		args = []interface{}{lookup.WhatsAppID, lookup.PhoneNumber}
	case models.PlatformTelegram:
		where = "telegram_chat_id = ? OR telegram_id = ?"
		args = []interface{}{lookup.TelegramChatID, lookup.TelegramID}
	case models.PlatformGeneric:
		where = "phone_number = ?"
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
		slog.Error("SQLiteStore.FindConversation failed", "error", err, "platform", lookup.Platform)
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return conv, nil
}

// GetConversation fetches a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := "SELECT " + conversationColumns + " FROM conversations WHERE id = ?"
	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore.GetConversation failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// CreateConversation inserts a new conversation row.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *models.Conversation) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), nilIfEmpty(c.PhoneNumber), nilIfEmpty(c.WhatsAppID), nilIfEmpty(c.TelegramID), nilIfEmpty(c.TelegramChatID),
		string(c.State), c.IsComplete, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.CreateConversation failed", "error", err, "id", c.ID)
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	slog.Debug("SQLiteStore.CreateConversation succeeded", "id", c.ID, "platform_keys", c.PhoneNumber != "" || c.TelegramChatID != "")
	return nil
}

// UpdateConversation applies a partial update to a conversation.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, id uuid.UUID, upd ConversationUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if upd.State != nil {
		sets = append(sets, "state = ?")
		args = append(args, string(*upd.State))
	}
	if upd.IsComplete != nil {
		sets = append(sets, "is_complete = ?")
		args = append(args, *upd.IsComplete)
	}
	if upd.PhoneNumber != nil {
		sets = append(sets, "phone_number = ?")
		args = append(args, nilIfEmpty(*upd.PhoneNumber))
	}
	if upd.WhatsAppID != nil {
		sets = append(sets, "whatsapp_id = ?")
		args = append(args, nilIfEmpty(*upd.WhatsAppID))
	}
	if upd.TelegramID != nil {
		sets = append(sets, "telegram_id = ?")
		args = append(args, nilIfEmpty(*upd.TelegramID))
	}
	if upd.TelegramChatID != nil {
		sets = append(sets, "telegram_chat_id = ?")
		args = append(args, nilIfEmpty(*upd.TelegramChatID))
	}
	args = append(args, id.String())

	query := "UPDATE conversations SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore.UpdateConversation failed", "error", err, "id", id)
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrConversationNotFound
	}
	return nil
}

const messageColumns = "id, conversation_id, content, message_type, sender_id, is_from_bot, platform, is_complete, created_at"

// AddMessage appends a message to a conversation's history.
func (s *SQLiteStore) AddMessage(ctx context.Context, m *models.Message) error {
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.ConversationID.String(), m.Content, string(m.MessageType), m.SenderID, m.IsFromBot, string(m.Platform), m.IsComplete, m.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore.AddMessage failed", "error", err, "conversation_id", m.ConversationID)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListOpenMessages returns the messages of the current booking cycle.
func (s *SQLiteStore) ListOpenMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE conversation_id = ? AND is_complete = 0 ORDER BY created_at ASC"
	return s.queryMessages(ctx, query, conversationID.String())
}

// ListMessages returns all messages of a conversation.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE conversation_id = ? ORDER BY created_at ASC"
	return s.queryMessages(ctx, query, conversationID.String())
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore message query failed", "error", err)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			slog.Error("SQLiteStore message scan failed", "error", err)
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
func (s *SQLiteStore) CloseMessages(ctx context.Context, conversationID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET is_complete = 1 WHERE conversation_id = ?`, conversationID.String())
	if err != nil {
		slog.Error("SQLiteStore.CloseMessages failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to close messages: %w", err)
	}
	return nil
}

// CreateBooking inserts a booking after checking the conversation is still open.
func (s *SQLiteStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	var isComplete bool
	err := s.db.QueryRowContext(ctx, `SELECT is_complete FROM conversations WHERE id = ?`, b.ConversationID.String()).Scan(&isComplete)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrConversationNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore.CreateBooking conversation check failed", "error", err, "conversation_id", b.ConversationID)
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
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.ConversationID.String(), b.ClientName, b.Phone, nilIfEmpty(b.WhatsApp), string(b.PreferredContactMethod),
		nilIfEmpty(string(b.PreferredContactTime)), b.ServiceDescription, dateColumn(b.BookingDate), timeColumn(b.BookingTime),
		nilIfEmpty(string(b.TimeOfDay)), nilIfEmpty(b.AdditionalNotes), string(b.Status), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.CreateBooking failed", "error", err, "conversation_id", b.ConversationID)
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	slog.Debug("SQLiteStore.CreateBooking succeeded", "id", b.ID, "conversation_id", b.ConversationID)
	return nil
}

const bookingColumns = "id, conversation_id, client_name, phone, whatsapp, preferred_contact_method, preferred_contact_time, " +
	"service_description, booking_date, booking_time, time_of_day, additional_notes, status, created_at, updated_at"

// GetBooking fetches a booking by ID.
func (s *SQLiteStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM bookings WHERE id = ?"
	b, err := scanBooking(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore.GetBooking failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns all bookings, newest first.
func (s *SQLiteStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	query := "SELECT " + bookingColumns + " FROM bookings ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("SQLiteStore.ListBookings query failed", "error", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			slog.Error("SQLiteStore.ListBookings scan failed", "error", err)
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
func (s *SQLiteStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error {
	if !models.IsValidBookingStatus(status) {
		return models.ErrInvalidBookingStatus
	}
	res, err := s.db.ExecContext(ctx, `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id.String())
	if err != nil {
		slog.Error("SQLiteStore.UpdateBookingStatus failed", "error", err, "id", id)
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}
