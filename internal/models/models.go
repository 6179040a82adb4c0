// Package models defines the core data structures for the salon booking service.
//
// It includes conversations, messages, bookings and the enums persisted with
// them, which are shared across modules.
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Platform identifies the messaging channel a conversation runs on.
type Platform string

const (
	// PlatformWhatsApp identifies the WhatsApp Business channel.
	PlatformWhatsApp Platform = "whatsapp"
	// PlatformTelegram identifies the Telegram bot channel.
	PlatformTelegram Platform = "telegram"
	// PlatformGeneric identifies the generic webhook channel.
	PlatformGeneric Platform = "generic"
)

// IsValidPlatform checks if the given platform is supported.
func IsValidPlatform(p Platform) bool {
	switch p {
	case PlatformWhatsApp, PlatformTelegram, PlatformGeneric:
		return true
	default:
		return false
	}
}

// ConversationState represents where a conversation is in the booking dialogue.
type ConversationState string

const (
	// StateGreeting is the initial state before the bot has said anything.
	StateGreeting ConversationState = "greeting"
	// StateCollectingInfo is the state in which the LLM gathers booking details.
	StateCollectingInfo ConversationState = "collecting_info"
	// StateConfirming is a legacy state kept for rows written by an older
	// variant of the dialogue; it is handled like StateCollectingInfo.
	StateConfirming ConversationState = "confirming"
	// StateCompleted means a booking has been finalized for this conversation.
	StateCompleted ConversationState = "completed"
)

// IsValidConversationState checks if the given state is a known enum value.
func IsValidConversationState(s ConversationState) bool {
	switch s {
	case StateGreeting, StateCollectingInfo, StateConfirming, StateCompleted:
		return true
	default:
		return false
	}
}

// BookingStatus represents the lifecycle status of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsValidBookingStatus checks if the given booking status is a known enum value.
func IsValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	default:
		return false
	}
}

// TimeOfDay represents a coarse time-of-day preference.
type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
)

// ParseTimeOfDay converts a raw string into a TimeOfDay enum value.
// The second return value reports whether the input was a known value.
func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	switch TimeOfDay(s) {
	case TimeOfDayMorning, TimeOfDayAfternoon, TimeOfDayEvening:
		return TimeOfDay(s), true
	default:
		return "", false
	}
}

// ContactMethod represents how the salon should reach the client.
type ContactMethod string

const (
	ContactMethodPhoneCall ContactMethod = "phone_call"
	ContactMethodWhatsApp  ContactMethod = "whatsapp_message"
	ContactMethodTelegram  ContactMethod = "telegram_message"
)

// ParseContactMethod converts a raw string into a ContactMethod enum value.
func ParseContactMethod(s string) (ContactMethod, bool) {
	switch ContactMethod(s) {
	case ContactMethodPhoneCall, ContactMethodWhatsApp, ContactMethodTelegram:
		return ContactMethod(s), true
	default:
		return "", false
	}
}

// MessageType represents the content type of an inbound message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeDocument MessageType = "document"
	MessageTypeLocation MessageType = "location"
)

// Error variables for better error handling and testability
var (
	ErrInvalidPhoneNumber        = errors.New("invalid phone number")
	ErrMissingClientName         = errors.New("client name is required")
	ErrMissingServiceDescription = errors.New("service description is required")
	ErrMissingContactMethod      = errors.New("preferred contact method is required")
	ErrUnsupportedPlatform       = errors.New("unsupported platform")
	ErrConversationNotFound      = errors.New("conversation not found")
	ErrConversationCompleted     = errors.New("conversation already completed")
	ErrBookingNotFound           = errors.New("booking not found")
	ErrInvalidBookingStatus      = errors.New("invalid booking status")
)

// Conversation ties a client on one platform to a message history and at most
// one in-flight booking dialogue.
type Conversation struct {
	ID             uuid.UUID         `json:"id"`
	PhoneNumber    string            `json:"phone_number,omitempty"`
	WhatsAppID     string            `json:"whatsapp_id,omitempty"`
	TelegramID     string            `json:"telegram_id,omitempty"`
	TelegramChatID string            `json:"telegram_chat_id,omitempty"`
	State          ConversationState `json:"state"`
	IsComplete     bool              `json:"is_complete"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// EffectiveState maps legacy enum values onto the states the engine handles.
func (c *Conversation) EffectiveState() ConversationState {
	if c.State == StateConfirming {
		return StateCollectingInfo
	}
	return c.State
}

// Message is a single utterance in a conversation. Messages with IsComplete
// set belong to an already finalized booking cycle and are excluded from the
// history sent to the LLM.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type"`
	SenderID       string      `json:"sender_id"`
	IsFromBot      bool        `json:"is_from_bot"`
	Platform       Platform    `json:"platform"`
	IsComplete     bool        `json:"is_complete"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Booking is the fully typed appointment request assembled from an extraction.
type Booking struct {
	ID                     uuid.UUID     `json:"id"`
	ConversationID         uuid.UUID     `json:"conversation_id"`
	ClientName             string        `json:"client_name"`
	Phone                  string        `json:"phone"`
	WhatsApp               string        `json:"whatsapp,omitempty"`
	PreferredContactMethod ContactMethod `json:"preferred_contact_method"`
	PreferredContactTime   TimeOfDay     `json:"preferred_contact_time,omitempty"`
	ServiceDescription     string        `json:"service_description"`
	BookingDate            *time.Time    `json:"booking_date,omitempty"`
	BookingTime            *time.Time    `json:"booking_time,omitempty"`
	TimeOfDay              TimeOfDay     `json:"time_of_day,omitempty"`
	AdditionalNotes        string        `json:"additional_notes,omitempty"`
	Status                 BookingStatus `json:"status"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// BookingArgs is the advisory record produced by the collect_booking_info
// function call. All fields arrive as loosely validated strings; the assembler
// is responsible for coercing them into a Booking.
type BookingArgs struct {
	ClientName             string `json:"client_name"`
	Phone                  string `json:"phone"`
	UsePhoneForWhatsApp    *bool  `json:"use_phone_for_whatsapp,omitempty"`
	WhatsApp               string `json:"whatsapp,omitempty"`
	PreferredContactMethod string `json:"preferred_contact_method"`
	PreferredContactTime   string `json:"preferred_contact_time,omitempty"`
	ServiceDescription     string `json:"service_description"`
	BookingDate            string `json:"booking_date,omitempty"`
	BookingTime            string `json:"booking_time,omitempty"`
	TimeOfDay              string `json:"time_of_day,omitempty"`
	AdditionalNotes        string `json:"additional_notes,omitempty"`
}

// InboundMessage is the normalized payload every webhook parser produces.
type InboundMessage struct {
	Platform       Platform    `json:"platform"`
	PhoneNumber    string      `json:"phone_number,omitempty"`
	WhatsAppID     string      `json:"whatsapp_id,omitempty"`
	ProfileName    string      `json:"profile_name,omitempty"`
	TelegramID     string      `json:"telegram_id,omitempty"`
	TelegramChatID string      `json:"telegram_chat_id,omitempty"`
	FirstName      string      `json:"first_name,omitempty"`
	LastName       string      `json:"last_name,omitempty"`
	Username       string      `json:"username,omitempty"`
	Content        string      `json:"message"`
	MessageType    MessageType `json:"message_type,omitempty"`
	Timestamp      time.Time   `json:"timestamp,omitempty"`
}

// OutboundType discriminates the delivery payload union.
type OutboundType string

const (
	// OutboundText delivers a plain text body.
	OutboundText OutboundType = "text"
	// OutboundTemplate delivers a pre-approved template by name.
	OutboundTemplate OutboundType = "template"
)

// Outbound is the message handed to a platform transport for delivery.
// Exactly one of Text or TemplateName is meaningful, selected by Type.
type Outbound struct {
	Type         OutboundType      `json:"type"`
	Text         string            `json:"text,omitempty"`
	TemplateName string            `json:"template_name,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
}

// TextMessage builds a plain text outbound message.
func TextMessage(text string) Outbound {
	return Outbound{Type: OutboundText, Text: text}
}

// TemplateMessage builds a template outbound message.
func TemplateMessage(name string, data map[string]string) Outbound {
	return Outbound{Type: OutboundTemplate, TemplateName: name, TemplateData: data}
}

// BookingNotification is the payload sent to downstream consumers when a
// booking is finalized. Dates and times are pre-formatted strings so consumers
// do not need to agree on a time encoding.
type BookingNotification struct {
	BookingID              string `json:"booking_id"`
	ConversationID         string `json:"conversation_id"`
	ClientName             string `json:"client_name"`
	Phone                  string `json:"phone_number"`
	WhatsApp               string `json:"whatsapp,omitempty"`
	PreferredContactMethod string `json:"preferred_contact_method"`
	PreferredContactTime   string `json:"preferred_contact_time,omitempty"`
	ServiceDescription     string `json:"service_description"`
	BookingDate            string `json:"booking_date,omitempty"`
	BookingTime            string `json:"booking_time,omitempty"`
	TimeOfDay              string `json:"time_of_day,omitempty"`
	AdditionalNotes        string `json:"additional_notes,omitempty"`
	Platform               string `json:"platform"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
