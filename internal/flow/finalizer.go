package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/Inverseit/crm-whatsapp-service/internal/store"
)

// notifyTimeout bounds each best-effort notification dispatch.
const notifyTimeout = 10 * time.Second

// Notifier delivers a booking-created notification to a downstream consumer.
// Delivery is best-effort: failures are logged and never affect the booking.
type Notifier interface {
	NotifyBookingCreated(ctx context.Context, n models.BookingNotification) error
}

// Finalizer persists a booking and closes out the conversation cycle.
type Finalizer struct {
	st        store.Store
	notifiers []Notifier
}

// NewFinalizer creates a Finalizer dispatching to the given notifiers.
func NewFinalizer(st store.Store, notifiers ...Notifier) *Finalizer {
	return &Finalizer{st: st, notifiers: notifiers}
}

// Finalize saves the booking, marks the conversation completed and closes its
// message window. Notifications are dispatched asynchronously afterwards.
// If saving fails, the conversation is left untouched so the client can retry.
func (f *Finalizer) Finalize(ctx context.Context, conv *models.Conversation, booking *models.Booking, platform models.Platform) error {
	if err := f.st.CreateBooking(ctx, booking); err != nil {
		slog.Error("Finalizer.Finalize: failed to save booking", "error", err, "conversation_id", conv.ID)
		return fmt.Errorf("failed to save booking: %w", err)
	}

	state := models.StateCompleted
	complete := true
	if err := f.st.UpdateConversation(ctx, conv.ID, store.ConversationUpdate{State: &state, IsComplete: &complete}); err != nil {
		slog.Error("Finalizer.Finalize: failed to mark conversation complete", "error", err, "conversation_id", conv.ID)
		return fmt.Errorf("failed to complete conversation: %w", err)
	}
	conv.State = state
	conv.IsComplete = true

	// The booking is already durable at this point; a failed window close is
	// logged but not surfaced to the client.
	if err := f.st.CloseMessages(ctx, conv.ID); err != nil {
		slog.Error("Finalizer.Finalize: failed to close message window", "error", err, "conversation_id", conv.ID)
	}

	notification := buildNotification(booking, platform)
	for _, n := range f.notifiers {
		go func(n Notifier) {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := n.NotifyBookingCreated(nctx, notification); err != nil {
				slog.Warn("Finalizer.Finalize: notification delivery failed", "error", err, "booking_id", booking.ID)
			}
		}(n)
	}

	slog.Info("Finalizer.Finalize: booking finalized", "booking_id", booking.ID, "conversation_id", conv.ID, "platform", platform)
	return nil
}

func buildNotification(b *models.Booking, platform models.Platform) models.BookingNotification {
	n := models.BookingNotification{
		BookingID:              b.ID.String(),
		ConversationID:         b.ConversationID.String(),
		ClientName:             b.ClientName,
		Phone:                  b.Phone,
		WhatsApp:               b.WhatsApp,
		PreferredContactMethod: string(b.PreferredContactMethod),
		PreferredContactTime:   string(b.PreferredContactTime),
		ServiceDescription:     b.ServiceDescription,
		TimeOfDay:              string(b.TimeOfDay),
		AdditionalNotes:        b.AdditionalNotes,
		Platform:               string(platform),
	}
	if b.BookingDate != nil {
		n.BookingDate = b.BookingDate.Format("2006-01-02")
	}
	if b.BookingTime != nil {
		n.BookingTime = b.BookingTime.Format("15:04")
	}
	return n
}
