// Package api provides booking and conversation management handlers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/google/uuid"
)

// bookingsHandler handles GET /bookings.
func (s *Server) bookingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	bookings, err := s.st.ListBookings(r.Context())
	if err != nil {
		slog.Error("Server.bookingsHandler: failed to list bookings", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list bookings"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(bookings))
}

// bookingHandler handles GET /bookings/{id} and PUT /bookings/{id}/status.
func (s *Server) bookingHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	rest := strings.TrimPrefix(r.URL.Path, "/bookings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid booking ID"))
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getBooking(w, r, id)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPut:
		s.updateBookingStatus(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) getBooking(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	booking, err := s.st.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrBookingNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Booking not found"))
			return
		}
		slog.Error("Server.getBooking: failed to fetch booking", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch booking"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(booking))
}

type statusUpdateRequest struct {
	Status models.BookingStatus `json:"status"`
}

func (s *Server) updateBookingStatus(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.updateBookingStatus: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := s.st.UpdateBookingStatus(r.Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidBookingStatus):
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid booking status"))
		case errors.Is(err, models.ErrBookingNotFound):
			writeJSONResponse(w, http.StatusNotFound, models.Error("Booking not found"))
		default:
			slog.Error("Server.updateBookingStatus: update failed", "error", err, "id", id)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update booking status"))
		}
		return
	}
	slog.Info("Server.updateBookingStatus: status updated", "id", id, "status", req.Status)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Booking status updated", nil))
}

// conversationHandler handles GET /conversations/{id}/messages.
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/conversations/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "messages" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid conversation ID"))
		return
	}

	if _, err := s.st.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("Server.conversationHandler: failed to fetch conversation", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch conversation"))
		return
	}
	messages, err := s.st.ListMessages(r.Context(), id)
	if err != nil {
		slog.Error("Server.conversationHandler: failed to list messages", "error", err, "id", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list messages"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(messages))
}
