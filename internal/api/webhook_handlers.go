// Package api provides webhook handlers feeding the conversation engine.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Inverseit/crm-whatsapp-service/internal/messaging"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxWebhookBodySize caps webhook payloads at 1 MiB.
const maxWebhookBodySize = 1 << 20

// whatsappWebhookHandler serves the WhatsApp webhook. GET handles the Cloud
// API verification handshake; POST accepts both Cloud JSON payloads and
// Twilio form posts, detected by content type.
func (s *Server) whatsappWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.verifyWhatsAppWebhook(w, r)
	case http.MethodPost:
		s.receiveWhatsAppWebhook(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) verifyWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil {
		slog.Warn("Server.verifyWhatsAppWebhook: no verifier configured")
		w.WriteHeader(http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	challenge, err := s.verifier.VerifyToken(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if err != nil {
		slog.Warn("Server.verifyWhatsAppWebhook: verification rejected", "error", err)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	slog.Info("Server.verifyWhatsAppWebhook: webhook verified")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(challenge)); err != nil {
		slog.Error("Server.verifyWhatsAppWebhook: failed to write challenge", "error", err)
	}
}

func (s *Server) receiveWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			slog.Warn("Server.receiveWhatsAppWebhook: failed to parse form", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		in, err := messaging.ParseTwilioWebhook(r.PostForm)
		if err != nil {
			slog.Warn("Server.receiveWhatsAppWebhook: invalid twilio payload", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		go s.dispatch(in)
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := readBody(r)
	if err != nil {
		slog.Warn("Server.receiveWhatsAppWebhook: failed to read body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	msgs, err := messaging.ParseCloudWebhook(body)
	if err != nil {
		slog.Warn("Server.receiveWhatsAppWebhook: invalid cloud payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	for _, in := range msgs {
		go s.dispatch(in)
	}
	// Meta retries deliveries that are not acked promptly, so always 200.
	w.WriteHeader(http.StatusOK)
}

// telegramWebhookHandler accepts Telegram bot updates.
func (s *Server) telegramWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Warn("Server.telegramWebhookHandler: failed to decode update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	in, ok := messaging.ParseTelegramUpdate(update)
	if !ok {
		slog.Debug("Server.telegramWebhookHandler: update carries no message", "updateID", update.UpdateID)
		w.WriteHeader(http.StatusOK)
		return
	}
	go s.dispatch(in)
	w.WriteHeader(http.StatusOK)
}

// genericWebhookHandler accepts a normalized inbound message and returns the
// engine's reply synchronously, for channels without their own transport.
func (s *Server) genericWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in models.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		slog.Warn("Server.genericWebhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if in.Platform == "" {
		in.Platform = models.PlatformGeneric
	}
	if !models.IsValidPlatform(in.Platform) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unsupported platform"))
		return
	}
	if in.Content == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: message"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), webhookProcessTimeout)
	defer cancel()
	result, err := s.engine.Process(ctx, in)
	if err != nil {
		slog.Error("Server.genericWebhookHandler: processing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	if svc, svcErr := s.registry.Get(result.Platform); svcErr == nil {
		if sendErr := svc.Send(ctx, result.To, result.Reply); sendErr != nil {
			slog.Warn("Server.genericWebhookHandler: transport delivery failed", "error", sendErr)
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result.Reply))
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
}
