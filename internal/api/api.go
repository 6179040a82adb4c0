// Package api provides the HTTP surface of the salon booking service.
//
// It exposes the platform webhooks that feed the conversation engine and a
// small REST API for inspecting conversations and managing bookings.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/flow"
	"github.com/Inverseit/crm-whatsapp-service/internal/messaging"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/Inverseit/crm-whatsapp-service/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// webhookProcessTimeout bounds the background processing of one webhook.
const webhookProcessTimeout = 60 * time.Second

// Processor handles one inbound message and returns the reply to deliver.
type Processor interface {
	Process(ctx context.Context, in models.InboundMessage) (*flow.Result, error)
}

// WebhookVerifier handles the WhatsApp Cloud API verification handshake.
type WebhookVerifier interface {
	VerifyToken(mode, token, challenge string) (string, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server routes webhooks into the engine and serves the booking REST API.
type Server struct {
	addr       string
	engine     Processor
	registry   *messaging.Registry
	st         store.Store
	verifier   WebhookVerifier
	httpServer *http.Server
}

// NewServer creates an API server. The verifier may be nil when the WhatsApp
// Cloud channel is not configured.
func NewServer(engine Processor, registry *messaging.Registry, st store.Store, verifier WebhookVerifier, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		addr:     cfg.Addr,
		engine:   engine,
		registry: registry,
		st:       st,
		verifier: verifier,
	}
	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: s.routes()}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/whatsapp", s.whatsappWebhookHandler)
	mux.HandleFunc("/webhooks/telegram", s.telegramWebhookHandler)
	mux.HandleFunc("/webhooks/message", s.genericWebhookHandler)
	mux.HandleFunc("/bookings", s.bookingsHandler)
	mux.HandleFunc("/bookings/", s.bookingHandler)
	mux.HandleFunc("/conversations/", s.conversationHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	slog.Info("Server.Run: API server starting", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Server.Shutdown: API server stopping")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the route handler, used in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// dispatch processes an inbound message and delivers the reply through the
// platform transport. It runs in the background after the webhook was acked.
func (s *Server) dispatch(in models.InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	result, err := s.engine.Process(ctx, in)
	if err != nil {
		slog.Error("Server.dispatch: processing failed", "error", err, "platform", in.Platform)
		return
	}
	svc, err := s.registry.Get(result.Platform)
	if err != nil {
		slog.Error("Server.dispatch: no transport for platform", "error", err, "platform", result.Platform)
		return
	}
	if err := svc.Send(ctx, result.To, result.Reply); err != nil {
		slog.Error("Server.dispatch: reply delivery failed", "error", err, "to", result.To, "platform", result.Platform)
	}
}
