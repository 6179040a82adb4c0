package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/flow"
	"github.com/Inverseit/crm-whatsapp-service/internal/messaging"
	"github.com/Inverseit/crm-whatsapp-service/internal/models"
	"github.com/Inverseit/crm-whatsapp-service/internal/store"
	"github.com/google/uuid"
)

// stubProcessor records inbound messages and returns a canned reply.
type stubProcessor struct {
	received chan models.InboundMessage
	result   *flow.Result
	err      error
}

func newStubProcessor() *stubProcessor {
	return &stubProcessor{
		received: make(chan models.InboundMessage, 8),
		result:   &flow.Result{Reply: models.TextMessage("ответ"), To: "+77071234567", Platform: models.PlatformGeneric},
	}
}

func (p *stubProcessor) Process(ctx context.Context, in models.InboundMessage) (*flow.Result, error) {
	p.received <- in
	if p.err != nil {
		return nil, p.err
	}
	result := *p.result
	result.Platform = in.Platform
	return &result, nil
}

// stubStore serves the REST handlers from fixed data.
type stubStore struct {
	store.Store
	bookings      []models.Booking
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]models.Message
	statusUpdates map[uuid.UUID]models.BookingStatus
}

func newStubStore() *stubStore {
	return &stubStore{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]models.Message),
		statusUpdates: make(map[uuid.UUID]models.BookingStatus),
	}
}

func (s *stubStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	return s.bookings, nil
}

func (s *stubStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	for _, b := range s.bookings {
		if b.ID == id {
			bp := b
			return &bp, nil
		}
	}
	return nil, models.ErrBookingNotFound
}

func (s *stubStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error {
	if !models.IsValidBookingStatus(status) {
		return models.ErrInvalidBookingStatus
	}
	if _, err := s.GetBooking(ctx, id); err != nil {
		return err
	}
	s.statusUpdates[id] = status
	return nil
}

func (s *stubStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, ok := s.conversations[id]
	if !ok {
		return nil, models.ErrConversationNotFound
	}
	return c, nil
}

func (s *stubStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return s.messages[conversationID], nil
}

// stubVerifier accepts a single fixed token.
type stubVerifier struct{}

func (stubVerifier) VerifyToken(mode, token, challenge string) (string, error) {
	if mode == "subscribe" && token == "secret" {
		return challenge, nil
	}
	return "", models.ErrUnsupportedPlatform
}

func newTestServer(proc Processor, st store.Store) *Server {
	registry := messaging.NewRegistry()
	registry.Register(models.PlatformGeneric, messaging.NewConsoleService())
	return NewServer(proc, registry, st, stubVerifier{})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(newStubProcessor(), newStubStore())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("response status = %q", resp.Status)
	}
}

func TestWhatsAppWebhookVerification(t *testing.T) {
	srv := newTestServer(newStubProcessor(), newStubStore())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "42" {
		t.Errorf("verification failed: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong token status = %d", rec.Code)
	}
}

func TestWhatsAppWebhookDispatch(t *testing.T) {
	proc := newStubProcessor()
	srv := newTestServer(proc, newStubStore())

	body := `{"entry":[{"changes":[{"value":{
		"contacts":[{"profile":{"name":"Айгерим"},"wa_id":"77071234567"}],
		"messages":[{"from":"77071234567","type":"text","text":{"body":"Привет"}}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case in := <-proc.received:
		if in.Platform != models.PlatformWhatsApp || in.Content != "Привет" {
			t.Errorf("unexpected inbound: %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine never received the message")
	}
}

func TestWhatsAppWebhookTwilioForm(t *testing.T) {
	proc := newStubProcessor()
	srv := newTestServer(proc, newStubStore())

	form := "From=whatsapp%3A%2B77071234567&Body=%D0%9F%D1%80%D0%B8%D0%B2%D0%B5%D1%82"
	req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case in := <-proc.received:
		if in.PhoneNumber != "+77071234567" {
			t.Errorf("phone = %q", in.PhoneNumber)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine never received the message")
	}
}

func TestTelegramWebhookDispatch(t *testing.T) {
	proc := newStubProcessor()
	srv := newTestServer(proc, newStubStore())

	body := `{"update_id":1,"message":{"message_id":10,"from":{"id":42,"first_name":"Dana"},"chat":{"id":99},"text":"Привет"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	select {
	case in := <-proc.received:
		if in.Platform != models.PlatformTelegram || in.TelegramChatID != "99" {
			t.Errorf("unexpected inbound: %+v", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine never received the message")
	}
}

func TestGenericWebhookSynchronousReply(t *testing.T) {
	proc := newStubProcessor()
	srv := newTestServer(proc, newStubStore())

	body := `{"phone_number":"+77071234567","message":"Привет"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Status != "ok" || resp.Result == nil {
		t.Errorf("response = %+v", resp)
	}
}

func TestGenericWebhookValidation(t *testing.T) {
	srv := newTestServer(newStubProcessor(), newStubStore())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/message", strings.NewReader(`{"phone_number":"+77071234567"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing message status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/message", strings.NewReader(`{"platform":"fax","message":"hi"}`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad platform status = %d", rec.Code)
	}
}

func TestBookingEndpoints(t *testing.T) {
	st := newStubStore()
	booking := models.Booking{
		ID:                 uuid.New(),
		ConversationID:     uuid.New(),
		ClientName:         "Айгерим",
		Phone:              "+77071234567",
		ServiceDescription: "Маникюр",
		Status:             models.BookingStatusPending,
	}
	st.bookings = append(st.bookings, booking)
	srv := newTestServer(newStubProcessor(), st)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("list status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/"+booking.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing booking status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/bookings/"+booking.ID.String()+"/status", strings.NewReader(`{"status":"confirmed"}`))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status update = %d body = %s", rec.Code, rec.Body.String())
	}
	if st.statusUpdates[booking.ID] != models.BookingStatusConfirmed {
		t.Error("status update not applied")
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/bookings/"+booking.ID.String()+"/status", strings.NewReader(`{"status":"done"}`))
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status update = %d", rec.Code)
	}
}

func TestConversationMessagesEndpoint(t *testing.T) {
	st := newStubStore()
	convID := uuid.New()
	st.conversations[convID] = &models.Conversation{ID: convID, State: models.StateCollectingInfo}
	st.messages[convID] = []models.Message{
		{ID: uuid.New(), ConversationID: convID, Content: "Привет"},
		{ID: uuid.New(), ConversationID: convID, Content: "Здравствуйте!", IsFromBot: true},
	}
	srv := newTestServer(newStubProcessor(), st)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/"+convID.String()+"/messages", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status string           `json:"status"`
		Result []models.Message `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(resp.Result) != 2 {
		t.Errorf("got %d messages, want 2", len(resp.Result))
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/"+uuid.NewString()+"/messages", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation status = %d", rec.Code)
	}
}
