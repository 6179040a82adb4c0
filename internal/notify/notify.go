// Package notify delivers booking notifications to the salon CRM backend.
//
// The backend expects a JWT login followed by a notification create call.
// Delivery is best-effort: the finalizer logs failures and moves on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
)

// notificationType is the backend's enum value for booking notifications.
const notificationType = 2

// Opts holds configuration options for the CRM notifier.
type Opts struct {
	BaseURL    string
	Email      string
	Password   string
	HTTPClient *http.Client
}

// Option defines a configuration option for the CRM notifier.
type Option func(*Opts)

// WithHTTPClient overrides the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = c
	}
}

// Client notifies the CRM backend about finalized bookings.
type Client struct {
	baseURL  string
	email    string
	password string
	client   *http.Client
}

// NewClient creates a CRM notifier for the given backend.
func NewClient(baseURL, email, password string, opts ...Option) (*Client, error) {
	if baseURL == "" || email == "" || password == "" {
		return nil, fmt.Errorf("backend credentials missing")
	}
	cfg := Opts{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		client:   cfg.HTTPClient,
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access string `json:"access"`
}

type createRequest struct {
	Type                  int                        `json:"type"`
	Message               string                     `json:"message"`
	Link                  string                     `json:"link"`
	AdditionalInformation models.BookingNotification `json:"additional_information"`
}

// NotifyBookingCreated logs in to the backend and creates a notification for
// the booking.
func (c *Client) NotifyBookingCreated(ctx context.Context, n models.BookingNotification) error {
	token, err := c.login(ctx)
	if err != nil {
		return err
	}

	payload := createRequest{
		Type:                  notificationType,
		Message:               "whatsapp",
		Link:                  "",
		AdditionalInformation: n,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notification/create/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("Client.NotifyBookingCreated: backend rejected notification", "status", resp.StatusCode, "body", string(raw))
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}
	slog.Info("Client.NotifyBookingCreated: notification delivered", "booking_id", n.BookingID)
	return nil
}

// login authenticates against the backend and returns an access token.
// Tokens are short-lived so each notification performs a fresh login.
func (c *Client) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Email: c.email, Password: c.password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to log in to backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("backend login returned status %d", resp.StatusCode)
	}
	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if login.Access == "" {
		return "", fmt.Errorf("backend login returned no access token")
	}
	return login.Access, nil
}
