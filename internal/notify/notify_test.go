package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Inverseit/crm-whatsapp-service/internal/models"
)

func testNotification() models.BookingNotification {
	return models.BookingNotification{
		BookingID:              "b1",
		ClientName:             "Айгерим",
		Phone:                  "+77071234567",
		PreferredContactMethod: "whatsapp_message",
		ServiceDescription:     "Маникюр",
		Platform:               "whatsapp",
	}
}

func TestNotifyBookingCreated(t *testing.T) {
	var loginBody loginRequest
	var createBody createRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/":
			if err := json.NewDecoder(r.Body).Decode(&loginBody); err != nil {
				t.Errorf("bad login body: %v", err)
			}
			json.NewEncoder(w).Encode(loginResponse{Access: "jwt-token"})
		case "/notification/create/":
			gotAuth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&createBody); err != nil {
				t.Errorf("bad create body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "admin@salon.kz", "secret")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := c.NotifyBookingCreated(context.Background(), testNotification()); err != nil {
		t.Fatalf("NotifyBookingCreated failed: %v", err)
	}

	if loginBody.Email != "admin@salon.kz" || loginBody.Password != "secret" {
		t.Errorf("login payload wrong: %+v", loginBody)
	}
	if gotAuth != "Bearer jwt-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if createBody.Type != notificationType || createBody.Message != "whatsapp" {
		t.Errorf("create payload wrong: %+v", createBody)
	}
	if createBody.AdditionalInformation.ClientName != "Айгерим" {
		t.Errorf("additional information wrong: %+v", createBody.AdditionalInformation)
	}
}

func TestNotifyBookingCreatedLoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "admin@salon.kz", "wrong")
	if err := c.NotifyBookingCreated(context.Background(), testNotification()); err == nil {
		t.Fatal("expected error when login fails")
	}
}

func TestNotifyBookingCreatedRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/" {
			json.NewEncoder(w).Encode(loginResponse{Access: "jwt"})
			return
		}
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "admin@salon.kz", "secret")
	if err := c.NotifyBookingCreated(context.Background(), testNotification()); err == nil {
		t.Fatal("expected error when backend rejects the notification")
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "a@b.c", "pw"); err == nil {
		t.Error("empty base URL should fail")
	}
	if _, err := NewClient("http://x", "", "pw"); err == nil {
		t.Error("empty email should fail")
	}
}
