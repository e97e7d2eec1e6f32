//go:build !integration

package model

import (
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"payment-callbacks/internal/domain"
)

// --- Payment Model Tests ---

func TestPayment_ChangeStatus(t *testing.T) {
	t.Run("should set status and message", func(t *testing.T) {
		p := &Payment{Status: PaymentStatusWaiting}
		if err := p.ChangeStatus(PaymentStatusRejected, "declined"); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p.Status != PaymentStatusRejected || p.Message != "declined" {
			t.Errorf("unexpected payment state %s %q", p.Status, p.Message)
		}
		if p.UpdatedAt.IsZero() {
			t.Error("expected UpdatedAt to be set")
		}
	})

	t.Run("should refuse unknown statuses", func(t *testing.T) {
		p := &Payment{Status: PaymentStatusWaiting}
		err := p.ChangeStatus("paid", "")
		if !errors.Is(err, domain.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus, got %v", err)
		}
		if p.Status != PaymentStatusWaiting {
			t.Errorf("expected status unchanged, got %s", p.Status)
		}
	})
}

func TestPayment_Capture(t *testing.T) {
	p := &Payment{Status: PaymentStatusPreauth, Total: decimal.RequireFromString("9.99"), Message: "pending"}
	p.Capture()
	if p.Status != PaymentStatusConfirmed || !p.CapturedAmount.Equal(p.Total) || p.Message != "" {
		t.Errorf("unexpected payment after capture: %+v", p)
	}
}

func TestPayment_MinorUnits(t *testing.T) {
	tests := []struct {
		currency string
		total    string
		want     int64
	}{
		{"USD", "12.50", 1250},
		{"EUR", "0.015", 2},
		{"IRR", "150000", 150000},
		{"JPY", "500", 500},
	}
	for _, tt := range tests {
		p := &Payment{Currency: tt.currency, Total: decimal.RequireFromString(tt.total)}
		if got := p.MinorUnits(); got != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.currency, tt.total, tt.want, got)
		}
	}
}

func TestPaymentStatus_Final(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentStatusConfirmed, PaymentStatusRejected, PaymentStatusRefunded} {
		if !s.Final() {
			t.Errorf("expected %s to be final", s)
		}
	}
	for _, s := range []PaymentStatus{PaymentStatusWaiting, PaymentStatusPreauth, PaymentStatusInput, PaymentStatusError} {
		if s.Final() {
			t.Errorf("expected %s not to be final", s)
		}
	}
}

// --- Callback Request Tests ---

func TestCallbackRequest_Form(t *testing.T) {
	r := &CallbackRequest{
		Query:  map[string][]string{"status": {"waiting"}, "token": {"t-1"}},
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded; charset=utf-8"}},
		Body:   []byte("status=confirmed"),
	}
	f := r.Form()
	if f.Get("status") != "confirmed" {
		t.Errorf("expected body value to win, got %q", f.Get("status"))
	}
	if f.Get("token") != "t-1" {
		t.Errorf("expected query value, got %q", f.Get("token"))
	}
}

func TestCallbackRequest_Value(t *testing.T) {
	r := &CallbackRequest{
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"token":"t-2","amount":10}`),
	}
	if got := r.Value("token"); got != "t-2" {
		t.Errorf("expected json string field, got %q", got)
	}
	if got := r.Value("amount"); got != "" {
		t.Errorf("expected non-string field to be ignored, got %q", got)
	}
	if got := (&CallbackRequest{Body: []byte(`{"token":"x"}`)}).Value("token"); got != "" {
		t.Errorf("expected json body without content type to be ignored, got %q", got)
	}
}

func TestResponses(t *testing.T) {
	if r := RedirectResponse("https://shop/ok"); r.StatusCode != http.StatusFound || r.Header.Get("Location") != "https://shop/ok" {
		t.Errorf("unexpected redirect %+v", r)
	}
	if r := JSONResponse(http.StatusOK, map[string]string{"status": "ok"}); string(r.Body) != `{"status":"ok"}` {
		t.Errorf("unexpected json body %s", r.Body)
	}
	if r := TextResponse(http.StatusNotFound, "No such payment"); r.Header.Get("Content-Type") == "" {
		t.Error("expected a content type")
	}
}
