package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"payment-callbacks/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusWaiting   PaymentStatus = "waiting"   // created, waiting for the customer
	PaymentStatusPreauth   PaymentStatus = "preauth"   // authorized, not captured yet
	PaymentStatusConfirmed PaymentStatus = "confirmed" // funds captured
	PaymentStatusRejected  PaymentStatus = "rejected"  // declined or cancelled at the gateway
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusError     PaymentStatus = "error"
	PaymentStatusInput     PaymentStatus = "input" // waiting for more customer input
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusWaiting, PaymentStatusPreauth, PaymentStatusConfirmed, PaymentStatusRejected,
		PaymentStatusRefunded, PaymentStatusError, PaymentStatusInput:
		return true
	}
	return false
}

// Final reports whether no further gateway callback may move the payment.
func (s PaymentStatus) Final() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusRejected || s == PaymentStatusRefunded
}

type FraudStatus string

const (
	FraudStatusUnknown  FraudStatus = "unknown"
	FraudStatusAccepted FraudStatus = "accepted"
	FraudStatusRejected FraudStatus = "rejected"
	FraudStatusReview   FraudStatus = "review"
)

// Payment is a payment record created by the checkout flow. Callbacks only mutate it.
type Payment struct {
	ID             string          // UUID
	Token          string          // UUID, used in per-payment callback URLs
	Variant        string          // provider variant handling this payment
	Status         PaymentStatus   // see constants above
	FraudStatus    FraudStatus     // provider fraud verdict
	Description    string          // shown to the gateway
	Currency       string          // ISO 4217 code
	Total          decimal.Decimal // amount to charge
	CapturedAmount decimal.Decimal // amount captured so far
	TransactionID  string          // gateway-side id (ZarinPal authority, Stripe source id)
	Message        string          // last status message from the gateway
	ExtraData      map[string]any  // gateway specific payload (jsonb)
	SuccessURL     string
	FailureURL     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ChangeStatus moves the payment to status and records the gateway message.
func (p *Payment) ChangeStatus(status PaymentStatus, message string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	p.Status = status
	p.Message = message
	p.UpdatedAt = time.Now()
	return nil
}

// Capture marks the full total as captured.
func (p *Payment) Capture() {
	p.CapturedAmount = p.Total
	p.Status = PaymentStatusConfirmed
	p.Message = ""
	p.UpdatedAt = time.Now()
}

// MinorUnits returns Total in the currency's minor units (cents).
func (p *Payment) MinorUnits() int64 {
	if zeroDecimalCurrencies[p.Currency] {
		return p.Total.Round(0).IntPart()
	}
	return p.Total.Shift(2).Round(0).IntPart()
}

// SetExtra stores a gateway value under key.
func (p *Payment) SetExtra(key string, value any) {
	if p.ExtraData == nil {
		p.ExtraData = map[string]any{}
	}
	p.ExtraData[key] = value
}

var zeroDecimalCurrencies = map[string]bool{
	"IRR": true,
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
}
