package adapter

import (
	"context"

	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/repository"
)

// PaymentProvider is the port every payment gateway integration implements.
type PaymentProvider interface {
	// Name is the backend name, e.g. "zarinpal".
	Name() string

	// ProcessData verifies a callback and applies the resulting state transition to p.
	// It runs inside the dispatch transaction; writes must go through tx.
	ProcessData(ctx context.Context, tx repository.Tx, p *model.Payment, req *model.CallbackRequest) (*model.CallbackResponse, error)

	// TokenFromRequest recovers the payment token from a callback sent to a fixed
	// per-integration URL. p may be nil. An empty token with a nil error means none was found.
	TokenFromRequest(ctx context.Context, req *model.CallbackRequest, p *model.Payment) (string, error)
}

// EventProvider is implemented by gateways that push typed events which must be
// re-fetched from the gateway before they are trusted.
type EventProvider interface {
	PaymentProvider

	FetchEvent(ctx context.Context, eventID string) (*model.GatewayEvent, error)

	// EventTransactionID maps a fetched event to the gateway transaction id stored on
	// the payment. ok is false for event types the provider does not act on.
	EventTransactionID(ev *model.GatewayEvent) (id string, ok bool)

	HandleEvent(ctx context.Context, tx repository.Tx, p *model.Payment, ev *model.GatewayEvent) (*model.CallbackResponse, error)
}

// ProviderRegistry resolves a variant to its configured provider.
// Unknown variants fail with *domain.UnknownProviderError.
type ProviderRegistry interface {
	Get(variant string) (PaymentProvider, error)
}
