package repository

import (
	"context"

	"payment-callbacks/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

// PaymentRepository is the payment store seen by callback dispatch. Lookups made with a
// transaction handle lock the row until the transaction ends.
type PaymentRepository interface {
	Create(ctx context.Context, tx Tx, p *model.Payment) error
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByToken(ctx context.Context, tx Tx, token string) (*model.Payment, error)
	// FindByTransactionID resolves a gateway-side id (authority, source id) to its payment.
	FindByTransactionID(ctx context.Context, tx Tx, transactionID string) (*model.Payment, error)
}
