package repository

import (
	"context"

	"payment-callbacks/internal/domain/model"
)

// -----------------------------
// Callback deliveries
// -----------------------------

type CallbackDeliveryRepository interface {
	// Record appends one audited callback. It runs outside the dispatch transaction
	// so rolled back callbacks stay visible.
	Record(ctx context.Context, tx Tx, d *model.CallbackDelivery) error
}
