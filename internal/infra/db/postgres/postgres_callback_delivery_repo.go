package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/repository"
)

var _ repository.CallbackDeliveryRepository = (*callbackDeliveryRepo)(nil)

type callbackDeliveryRepo struct {
	pool *pgxpool.Pool
}

func NewCallbackDeliveryRepo(pool *pgxpool.Pool) *callbackDeliveryRepo {
	return &callbackDeliveryRepo{pool: pool}
}

func (r *callbackDeliveryRepo) Record(ctx context.Context, tx repository.Tx, d *model.CallbackDelivery) error {
	const q = `
INSERT INTO callback_deliveries (id, route, variant, token, status_code, error, duration_ms, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = time.Now()
	}
	if d.ID == "" {
		// ULIDs sort by receive time.
		d.ID = ulid.MustNew(ulid.Timestamp(d.ReceivedAt), ulid.DefaultEntropy()).String()
	}
	_, err := execSQL(ctx, r.pool, tx, q, d.ID, d.Route, d.Variant, d.Token, d.StatusCode, d.Error, d.Duration.Milliseconds(), d.ReceivedAt)
	return mapExecErr(err)
}
