package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"payment-callbacks/internal/domain"
	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id, token, variant, status, fraud_status, description, currency, total, captured_amount, transaction_id, message, extra_data, success_url, failure_url, created_at, updated_at`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);`

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Token, p.Variant, p.Status, p.FraudStatus, p.Description, p.Currency, p.Total, p.CapturedAmount,
		p.TransactionID, p.Message, extraData(p), p.SuccessURL, p.FailureURL, p.CreatedAt, p.UpdatedAt)
	return mapExecErr(err)
}

// Save persists the mutable fields a callback may change.
func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
UPDATE payments SET
  status=$2, fraud_status=$3, captured_amount=$4, transaction_id=$5, message=$6, extra_data=$7, updated_at=$8
WHERE token=$1;`

	p.UpdatedAt = time.Now()
	cmd, err := execSQL(ctx, r.pool, tx, q,
		p.Token, p.Status, p.FraudStatus, p.CapturedAmount, p.TransactionID, p.Message, extraData(p), p.UpdatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Payment, error) {
	// token is a uuid column; anything else cannot match and would fail the cast.
	if _, err := uuid.Parse(token); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE token=$1`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	return r.findOne(ctx, tx, q+";", token)
}

func (r *paymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) (*model.Payment, error) {
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id=$1 ORDER BY created_at DESC LIMIT 1`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	return r.findOne(ctx, tx, q+";", transactionID)
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.Payment, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}

	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.Token, &p.Variant, &p.Status, &p.FraudStatus, &p.Description, &p.Currency, &p.Total,
		&p.CapturedAmount, &p.TransactionID, &p.Message, &p.ExtraData, &p.SuccessURL, &p.FailureURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func extraData(p *model.Payment) map[string]any {
	if p.ExtraData == nil {
		return map[string]any{}
	}
	return p.ExtraData
}

func mapExecErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
		return err
	}
	return domain.ErrOperationFailed
}
