//go:build !integration

package payment_test

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"payment-callbacks/internal/domain"
	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/repository"
	"payment-callbacks/internal/infra/adapters/payment"
)

// ---- In-memory PaymentRepository ----

type MockPaymentRepo struct {
	mu    sync.Mutex
	data  map[string]*model.Payment // by token
	Saves int

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo(ps ...*model.Payment) *MockPaymentRepo {
	r := &MockPaymentRepo{data: map[string]*model.Payment{}}
	for _, p := range ps {
		cp := *p
		r.data[p.Token] = &cp
	}
	return r
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.Token] = &cp
	return nil
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[p.Token]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	r.data[p.Token] = &cp
	r.Saves++
	return nil
}

func (r *MockPaymentRepo) FindByToken(ctx context.Context, tx repository.Tx, token string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPaymentRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if id != "" && p.TransactionID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) get(token string) *model.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.data[token]
	return &cp
}

// ---- Fake Stripe API ----

type FakeStripe struct {
	mu      sync.Mutex
	Events  map[string]*model.GatewayEvent
	Sources map[string]string // source id -> status
	Charge  *payment.StripeCharge
	Err     error

	Charges []payment.StripeChargeRequest
}

var _ payment.StripeAPI = (*FakeStripe)(nil)

func (f *FakeStripe) GetEvent(ctx context.Context, id string) (*model.GatewayEvent, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	ev, ok := f.Events[id]
	if !ok {
		return nil, errors.New("resource_missing: no such event")
	}
	return ev, nil
}

func (f *FakeStripe) GetSourceStatus(ctx context.Context, id string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Sources[id], nil
}

func (f *FakeStripe) ChargeSource(ctx context.Context, req payment.StripeChargeRequest) (*payment.StripeCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Charges = append(f.Charges, req)
	return f.Charge, nil
}

// ---- helpers ----

const testToken = "11111111-2222-3333-4444-555555555555"

func newTestPayment(variant string) *model.Payment {
	return &model.Payment{
		ID:          "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		Token:       testToken,
		Variant:     variant,
		Status:      model.PaymentStatusWaiting,
		FraudStatus: model.FraudStatusUnknown,
		Currency:    "USD",
		Total:       decimal.RequireFromString("12.50"),
		SuccessURL:  "https://shop.example/success",
		FailureURL:  "https://shop.example/failure",
	}
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
