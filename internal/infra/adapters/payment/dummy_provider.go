package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"payment-callbacks/internal/config"
	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/adapter"
	"payment-callbacks/internal/domain/ports/repository"
)

const BackendDummy = "dummy"

var _ adapter.PaymentProvider = (*DummyProvider)(nil)

// DummyProvider applies whatever status the callback asks for. Meant for local
// development and end-to-end tests, never for real money.
type DummyProvider struct {
	payments repository.PaymentRepository
}

func NewDummyProvider(payments repository.PaymentRepository) *DummyProvider {
	return &DummyProvider{payments: payments}
}

func newDummyFromConfig(_ string, _ config.ProviderConfig, deps Deps) (adapter.PaymentProvider, error) {
	if deps.Payments == nil {
		return nil, errors.New("dummy: payment repository is required")
	}
	return NewDummyProvider(deps.Payments), nil
}

func (d *DummyProvider) Name() string { return BackendDummy }

// TokenFromRequest reads the "token" field from the query, form or JSON body.
func (d *DummyProvider) TokenFromRequest(_ context.Context, req *model.CallbackRequest, _ *model.Payment) (string, error) {
	return req.Value("token"), nil
}

// ProcessData expects "status" and optionally "message" and "fraud_status".
func (d *DummyProvider) ProcessData(ctx context.Context, tx repository.Tx, p *model.Payment, req *model.CallbackRequest) (*model.CallbackResponse, error) {
	status := model.PaymentStatus(req.Value("status"))
	if status == model.PaymentStatusConfirmed {
		p.Capture()
	} else if err := p.ChangeStatus(status, req.Value("message")); err != nil {
		return nil, err
	}
	if fs := req.Value("fraud_status"); fs != "" {
		p.FraudStatus = model.FraudStatus(fs)
	}

	if err := d.payments.Save(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("dummy: save payment: %w", err)
	}
	return model.TextResponse(http.StatusOK, "OK"), nil
}
