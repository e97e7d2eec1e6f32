// File: internal/infra/adapters/payment/zarinpal_provider.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"payment-callbacks/internal/config"
	"payment-callbacks/internal/domain"
	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/adapter"
	"payment-callbacks/internal/domain/ports/repository"
)

const BackendZarinPal = "zarinpal"

var _ adapter.PaymentProvider = (*ZarinPalProvider)(nil)

// ZarinPalProvider handles the redirect callback ZarinPal sends after checkout
// (?Authority=...&Status=OK|NOK) and verifies it with the REST v4 API.
type ZarinPalProvider struct {
	merchantID    string
	webhookSecret string
	baseURL       string
	client        *http.Client
	payments      repository.PaymentRepository
	log           *zerolog.Logger
}

func NewZarinPalProvider(merchantID, webhookSecret, baseURL string, sandbox bool, client *http.Client, payments repository.PaymentRepository, log *zerolog.Logger) (*ZarinPalProvider, error) {
	if merchantID == "" {
		return nil, errors.New("zarinpal: merchant id empty")
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if baseURL == "" {
		baseURL = "https://api.zarinpal.com/pg/v4"
		if sandbox {
			baseURL = "https://sandbox.zarinpal.com/pg/v4"
		}
	}
	return &ZarinPalProvider{
		merchantID:    merchantID,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        client,
		payments:      payments,
		log:           log,
	}, nil
}

func newZarinPalFromConfig(_ string, cfg config.ProviderConfig, deps Deps) (adapter.PaymentProvider, error) {
	return NewZarinPalProvider(cfg.MerchantID, cfg.WebhookSecret, cfg.APIBase, cfg.Sandbox, deps.HTTPClient, deps.Payments, deps.Logger)
}

func (z *ZarinPalProvider) Name() string { return BackendZarinPal }

// TokenFromRequest maps the Authority parameter back to the payment it was issued for.
func (z *ZarinPalProvider) TokenFromRequest(ctx context.Context, req *model.CallbackRequest, p *model.Payment) (string, error) {
	authority := req.Form().Get("Authority")
	if authority == "" {
		return "", nil
	}
	if p != nil && p.TransactionID == authority {
		return p.Token, nil
	}
	found, err := z.payments.FindByTransactionID(ctx, repository.NoTX, authority)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("zarinpal: lookup authority: %w", err)
	}
	return found.Token, nil
}

func (z *ZarinPalProvider) ProcessData(ctx context.Context, tx repository.Tx, p *model.Payment, req *model.CallbackRequest) (*model.CallbackResponse, error) {
	form := req.Form()
	authority := form.Get("Authority")
	status := form.Get("Status")

	if authority == "" {
		return nil, fmt.Errorf("%w: missing Authority", domain.ErrMalformedPayload)
	}
	if p.TransactionID != "" && p.TransactionID != authority {
		return nil, fmt.Errorf("%w: authority does not belong to payment", domain.ErrMalformedPayload)
	}
	if z.webhookSecret != "" {
		data := map[string]string{
			"amount":    strconv.FormatInt(p.MinorUnits(), 10),
			"authority": authority,
			"status":    status,
		}
		if !VerifyZarinPalWebhookSignature(z.webhookSecret, data, req.Header.Get(zarinPalSignatureHeader)) {
			return nil, domain.ErrInvalidSignature
		}
	}

	// Gateways re-deliver; a settled payment is only redirected again.
	if p.Status.Final() {
		return redirectFor(p), nil
	}

	if status != "OK" {
		if err := p.ChangeStatus(model.PaymentStatusRejected, "gateway returned status "+status); err != nil {
			return nil, err
		}
		if err := z.payments.Save(ctx, tx, p); err != nil {
			return nil, fmt.Errorf("zarinpal: save payment: %w", err)
		}
		return redirectFor(p), nil
	}

	refID, err := z.verify(ctx, authority, p.MinorUnits())
	switch {
	case errors.Is(err, errZarinPalDeclined):
		z.log.Warn().Str("authority", authority).Err(err).Msg("zarinpal verification declined")
		if err := p.ChangeStatus(model.PaymentStatusRejected, err.Error()); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		p.Capture()
		p.TransactionID = authority
		p.SetExtra("ref_id", refID)
	}

	if err := z.payments.Save(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("zarinpal: save payment: %w", err)
	}
	return redirectFor(p), nil
}

var errZarinPalDeclined = errors.New("zarinpal verify declined")

// verify calls /payment/verify.json and returns provider refID on success.
func (z *ZarinPalProvider) verify(ctx context.Context, authority string, amount int64) (string, error) {
	payload := map[string]any{
		"merchant_id": z.merchantID,
		"amount":      amount,
		"authority":   authority,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.baseURL+"/payment/verify.json", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := z.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: zarinpal verify: %v", domain.ErrGatewayLookup, err)
	}
	defer resp.Body.Close()

	var out struct {
		Data struct {
			Code  int   `json:"code"`
			RefID int64 `json:"ref_id"`
		} `json:"data"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: zarinpal verify: decode response: %v", domain.ErrGatewayLookup, err)
	}
	// success code is 100 (101 means already verified). Treat both as ok if ref_id present.
	if (out.Data.Code != 100 && out.Data.Code != 101) || out.Data.RefID == 0 {
		return "", fmt.Errorf("%w: code %d", errZarinPalDeclined, out.Data.Code)
	}
	return strconv.FormatInt(out.Data.RefID, 10), nil
}

// redirectFor sends the customer back to the shop, or answers plainly when the
// payment carries no return URLs.
func redirectFor(p *model.Payment) *model.CallbackResponse {
	switch {
	case p.Status == model.PaymentStatusConfirmed && p.SuccessURL != "":
		return model.RedirectResponse(p.SuccessURL)
	case p.Status == model.PaymentStatusRejected && p.FailureURL != "":
		return model.RedirectResponse(p.FailureURL)
	case p.Status == model.PaymentStatusConfirmed:
		return model.TextResponse(http.StatusOK, "OK")
	default:
		return model.TextResponse(http.StatusOK, string(p.Status))
	}
}
