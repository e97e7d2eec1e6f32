package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"payment-callbacks/internal/config"
	"payment-callbacks/internal/domain"
	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/adapter"
	"payment-callbacks/internal/domain/ports/repository"
)

const BackendStripeSources = "stripe_sources"

// Stripe event types handled by HandleEvent.
const (
	StripeEventSourceChargeable = "source.chargeable"
	StripeEventSourceFailed     = "source.failed"
	StripeEventSourceCanceled   = "source.canceled"
	StripeEventChargeSucceeded  = "charge.succeeded"
	StripeEventChargePending    = "charge.pending"
	StripeEventChargeFailed     = "charge.failed"
)

var _ adapter.EventProvider = (*StripeSourcesProvider)(nil)

// StripeSourcesProvider drives payments made with Stripe Sources. The customer is
// redirected back to the token URL; the charge happens when Stripe reports the
// source as chargeable.
type StripeSourcesProvider struct {
	api      StripeAPI
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewStripeSourcesProvider(api StripeAPI, payments repository.PaymentRepository, log *zerolog.Logger) *StripeSourcesProvider {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &StripeSourcesProvider{api: api, payments: payments, log: log}
}

func newStripeSourcesFromConfig(_ string, cfg config.ProviderConfig, deps Deps) (adapter.PaymentProvider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe_sources: secret_key is required")
	}
	return NewStripeSourcesProvider(NewStripeClient(cfg.SecretKey, cfg.APIBase, deps.HTTPClient), deps.Payments, deps.Logger), nil
}

func (s *StripeSourcesProvider) Name() string { return BackendStripeSources }

// TokenFromRequest maps the "source" query parameter Stripe appends to the return URL.
func (s *StripeSourcesProvider) TokenFromRequest(ctx context.Context, req *model.CallbackRequest, p *model.Payment) (string, error) {
	source := req.Form().Get("source")
	if source == "" {
		return "", nil
	}
	if p != nil && p.TransactionID == source {
		return p.Token, nil
	}
	found, err := s.payments.FindByTransactionID(ctx, repository.NoTX, source)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("stripe_sources: lookup source: %w", err)
	}
	return found.Token, nil
}

// ProcessData handles the customer's return from the source authorization page.
func (s *StripeSourcesProvider) ProcessData(ctx context.Context, tx repository.Tx, p *model.Payment, req *model.CallbackRequest) (*model.CallbackResponse, error) {
	source := req.Form().Get("source")
	if source == "" {
		return nil, fmt.Errorf("%w: missing source", domain.ErrMalformedPayload)
	}
	if p.TransactionID != "" && p.TransactionID != source {
		return nil, fmt.Errorf("%w: source does not belong to payment", domain.ErrMalformedPayload)
	}

	status, err := s.api.GetSourceStatus(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayLookup, err)
	}

	switch status {
	case "failed", "canceled":
		if !p.Status.Final() {
			if err := p.ChangeStatus(model.PaymentStatusRejected, "source "+status); err != nil {
				return nil, err
			}
			if err := s.payments.Save(ctx, tx, p); err != nil {
				return nil, fmt.Errorf("stripe_sources: save payment: %w", err)
			}
		}
		if p.FailureURL != "" {
			return model.RedirectResponse(p.FailureURL), nil
		}
		return model.TextResponse(http.StatusOK, string(p.Status)), nil
	}

	// chargeable, consumed or still pending: the webhook finishes the charge.
	if p.TransactionID == "" {
		p.TransactionID = source
		if err := s.payments.Save(ctx, tx, p); err != nil {
			return nil, fmt.Errorf("stripe_sources: save payment: %w", err)
		}
	}
	if p.SuccessURL != "" {
		return model.RedirectResponse(p.SuccessURL), nil
	}
	return model.TextResponse(http.StatusOK, "OK"), nil
}

func (s *StripeSourcesProvider) FetchEvent(ctx context.Context, eventID string) (*model.GatewayEvent, error) {
	ev, err := s.api.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayLookup, err)
	}
	return ev, nil
}

// EventTransactionID returns the source id an event refers to. Source events carry it as
// their object id; charge events name it in the charge's source. Charges not made from a
// source are not ours.
func (s *StripeSourcesProvider) EventTransactionID(ev *model.GatewayEvent) (string, bool) {
	switch ev.Type {
	case StripeEventSourceChargeable, StripeEventSourceFailed, StripeEventSourceCanceled:
		return ev.ObjectID, true
	case StripeEventChargeSucceeded, StripeEventChargePending, StripeEventChargeFailed:
		id := chargeSourceID(ev.Object)
		if !strings.HasPrefix(id, "src_") {
			return "", false
		}
		return id, true
	}
	return "", false
}

func chargeSourceID(charge map[string]any) string {
	switch src := charge["source"].(type) {
	case string:
		return src
	case map[string]any:
		id, _ := src["id"].(string)
		return id
	}
	return ""
}

// HandleEvent applies a re-fetched source or charge event to p and reports the outcome as
// {"status": ...}.
func (s *StripeSourcesProvider) HandleEvent(ctx context.Context, tx repository.Tx, p *model.Payment, ev *model.GatewayEvent) (*model.CallbackResponse, error) {
	log := s.log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Str("token", p.Token).Logger()

	var result string
	switch ev.Type {
	case StripeEventSourceChargeable:
		if p.Status.Final() {
			log.Info().Str("status", string(p.Status)).Msg("payment already settled, charge skipped")
			return outcome("already_" + string(p.Status)), nil
		}
		ch, err := s.api.ChargeSource(ctx, StripeChargeRequest{
			SourceID:       ev.ObjectID,
			Currency:       strings.ToLower(p.Currency),
			Amount:         p.MinorUnits(),
			Description:    p.Description,
			IdempotencyKey: "charge-" + ev.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrGatewayLookup, err)
		}
		if ch.ID != "" {
			p.SetExtra("charge_id", ch.ID)
		}
		switch ch.Status {
		case "succeeded":
			p.Capture()
			result = "captured"
		case "pending":
			if err := p.ChangeStatus(model.PaymentStatusPreauth, ""); err != nil {
				return nil, err
			}
			result = "pending"
		case "failed":
			if err := p.ChangeStatus(model.PaymentStatusRejected, ch.FailureMessage); err != nil {
				return nil, err
			}
			result = "rejected"
		default:
			return nil, fmt.Errorf("stripe_sources: unexpected charge status %q", ch.Status)
		}

	case StripeEventSourceFailed, StripeEventSourceCanceled:
		if p.Status.Final() {
			return outcome("already_" + string(p.Status)), nil
		}
		if err := p.ChangeStatus(model.PaymentStatusRejected, ev.Type); err != nil {
			return nil, err
		}
		result = "rejected"

	case StripeEventChargeSucceeded:
		if p.Status.Final() {
			return outcome("already_" + string(p.Status)), nil
		}
		p.SetExtra("charge_id", ev.ObjectID)
		p.Capture()
		result = "captured"

	case StripeEventChargePending:
		if p.Status != model.PaymentStatusWaiting {
			return outcome("already_" + string(p.Status)), nil
		}
		p.SetExtra("charge_id", ev.ObjectID)
		if err := p.ChangeStatus(model.PaymentStatusPreauth, ""); err != nil {
			return nil, err
		}
		result = "pending"

	case StripeEventChargeFailed:
		if p.Status.Final() {
			return outcome("already_" + string(p.Status)), nil
		}
		msg, _ := ev.Object["failure_message"].(string)
		if msg == "" {
			msg = ev.Type
		}
		if err := p.ChangeStatus(model.PaymentStatusRejected, msg); err != nil {
			return nil, err
		}
		result = "rejected"

	default:
		log.Debug().Msg("event type ignored")
		return outcome("ignored"), nil
	}

	if err := s.payments.Save(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("stripe_sources: save payment: %w", err)
	}
	log.Info().Str("result", result).Msg("stripe event applied")
	return outcome(result), nil
}

func outcome(status string) *model.CallbackResponse {
	return model.JSONResponse(http.StatusOK, map[string]string{"status": status})
}
