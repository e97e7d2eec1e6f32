package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"payment-callbacks/internal/domain"
	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/adapter"
	"payment-callbacks/internal/domain/ports/repository"
	"payment-callbacks/internal/infra/logging"
	"payment-callbacks/internal/infra/metrics"
)

// StripeSourcesVariant is the variant the Stripe source webhook is bound to.
const StripeSourcesVariant = "stripe_sources"

// Compile-time check
var _ CallbackUseCase = (*callbackUC)(nil)

// CallbackUseCase dispatches inbound gateway callbacks to the provider owning the payment.
type CallbackUseCase interface {
	// ProcessToken handles a callback addressed to one payment by its token.
	ProcessToken(ctx context.Context, token string, req *model.CallbackRequest) (*model.CallbackResponse, error)
	// ProcessVariant handles a callback sent to a fixed per-integration URL.
	ProcessVariant(ctx context.Context, variant string, req *model.CallbackRequest) (*model.CallbackResponse, error)
	// ProcessStripeEvent handles a Stripe event notification ({"id": "evt_..."}).
	ProcessStripeEvent(ctx context.Context, req *model.CallbackRequest) (*model.CallbackResponse, error)
}

type callbackUC struct {
	providers adapter.ProviderRegistry
	payments  repository.PaymentRepository
	tm        repository.TransactionManager
	claims    adapter.EventClaimer
	claimTTL  time.Duration
	log       *zerolog.Logger
}

func NewCallbackUseCase(
	providers adapter.ProviderRegistry,
	payments repository.PaymentRepository,
	tm repository.TransactionManager,
	claims adapter.EventClaimer,
	claimTTL time.Duration,
	logger *zerolog.Logger,
) *callbackUC {
	return &callbackUC{
		providers: providers,
		payments:  payments,
		tm:        tm,
		claims:    claims,
		claimTTL:  claimTTL,
		log:       logger,
	}
}

// Payment rows are locked with SELECT ... FOR UPDATE, read committed is enough.
var callbackTxOpts = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// transition is what a dispatch changed, reported once the transaction committed.
type transition struct {
	variant string
	from    model.PaymentStatus
	to      model.PaymentStatus
}

func (t transition) record() {
	if t.to != "" && t.from != t.to {
		metrics.IncPaymentTransition(t.variant, string(t.to))
	}
}

func (u *callbackUC) ProcessToken(ctx context.Context, token string, req *model.CallbackRequest) (*model.CallbackResponse, error) {
	defer logging.TraceDuration(u.log, "CallbackUC.ProcessToken")()
	ctx = logging.WithToken(ctx, token)

	var (
		resp *model.CallbackResponse
		tr   transition
	)
	err := u.tm.WithTx(ctx, callbackTxOpts, func(ctx context.Context, tx repository.Tx) error {
		var err error
		resp, tr, err = u.dispatchToken(ctx, tx, token, nil, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	tr.record()
	return resp, nil
}

func (u *callbackUC) ProcessVariant(ctx context.Context, variant string, req *model.CallbackRequest) (*model.CallbackResponse, error) {
	defer logging.TraceDuration(u.log, "CallbackUC.ProcessVariant")()
	ctx = logging.WithVariant(ctx, variant)

	provider, err := u.providers.Get(variant)
	if err != nil {
		return nil, err
	}
	token, err := provider.TokenFromRequest(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	if token == "" {
		logging.With(ctx, u.log).Debug().Msg("provider found no token in callback")
		return nil, domain.ErrTokenNotExtracted
	}
	ctx = logging.WithToken(ctx, token)

	var (
		resp *model.CallbackResponse
		tr   transition
	)
	// The resolved provider is reused; the token path must not look it up again.
	err = u.tm.WithTx(ctx, callbackTxOpts, func(ctx context.Context, tx repository.Tx) error {
		var err error
		resp, tr, err = u.dispatchToken(ctx, tx, token, provider, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	tr.record()
	return resp, nil
}

// dispatchToken loads the payment, resolves its provider unless one is given,
// and hands the callback over. It must run inside a transaction.
func (u *callbackUC) dispatchToken(ctx context.Context, tx repository.Tx, token string, provider adapter.PaymentProvider, req *model.CallbackRequest) (*model.CallbackResponse, transition, error) {
	p, err := u.payments.FindByToken(ctx, tx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, transition{}, domain.ErrPaymentNotFound
		}
		return nil, transition{}, err
	}

	if provider == nil {
		provider, err = u.providers.Get(p.Variant)
		if err != nil {
			return nil, transition{}, err
		}
	}

	from := p.Status
	resp, err := provider.ProcessData(ctx, tx, p, req)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Str("provider", provider.Name()).Msg("callback processing failed")
		return nil, transition{}, err
	}
	return resp, transition{variant: p.Variant, from: from, to: p.Status}, nil
}

func (u *callbackUC) ProcessStripeEvent(ctx context.Context, req *model.CallbackRequest) (*model.CallbackResponse, error) {
	defer logging.TraceDuration(u.log, "CallbackUC.ProcessStripeEvent")()
	ctx = logging.WithVariant(ctx, StripeSourcesVariant)
	log := logging.With(ctx, u.log)

	provider, err := u.providers.Get(StripeSourcesVariant)
	if err != nil {
		return nil, err
	}
	events, ok := provider.(adapter.EventProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not handle gateway events", domain.ErrUnsupportedCapability, provider.Name())
	}

	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	eventID, _ := body["id"].(string)
	if eventID == "" {
		return nil, domain.ErrMissingEventID
	}

	claimKey := "stripe:" + eventID
	claimed, err := u.claims.Claim(ctx, claimKey, u.claimTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		log.Info().Str("event_id", eventID).Msg("duplicate stripe event acknowledged")
		metrics.IncStripeEvent("", "duplicate")
		return model.JSONResponse(http.StatusOK, map[string]string{"status": "duplicate"}), nil
	}

	var (
		ev   *model.GatewayEvent
		resp *model.CallbackResponse
		tr   transition
	)
	// A failed event must stay retryable.
	defer func() {
		if err == nil {
			return
		}
		metrics.IncStripeEvent(eventType(ev), "failed")
		if rerr := u.claims.Release(context.WithoutCancel(ctx), claimKey); rerr != nil {
			log.Error().Err(rerr).Str("event_id", eventID).Msg("failed to release event claim")
		}
	}()

	ev, err = events.FetchEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.ObjectID == "" {
		err = domain.ErrMissingEventObject
		return nil, err
	}
	txID, handled := events.EventTransactionID(ev)
	if !handled {
		log.Debug().Str("event_id", eventID).Str("event_type", ev.Type).Msg("stripe event ignored")
		metrics.IncStripeEvent(ev.Type, "ignored")
		return model.JSONResponse(http.StatusOK, map[string]string{"status": "ignored"}), nil
	}
	if txID == "" {
		err = domain.ErrMissingEventObject
		return nil, err
	}

	err = u.tm.WithTx(ctx, callbackTxOpts, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByTransactionID(ctx, tx, txID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrPaymentNotFound
			}
			return err
		}
		from := p.Status
		resp, err = events.HandleEvent(ctx, tx, p, ev)
		if err != nil {
			return err
		}
		tr = transition{variant: p.Variant, from: from, to: p.Status}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Str("event_type", ev.Type).Msg("stripe event failed")
		return nil, err
	}

	tr.record()
	metrics.IncStripeEvent(ev.Type, "processed")
	return resp, nil
}

func eventType(ev *model.GatewayEvent) string {
	if ev == nil {
		return ""
	}
	return ev.Type
}
