package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"payment-callbacks/internal/domain/model"
)

// StripeAPI is the slice of the Stripe API the stripe_sources provider needs.
type StripeAPI interface {
	GetEvent(ctx context.Context, id string) (*model.GatewayEvent, error)
	GetSourceStatus(ctx context.Context, id string) (string, error)
	ChargeSource(ctx context.Context, req StripeChargeRequest) (*StripeCharge, error)
}

type StripeChargeRequest struct {
	SourceID       string
	Currency       string // lower-case ISO code
	Amount         int64  // minor units
	Description    string
	IdempotencyKey string
}

type StripeCharge struct {
	ID             string
	Status         string // succeeded | pending | failed
	FailureMessage string
}

var _ StripeAPI = (*stripeClient)(nil)

type stripeClient struct {
	api *client.API
}

// NewStripeClient builds a client for secretKey. apiBase and hc are optional and
// only used to point the client somewhere other than api.stripe.com.
func NewStripeClient(secretKey, apiBase string, hc *http.Client) *stripeClient {
	var backends *stripe.Backends
	if apiBase != "" || hc != nil {
		cfg := &stripe.BackendConfig{HTTPClient: hc}
		if apiBase != "" {
			cfg.URL = stripe.String(apiBase)
		}
		backends = &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Connect: stripe.GetBackend(stripe.ConnectBackend),
			Uploads: stripe.GetBackend(stripe.UploadsBackend),
		}
	}
	return &stripeClient{api: client.New(secretKey, backends)}
}

func (c *stripeClient) GetEvent(ctx context.Context, id string) (*model.GatewayEvent, error) {
	ev, err := c.api.Events.Get(id, &stripe.EventParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return nil, fmt.Errorf("stripe: get event %s: %w", id, err)
	}
	out := &model.GatewayEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil && ev.Data.Object != nil {
		out.Object = ev.Data.Object
		out.ObjectID, _ = ev.Data.Object["id"].(string)
	}
	return out, nil
}

func (c *stripeClient) GetSourceStatus(ctx context.Context, id string) (string, error) {
	src, err := c.api.Sources.Get(id, &stripe.SourceParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return "", fmt.Errorf("stripe: get source %s: %w", id, err)
	}
	return string(src.Status), nil
}

// ChargeSource charges a chargeable source. A card decline is reported as a failed
// charge rather than an error.
func (c *stripeClient) ChargeSource(ctx context.Context, req StripeChargeRequest) (*StripeCharge, error) {
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	if err := params.SetSource(req.SourceID); err != nil {
		return nil, fmt.Errorf("stripe: charge source: %w", err)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	ch, err := c.api.Charges.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
			return &StripeCharge{Status: "failed", FailureMessage: se.Msg}, nil
		}
		return nil, fmt.Errorf("stripe: charge source %s: %w", req.SourceID, err)
	}
	return &StripeCharge{ID: ch.ID, Status: string(ch.Status), FailureMessage: ch.FailureMessage}, nil
}
