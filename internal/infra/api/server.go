package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"payment-callbacks/internal/domain"
	"payment-callbacks/internal/domain/model"
	"payment-callbacks/internal/domain/ports/repository"
	"payment-callbacks/internal/infra/logging"
	"payment-callbacks/internal/infra/metrics"
	"payment-callbacks/internal/usecase"
)

// Route names used in logs, metrics and the delivery audit.
const (
	RouteToken        = "token"
	RouteVariant      = "variant"
	RouteStripeSource = "stripe_source"
)

var (
	tokenPattern   = regexp.MustCompile(`^[0-9a-z]{8}-[0-9a-z]{4}-[0-9a-z]{4}-[0-9a-z]{4}-[0-9a-z]{12}$`)
	variantPattern = regexp.MustCompile(`^[a-z-]+$`)
)

// Pinger reports backing store health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	MaxBodyBytes   int64
	HandlerTimeout time.Duration
	// Deliveries, when set, receives one audit row per callback.
	Deliveries repository.CallbackDeliveryRepository
	Health     Pinger
}

// Server exposes the gateway callback routes.
type Server struct {
	callbacks usecase.CallbackUseCase
	opts      Options
	log       *zerolog.Logger
}

func NewServer(callbacks usecase.CallbackUseCase, logger *zerolog.Logger, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 20 * time.Second
	}
	return &Server{callbacks: callbacks, opts: opts, log: logger}
}

// Handler returns the routed handler wrapped in the middleware chain.
// Gateways are third-party servers, so no CSRF or session layer applies.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID,
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.opts.HandlerTimeout),
		middleware.StripSlashes,
	)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Token and variant share one segment; handleProcess tells them apart.
	r.Get("/process/{key}", s.handleProcess)
	r.Post("/process/{key}", s.handleProcess)
	r.Post("/stripe_source", s.handleStripeSource)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		if err := s.opts.Health.Ping(r.Context()); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("health check failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	switch {
	case tokenPattern.MatchString(key):
		ctx := logging.WithToken(r.Context(), key)
		s.dispatch(w, r.WithContext(ctx), RouteToken, "", key, func(ctx context.Context, req *model.CallbackRequest) (*model.CallbackResponse, error) {
			return s.callbacks.ProcessToken(ctx, key, req)
		})
	case variantPattern.MatchString(key):
		ctx := logging.WithVariant(r.Context(), key)
		s.dispatch(w, r.WithContext(ctx), RouteVariant, key, "", func(ctx context.Context, req *model.CallbackRequest) (*model.CallbackResponse, error) {
			return s.callbacks.ProcessVariant(ctx, key, req)
		})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleStripeSource(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithVariant(r.Context(), usecase.StripeSourcesVariant)
	s.dispatch(w, r.WithContext(ctx), RouteStripeSource, usecase.StripeSourcesVariant, "", s.callbacks.ProcessStripeEvent)
}

type dispatchFunc func(ctx context.Context, req *model.CallbackRequest) (*model.CallbackResponse, error)

// dispatch reads the body once, runs fn and writes either the provider response
// or the mapped error. Every outcome is measured and audited.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, route, variant, token string, fn dispatchFunc) {
	start := time.Now()
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	var (
		code   int
		result string
		errMsg string
	)
	defer func() {
		// Recover answers 500 once the panic leaves dispatch.
		rec := recover()
		if rec != nil {
			code, result, errMsg = http.StatusInternalServerError, "panic", fmt.Sprintf("panic: %v", rec)
		}
		elapsed := time.Since(start)
		metrics.ObserveCallback(route, result, code, elapsed)
		s.audit(ctx, &model.CallbackDelivery{
			Route:      route,
			Variant:    variant,
			Token:      token,
			StatusCode: code,
			Error:      errMsg,
			Duration:   elapsed,
			ReceivedAt: start,
		})
		if rec != nil {
			panic(rec)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			code, result, errMsg = http.StatusRequestEntityTooLarge, "too_large", err.Error()
			http.Error(w, "Request body too large", code)
			return
		}
		code, result, errMsg = http.StatusBadRequest, "bad_request", err.Error()
		http.Error(w, "Unreadable body", code)
		return
	}

	req := &model.CallbackRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	}

	resp, err := fn(ctx, req)
	if err != nil {
		var msg string
		code, result, msg = mapError(route, err)
		errMsg = err.Error()
		ev := log.Warn()
		if code >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Err(err).Str("route", route).Int("status", code).Msg("callback rejected")
		http.Error(w, msg, code)
		return
	}

	code, result = writeResponse(w, resp), "ok"
}

// writeResponse copies resp to w unchanged and returns the status written.
func writeResponse(w http.ResponseWriter, resp *model.CallbackResponse) int {
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return http.StatusOK
	}
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	code := resp.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	_, _ = w.Write(resp.Body)
	return code
}

// mapError turns a dispatch error into status, bounded metric result and public message.
// A provider resolution failure on the token route keeps the "No such payment" wording.
func mapError(route string, err error) (code int, result, msg string) {
	var upe *domain.UnknownProviderError
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound, "payment_not_found", "No such payment"
	case errors.As(err, &upe):
		if route == RouteToken {
			return http.StatusNotFound, "unknown_provider", "No such payment"
		}
		return http.StatusNotFound, "unknown_provider", "No such provider"
	case errors.Is(err, domain.ErrTokenNotExtracted):
		return http.StatusNotFound, "invalid_response", "Invalid response"
	case errors.Is(err, domain.ErrMalformedPayload),
		errors.Is(err, domain.ErrMissingEventID),
		errors.Is(err, domain.ErrMissingEventObject),
		errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusForbidden, "invalid_signature", "Invalid signature"
	case errors.Is(err, domain.ErrGatewayLookup):
		return http.StatusBadGateway, "gateway_error", "Gateway lookup failed"
	default:
		return http.StatusInternalServerError, "error", "internal error"
	}
}

func (s *Server) audit(ctx context.Context, d *model.CallbackDelivery) {
	if s.opts.Deliveries == nil {
		return
	}
	if err := s.opts.Deliveries.Record(context.WithoutCancel(ctx), repository.NoTX, d); err != nil {
		logging.With(ctx, s.log).Error().Err(err).Str("route", d.Route).Msg("failed to record callback delivery")
	}
}
