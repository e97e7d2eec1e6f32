package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Callback resolution errors
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrTokenNotExtracted     = errors.New("no payment token in callback")
	ErrUnsupportedCapability = errors.New("provider does not support this callback")

	// Malformed callback input
	ErrMalformedPayload   = errors.New("malformed callback payload")
	ErrMissingEventID     = errors.New("callback event id missing")
	ErrMissingEventObject = errors.New("gateway event has no object id")

	// Provider-side failures
	ErrGatewayLookup    = errors.New("gateway lookup failed")
	ErrInvalidSignature = errors.New("callback signature mismatch")
	ErrInvalidStatus    = errors.New("invalid payment status")
)

// UnknownProviderError is returned when a variant has no registered provider.
type UnknownProviderError struct {
	Variant string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown payment provider for variant %q", e.Variant)
}

func (e *UnknownProviderError) Unwrap() error { return ErrUnknownProvider }
