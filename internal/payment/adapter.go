package payment

import (
	"context"
	"time"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
)

// Status discriminates payment outcomes.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// ErrorKind classifies failed outcomes.
type ErrorKind string

const (
	ErrKindValidation        ErrorKind = "VALIDATION"
	ErrKindAlreadyInProgress ErrorKind = "ALREADY_IN_PROGRESS"
	ErrKindTimeout           ErrorKind = "TIMEOUT"
	ErrKindUnknownStatus     ErrorKind = "UNKNOWN_STATUS"
	ErrKindInvalidResponse   ErrorKind = "INVALID_RESPONSE"
	ErrKindSimulated         ErrorKind = "SIMULATED"
	ErrKindGateway           ErrorKind = "GATEWAY"
	ErrKindUnsupported       ErrorKind = "UNSUPPORTED_METHOD"
)

// Outcome is the single result shape every adapter resolves to.
// Exactly one of the three statuses is set; the kind and message are
// populated only for failures, the reason only for cancellations.
type Outcome struct {
	Status        Status
	TransactionID string
	Amount        decimal.Decimal
	Method        models.MethodKind
	Timestamp     time.Time
	Raw           map[string]interface{}
	Reason        string
	Kind          ErrorKind
	Message       string
}

// Succeeded builds a successful outcome.
func Succeeded(method models.MethodKind, txnID string, amount decimal.Decimal, raw map[string]interface{}) Outcome {
	return Outcome{
		Status:        StatusSucceeded,
		TransactionID: txnID,
		Amount:        amount,
		Method:        method,
		Timestamp:     time.Now().UTC(),
		Raw:           raw,
	}
}

// Cancelled builds a user-cancellation outcome. Cancellation is a
// first-class result, not an error.
func Cancelled(method models.MethodKind, reason string) Outcome {
	return Outcome{
		Status:    StatusCancelled,
		Method:    method,
		Timestamp: time.Now().UTC(),
		Reason:    reason,
	}
}

// Failed builds a failed outcome with a classification.
func Failed(method models.MethodKind, kind ErrorKind, message string) Outcome {
	return Outcome{
		Status:    StatusFailed,
		Method:    method,
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Message:   message,
	}
}

// Request is the normalized payment request handed to adapters.
type Request struct {
	Amount        decimal.Decimal
	OrderRef      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Description   string
	Metadata      map[string]string
}

// Adapter wraps one payment backend behind a uniform contract.
// Execute blocks until a terminal outcome; adapters never return
// backend-specific errors, only outcomes.
type Adapter interface {
	Name() string
	Available() bool
	Execute(ctx context.Context, req Request) Outcome
}
