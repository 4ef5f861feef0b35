package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeCheckoutCompleted     = "CHECKOUT_COMPLETED"
	EventTypePaymentFailed         = "PAYMENT_FAILED"
	EventTypePaymentCancelled      = "PAYMENT_CANCELLED"
	EventTypeReconciliationPending = "RECONCILIATION_PENDING"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutCompletedEvent published when an order is confirmed by the
// backend and the cart is cleared.
type CheckoutCompletedEvent struct {
	BaseEvent
	SessionID     string          `json:"session_id"`
	OrderRef      string          `json:"order_ref"`
	OrderID       string          `json:"order_id"`
	Method        MethodKind      `json:"method"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// PaymentFailedEvent published when the router returns a failed outcome.
type PaymentFailedEvent struct {
	BaseEvent
	SessionID string          `json:"session_id"`
	OrderRef  string          `json:"order_ref"`
	Method    MethodKind      `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	ErrorKind string          `json:"error_kind"`
	Message   string          `json:"message"`
}

// PaymentCancelledEvent published when the user dismissed the payment
// UI. Cancellation is not an error state.
type PaymentCancelledEvent struct {
	BaseEvent
	SessionID string     `json:"session_id"`
	OrderRef  string     `json:"order_ref"`
	Method    MethodKind `json:"method"`
	Reason    string     `json:"reason"`
}

// ReconciliationPendingEvent published when a payment succeeded but
// order creation did not. Consumed by the escalation worker.
type ReconciliationPendingEvent struct {
	BaseEvent
	CaseID        int64           `json:"case_id"`
	SessionID     string          `json:"session_id"`
	OrderRef      string          `json:"order_ref"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
}
