package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRef is a product object embedded in a cart line.
type ProductRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CartLine is one line of a cart snapshot as served by the storefront
// backend. The product reference may arrive as an embedded object, a
// plain product id, or only the line's own id.
type CartLine struct {
	ID                string           `json:"id"`
	Product           *ProductRef      `json:"product,omitempty"`
	ProductID         string           `json:"product_id,omitempty"`
	Name              string           `json:"name"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	OriginalUnitPrice *decimal.Decimal `json:"original_unit_price,omitempty"`
	GSTPercent        *decimal.Decimal `json:"gst_percent,omitempty"`
	LineTotal         decimal.Decimal  `json:"line_total"`
	Variation         string           `json:"variation,omitempty"`
}

// CartSnapshot is the ordered cart state. It is replaced wholesale on
// every successful cart mutation and emptied only after a confirmed
// order.
type CartSnapshot struct {
	Lines []CartLine `json:"lines"`
}

// Empty reports whether the snapshot has no lines.
func (c CartSnapshot) Empty() bool {
	return len(c.Lines) == 0
}

// Address is a delivery address. Addresses are fetched, never
// synthesized locally; selection is by id into the fetched list.
type Address struct {
	ID         string `json:"id"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// Profile is the subset of the user profile checkout needs.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SessionContext carries the identity of the active session. It is
// passed explicitly into the payment router; online gateways require
// a billing identity.
type SessionContext struct {
	SessionID string
	UserID    string
	Name      string
	Email     string
	Phone     string
	Token     string
}

// GSTMode selects how the pricing engine derives tax from line rates.
type GSTMode string

const (
	GSTModeWeightedAverage GSTMode = "weighted-average"
	GSTModePerLine         GSTMode = "per-line"
)

// FeeSchedule is the single source of truth for checkout fees.
// Values come from configuration, never from literals at call sites.
type FeeSchedule struct {
	GSTMode         GSTMode
	ShippingFlat    decimal.Decimal
	PlatformFeeFlat decimal.Decimal
}

// PriceBreakdown is the monetary breakdown of a cart snapshot.
type PriceBreakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Shipping    decimal.Decimal `json:"shipping"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

// MethodKind discriminates payment methods.
type MethodKind string

const (
	MethodCashOnDelivery MethodKind = "COD"
	MethodUpiApp         MethodKind = "UPI_APP"
	MethodUpiCustomID    MethodKind = "UPI_CUSTOM_ID"
	MethodGatewayNative  MethodKind = "GATEWAY_NATIVE"
	MethodGatewayWeb     MethodKind = "GATEWAY_WEB"
	MethodCard           MethodKind = "CARD"
	MethodWallet         MethodKind = "WALLET"
)

// PaymentMethod is the user-chosen payment method. AppID is set for
// UPI_APP, VPA for UPI_CUSTOM_ID; both are empty otherwise.
type PaymentMethod struct {
	Kind  MethodKind `json:"kind"`
	AppID string     `json:"app_id,omitempty"`
	VPA   string     `json:"vpa,omitempty"`
}

// Online reports whether the method requires obtaining a payment
// outcome before order creation.
func (m PaymentMethod) Online() bool {
	return m.Kind != MethodCashOnDelivery
}

// Disabled reports whether the method is registered but not offered.
func (m PaymentMethod) Disabled() bool {
	return m.Kind == MethodCard || m.Kind == MethodWallet
}

// OrderItem is one line of the order-creation payload. Product is a
// resolved product identifier, never empty.
type OrderItem struct {
	Product   string `json:"product"`
	Quantity  int    `json:"quantity"`
	Variation string `json:"variation,omitempty"`
}

// PaymentConfirmation is attached to the order payload when an online
// payment succeeded.
type PaymentConfirmation struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}

// OrderRequest is the order-creation payload expected by the
// storefront backend.
type OrderRequest struct {
	DeliveryAddress     Address              `json:"delivery_address"`
	PaymentMethod       MethodKind           `json:"payment_method"`
	Items               []OrderItem          `json:"items"`
	ClearCart           bool                 `json:"clear_cart"`
	PaymentConfirmation *PaymentConfirmation `json:"payment_confirmation,omitempty"`
}

// ReconciliationCase records a charged-but-unordered checkout attempt
// awaiting manual reconciliation.
type ReconciliationCase struct {
	ID            int64           `db:"id" json:"id"`
	SessionID     string          `db:"session_id" json:"session_id"`
	OrderRef      string          `db:"order_ref" json:"order_ref"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Reason        string          `db:"reason" json:"reason"`
	Status        string          `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt    *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Reconciliation case statuses
const (
	CaseStatusOpen     = "OPEN"
	CaseStatusResolved = "RESOLVED"
)

// PaymentAttempt is an audit record of one router dispatch.
type PaymentAttempt struct {
	ID            int64           `db:"id" json:"id"`
	SessionID     string          `db:"session_id" json:"session_id"`
	OrderRef      string          `db:"order_ref" json:"order_ref"`
	Method        MethodKind      `db:"method" json:"method"`
	Outcome       string          `db:"outcome" json:"outcome"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
