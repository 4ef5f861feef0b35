package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// Intent is the deep-link payload handed to the UPI dispatch boundary.
type Intent struct {
	VPA            string
	PayeeName      string
	Amount         string
	TransactionRef string
	Note           string
	App            string
}

// URI renders the upi://pay deep link for the intent.
func (i Intent) URI() string {
	q := url.Values{}
	q.Set("pa", i.VPA)
	q.Set("pn", i.PayeeName)
	q.Set("am", i.Amount)
	q.Set("tr", i.TransactionRef)
	if i.Note != "" {
		q.Set("tn", i.Note)
	}
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode()
}

// DispatchResult is the raw response of the UPI dispatch boundary.
type DispatchResult struct {
	Status       string
	TxnID        string
	ErrorMessage string
}

// Dispatcher is the platform UPI dispatch capability. Availability
// varies by deployment; an unavailable dispatcher degrades silently
// to the mock adapter.
type Dispatcher interface {
	Available() bool
	Dispatch(ctx context.Context, intent Intent) (DispatchResult, error)
}

// UpiAdapter drives a payment through the UPI deep-link boundary.
// The target VPA is the merchant's by default; a custom VPA on the
// request metadata overrides it.
type UpiAdapter struct {
	dispatcher Dispatcher
	payeeVPA   string
	payeeName  string
	fallback   Adapter
	logger     *zap.Logger
}

// Request metadata keys the adapter understands.
const (
	MetaUpiVPA = "upi_vpa"
	MetaUpiApp = "upi_app"
)

// NewUpiAdapter creates a UPI adapter. fallback handles execution
// when the dispatch capability is absent.
func NewUpiAdapter(dispatcher Dispatcher, payeeVPA, payeeName string, fallback Adapter) *UpiAdapter {
	return &UpiAdapter{
		dispatcher: dispatcher,
		payeeVPA:   payeeVPA,
		payeeName:  payeeName,
		fallback:   fallback,
		logger:     util.GetLogger(),
	}
}

func (u *UpiAdapter) Name() string { return "upi" }

// Available reports whether the UPI dispatch capability is usable.
func (u *UpiAdapter) Available() bool {
	return u.dispatcher != nil && u.dispatcher.Available()
}

// Execute builds the deep-link intent, dispatches it, and interprets
// the returned status case-insensitively.
func (u *UpiAdapter) Execute(ctx context.Context, req Request) Outcome {
	if !u.Available() {
		u.logger.Info("UPI dispatch unavailable, delegating to fallback",
			zap.String("order_ref", req.OrderRef))
		return u.fallback.Execute(ctx, req)
	}

	vpa := u.payeeVPA
	if custom := req.Metadata[MetaUpiVPA]; custom != "" {
		vpa = custom
	}

	intent := Intent{
		VPA:            vpa,
		PayeeName:      u.payeeName,
		Amount:         req.Amount.StringFixed(2),
		TransactionRef: req.OrderRef,
		Note:           req.Description,
		App:            req.Metadata[MetaUpiApp],
	}

	result, err := u.dispatcher.Dispatch(ctx, intent)
	if err != nil {
		return Failed("", ErrKindGateway, fmt.Sprintf("upi dispatch: %v", err))
	}

	switch strings.ToLower(strings.TrimSpace(result.Status)) {
	case "success":
		return Succeeded("", result.TxnID, req.Amount, map[string]interface{}{
			"upi_status": result.Status,
			"intent":     intent.URI(),
		})
	case "failure":
		msg := result.ErrorMessage
		if msg == "" {
			msg = "upi payment failed"
		}
		return Failed("", ErrKindGateway, msg)
	case "cancelled":
		return Cancelled("", "upi payment cancelled by user")
	default:
		return Failed("", ErrKindUnknownStatus,
			fmt.Sprintf("unrecognized upi status %q", result.Status))
	}
}
