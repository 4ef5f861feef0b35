package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/payment"
	"checkout-service/internal/storefront"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is the terminal state of one checkout attempt. No state is
// ever retried automatically.
type State string

const (
	StateConfirmed           State = "CONFIRMED"
	StateValidationFailed    State = "VALIDATION_FAILED"
	StatePaymentFailed       State = "PAYMENT_FAILED"
	StatePaymentCancelled    State = "PAYMENT_CANCELLED"
	StateOrderCreationFailed State = "ORDER_CREATION_FAILED"
	StateAlreadyInProgress   State = "ALREADY_IN_PROGRESS"
)

// Result is the single discriminated outcome of a checkout attempt.
// Presentation is entirely the caller's concern.
type Result struct {
	State        State
	OrderRef     string
	OrderID      string
	Breakdown    models.PriceBreakdown
	MissingField string
	Message      string
	Outcome      *payment.Outcome
	// CaseID is set when a successful charge could not be turned into
	// an order; the caller must mount a support path, not a generic
	// failure message.
	CaseID int64
}

// Backend is the storefront collaborator the reconciler drives.
type Backend interface {
	GetCart(ctx context.Context, session models.SessionContext) (models.CartSnapshot, error)
	GetAddresses(ctx context.Context, session models.SessionContext) ([]models.Address, error)
	GetProfile(ctx context.Context, session models.SessionContext) (models.Profile, error)
	CreateOrder(ctx context.Context, session models.SessionContext, order models.OrderRequest) (string, error)
}

// PaymentRouter obtains a normalized payment outcome.
type PaymentRouter interface {
	Pay(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal, orderRef string, session models.SessionContext) payment.Outcome
}

// CaseStore persists reconciliation cases and the payment audit trail.
type CaseStore interface {
	OpenCase(ctx context.Context, c *models.ReconciliationCase) (int64, error)
	RecordAttempt(ctx context.Context, a *models.PaymentAttempt) error
}

// CartCache invalidates the local cart snapshot on confirmation.
type CartCache interface {
	InvalidateCart(ctx context.Context, sessionID string) error
}

// Publisher emits checkout lifecycle events.
type Publisher interface {
	PublishCheckoutCompleted(ctx context.Context, event *models.CheckoutCompletedEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
	PublishPaymentCancelled(ctx context.Context, event *models.PaymentCancelledEvent) error
	PublishReconciliationPending(ctx context.Context, event *models.ReconciliationPendingEvent) error
}

// Pricer computes the breakdown the payment amount derives from.
type Pricer interface {
	ComputeBreakdown(cart models.CartSnapshot) models.PriceBreakdown
}

// Reconciler sequences compute totals -> obtain payment outcome ->
// create order -> clear cart, guaranteeing order creation is
// attempted once and only when its preconditions hold.
type Reconciler struct {
	backend   Backend
	pricer    Pricer
	router    PaymentRouter
	assembler *Assembler
	cases     CaseStore
	cache     CartCache
	publisher Publisher
	inflight  sync.Map
	logger    *zap.Logger
}

// NewReconciler wires the checkout state machine. cases, cache, and
// publisher may be nil in tests; their absence is logged, never fatal
// to the flow they decorate — except case persistence, which is the
// support path for a charged user and is always attempted.
func NewReconciler(backend Backend, pricer Pricer, router PaymentRouter, cases CaseStore, cache CartCache, publisher Publisher) *Reconciler {
	return &Reconciler{
		backend:   backend,
		pricer:    pricer,
		router:    router,
		assembler: NewAssembler(),
		cases:     cases,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Place runs one checkout attempt to a terminal state.
func (r *Reconciler) Place(ctx context.Context, session models.SessionContext, addressID string, method models.PaymentMethod) Result {
	ctx, span := util.StartSpan(ctx, "Reconciler.Place")
	defer span.End()

	if _, loaded := r.inflight.LoadOrStore(session.SessionID, struct{}{}); loaded {
		return r.finish(Result{
			State:   StateAlreadyInProgress,
			Message: "a checkout attempt is already in progress",
		})
	}
	defer r.inflight.Delete(session.SessionID)

	orderRef := uuid.New().String()

	// Validating
	cart, address, phone, result, ok := r.validate(ctx, session, addressID)
	if !ok {
		return r.finish(result)
	}
	session.Phone = phone

	breakdown := r.pricer.ComputeBreakdown(cart)

	// AwaitingPayment (online methods only)
	var outcome *payment.Outcome
	if method.Online() {
		out := r.router.Pay(ctx, method, breakdown.GrandTotal, orderRef, session)
		r.audit(ctx, session, orderRef, out)

		switch out.Status {
		case payment.StatusCancelled:
			r.publishCancelled(ctx, session, orderRef, out)
			return r.finish(Result{
				State:     StatePaymentCancelled,
				OrderRef:  orderRef,
				Breakdown: breakdown,
				Message:   out.Reason,
				Outcome:   &out,
			})
		case payment.StatusFailed:
			r.publishFailed(ctx, session, orderRef, breakdown.GrandTotal, out)
			state := StatePaymentFailed
			if out.Kind == payment.ErrKindAlreadyInProgress {
				state = StateAlreadyInProgress
			}
			return r.finish(Result{
				State:     state,
				OrderRef:  orderRef,
				Breakdown: breakdown,
				Message:   out.Message,
				Outcome:   &out,
			})
		}
		outcome = &out
	}

	// CreatingOrder
	orderReq, err := r.assembler.BuildOrderRequest(cart, address, method, outcome)
	if err != nil {
		return r.finish(r.failOrderCreation(ctx, session, orderRef, breakdown, outcome, err))
	}

	orderID, err := r.backend.CreateOrder(ctx, session, orderReq)
	if err != nil {
		return r.finish(r.failOrderCreation(ctx, session, orderRef, breakdown, outcome, err))
	}

	// Confirmed
	if r.cache != nil {
		if err := r.cache.InvalidateCart(ctx, session.SessionID); err != nil {
			r.logger.Warn("Failed to invalidate cart cache", zap.Error(err))
		}
	}
	r.publishCompleted(ctx, session, orderRef, orderID, method, breakdown, outcome)

	r.logger.Info("Checkout confirmed",
		zap.String("order_ref", orderRef),
		zap.String("order_id", orderID),
		zap.String("method", string(method.Kind)))

	return r.finish(Result{
		State:     StateConfirmed,
		OrderRef:  orderRef,
		OrderID:   orderID,
		Breakdown: breakdown,
		Outcome:   outcome,
	})
}

// validate runs the Validating phase: fresh cart, selected address
// present in the fetched list, non-blank phone. Failures name the
// missing field.
func (r *Reconciler) validate(ctx context.Context, session models.SessionContext, addressID string) (models.CartSnapshot, models.Address, string, Result, bool) {
	fail := func(field, msg string) (models.CartSnapshot, models.Address, string, Result, bool) {
		return models.CartSnapshot{}, models.Address{}, "", Result{
			State:        StateValidationFailed,
			MissingField: field,
			Message:      msg,
		}, false
	}

	cart, err := r.backend.GetCart(ctx, session)
	if err != nil {
		return fail("items", backendMessage(err, "could not load cart"))
	}
	if cart.Empty() {
		return fail("items", "cart is empty")
	}

	addresses, err := r.backend.GetAddresses(ctx, session)
	if err != nil {
		return fail("address", backendMessage(err, "could not load addresses"))
	}

	var address *models.Address
	for i := range addresses {
		if addresses[i].ID == addressID {
			address = &addresses[i]
			break
		}
	}
	if address == nil {
		return fail("address", "selected address is not in the address list")
	}

	phone := strings.TrimSpace(address.Phone)
	if phone == "" {
		profile, err := r.backend.GetProfile(ctx, session)
		if err == nil {
			phone = strings.TrimSpace(profile.Phone)
		}
	}
	if phone == "" {
		return fail("phone", "a contact phone number is required")
	}

	return cart, *address, phone, Result{}, true
}

// failOrderCreation resolves the CreatingOrder failure exit. When an
// online payment already succeeded the user has been charged: a
// reconciliation case is opened and surfaced distinctly.
func (r *Reconciler) failOrderCreation(ctx context.Context, session models.SessionContext, orderRef string, breakdown models.PriceBreakdown, outcome *payment.Outcome, cause error) Result {
	result := Result{
		State:     StateOrderCreationFailed,
		OrderRef:  orderRef,
		Breakdown: breakdown,
		Message:   backendMessage(cause, cause.Error()),
		Outcome:   outcome,
	}

	charged := outcome != nil && outcome.Status == payment.StatusSucceeded
	if !charged {
		return result
	}

	r.logger.Error("Payment succeeded but order creation failed",
		zap.String("order_ref", orderRef),
		zap.String("tx_id", outcome.TransactionID),
		zap.Error(cause))

	if r.cases != nil {
		caseID, err := r.cases.OpenCase(ctx, &models.ReconciliationCase{
			SessionID:     session.SessionID,
			OrderRef:      orderRef,
			TransactionID: outcome.TransactionID,
			Amount:        outcome.Amount,
			Reason:        result.Message,
		})
		if err != nil {
			r.logger.Error("Failed to open reconciliation case", zap.Error(err))
		} else {
			result.CaseID = caseID
			util.ReconciliationCasesOpened.Inc()
		}
	}

	if r.publisher != nil {
		event := &models.ReconciliationPendingEvent{
			BaseEvent:     newBaseEvent(models.EventTypeReconciliationPending),
			CaseID:        result.CaseID,
			SessionID:     session.SessionID,
			OrderRef:      orderRef,
			TransactionID: outcome.TransactionID,
			Amount:        outcome.Amount,
			Reason:        result.Message,
		}
		if err := r.publisher.PublishReconciliationPending(ctx, event); err != nil {
			r.logger.Error("Failed to publish ReconciliationPending event", zap.Error(err))
		}
	}

	return result
}

func (r *Reconciler) audit(ctx context.Context, session models.SessionContext, orderRef string, out payment.Outcome) {
	if r.cases == nil {
		return
	}
	err := r.cases.RecordAttempt(ctx, &models.PaymentAttempt{
		SessionID:     session.SessionID,
		OrderRef:      orderRef,
		Method:        out.Method,
		Outcome:       string(out.Status),
		TransactionID: out.TransactionID,
		Amount:        out.Amount,
	})
	if err != nil {
		r.logger.Warn("Failed to record payment attempt", zap.Error(err))
	}
}

func (r *Reconciler) publishCancelled(ctx context.Context, session models.SessionContext, orderRef string, out payment.Outcome) {
	if r.publisher == nil {
		return
	}
	event := &models.PaymentCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentCancelled),
		SessionID: session.SessionID,
		OrderRef:  orderRef,
		Method:    out.Method,
		Reason:    out.Reason,
	}
	if err := r.publisher.PublishPaymentCancelled(ctx, event); err != nil {
		r.logger.Error("Failed to publish PaymentCancelled event", zap.Error(err))
	}
}

func (r *Reconciler) publishFailed(ctx context.Context, session models.SessionContext, orderRef string, amount decimal.Decimal, out payment.Outcome) {
	if r.publisher == nil {
		return
	}
	event := &models.PaymentFailedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
		SessionID: session.SessionID,
		OrderRef:  orderRef,
		Method:    out.Method,
		Amount:    amount,
		ErrorKind: string(out.Kind),
		Message:   out.Message,
	}
	if err := r.publisher.PublishPaymentFailed(ctx, event); err != nil {
		r.logger.Error("Failed to publish PaymentFailed event", zap.Error(err))
	}
}

func (r *Reconciler) publishCompleted(ctx context.Context, session models.SessionContext, orderRef, orderID string, method models.PaymentMethod, breakdown models.PriceBreakdown, outcome *payment.Outcome) {
	if r.publisher == nil {
		return
	}
	event := &models.CheckoutCompletedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeCheckoutCompleted),
		SessionID:  session.SessionID,
		OrderRef:   orderRef,
		OrderID:    orderID,
		Method:     method.Kind,
		GrandTotal: breakdown.GrandTotal,
	}
	if outcome != nil {
		event.TransactionID = outcome.TransactionID
	}
	if err := r.publisher.PublishCheckoutCompleted(ctx, event); err != nil {
		r.logger.Error("Failed to publish CheckoutCompleted event", zap.Error(err))
	}
}

func (r *Reconciler) finish(result Result) Result {
	util.CheckoutResultsTotal.WithLabelValues(string(result.State)).Inc()
	return result
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// backendMessage surfaces the storefront backend's message verbatim
// when one exists; otherwise the fallback stands in.
func backendMessage(err error, fallback string) string {
	var backendErr *storefront.BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Message
	}
	return fallback
}
