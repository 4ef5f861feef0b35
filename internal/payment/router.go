package payment

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// vpaPattern matches localpart@handle virtual payment addresses.
var vpaPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*@[a-zA-Z][a-zA-Z0-9]*$`)

// Locker guards against cross-instance double submission. The redis
// client satisfies it; a nil locker degrades to the in-process guard
// alone.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Router validates payment preconditions, dispatches the chosen
// adapter, and normalizes every result into one Outcome shape.
// Adapter-specific faults never leak past this boundary.
type Router struct {
	adapters map[models.MethodKind]Adapter
	locker   Locker
	timeout  time.Duration
	inflight sync.Map
	logger   *zap.Logger
}

// NewRouter creates a router with the adapter registry. timeout is
// the watchdog bound on a single adapter call; the underlying SDKs do
// not guarantee one of their own.
func NewRouter(adapters map[models.MethodKind]Adapter, locker Locker, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Router{
		adapters: adapters,
		locker:   locker,
		timeout:  timeout,
		logger:   util.GetLogger(),
	}
}

// Pay obtains a payment outcome for the given method and amount.
// Precondition failures resolve without touching any adapter. At most
// one attempt may be in flight per session.
func (r *Router) Pay(ctx context.Context, method models.PaymentMethod, amount decimal.Decimal, orderRef string, session models.SessionContext) Outcome {
	ctx, span := util.StartSpan(ctx, "Router.Pay")
	defer span.End()

	if out, ok := r.checkPreconditions(method, amount, session); !ok {
		util.PaymentOutcomesTotal.WithLabelValues(string(method.Kind), string(out.Status)).Inc()
		return r.stamp(out, method)
	}

	adapter, ok := r.adapters[method.Kind]
	if !ok {
		// A method with no registered adapter is a programming error,
		// not a user-correctable one.
		return r.stamp(Failed("", ErrKindUnsupported,
			fmt.Sprintf("no adapter registered for method %s", method.Kind)), method)
	}

	if _, loaded := r.inflight.LoadOrStore(session.SessionID, orderRef); loaded {
		r.logger.Warn("Rejected concurrent payment attempt",
			zap.String("session_id", session.SessionID),
			zap.String("order_ref", orderRef))
		return r.stamp(Failed("", ErrKindAlreadyInProgress,
			"a payment attempt is already in progress"), method)
	}
	defer r.inflight.Delete(session.SessionID)

	if r.locker != nil {
		lockKey := fmt.Sprintf("payment:%s", session.SessionID)
		acquired, err := r.locker.AcquireLock(ctx, lockKey, r.timeout+10*time.Second)
		if err != nil {
			r.logger.Warn("Payment lock unavailable, relying on in-process guard",
				zap.Error(err))
		} else if !acquired {
			return r.stamp(Failed("", ErrKindAlreadyInProgress,
				"a payment attempt is already in progress"), method)
		} else {
			defer func() {
				if err := r.locker.ReleaseLock(context.Background(), lockKey); err != nil {
					r.logger.Error("Failed to release payment lock", zap.Error(err))
				}
			}()
		}
	}

	req := Request{
		Amount:        amount,
		OrderRef:      orderRef,
		CustomerName:  session.Name,
		CustomerEmail: session.Email,
		CustomerPhone: session.Phone,
		Description:   fmt.Sprintf("Order %s", orderRef),
		Metadata:      methodMetadata(method),
	}

	util.PaymentAttemptsTotal.WithLabelValues(string(method.Kind)).Inc()
	start := time.Now()

	out := r.dispatch(ctx, adapter, req)
	out = r.stamp(out, method)

	util.PaymentLatency.WithLabelValues(string(method.Kind)).Observe(time.Since(start).Seconds())
	util.PaymentOutcomesTotal.WithLabelValues(string(method.Kind), string(out.Status)).Inc()

	r.logger.Info("Payment attempt resolved",
		zap.String("order_ref", orderRef),
		zap.String("method", string(method.Kind)),
		zap.String("status", string(out.Status)),
		zap.String("tx_id", out.TransactionID))

	return out
}

// dispatch runs the adapter under the watchdog deadline; a stalled
// call resolves as a timeout failure.
func (r *Router) dispatch(ctx context.Context, adapter Adapter, req Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		done <- adapter.Execute(ctx, req)
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		r.logger.Error("Payment adapter stalled past watchdog deadline",
			zap.String("adapter", adapter.Name()),
			zap.String("order_ref", req.OrderRef))
		return Failed("", ErrKindTimeout,
			fmt.Sprintf("payment via %s timed out", adapter.Name()))
	}
}

// checkPreconditions fails fast before any adapter is invoked.
func (r *Router) checkPreconditions(method models.PaymentMethod, amount decimal.Decimal, session models.SessionContext) (Outcome, bool) {
	if method.Disabled() {
		return Failed("", ErrKindUnsupported,
			fmt.Sprintf("payment method %s is not offered", method.Kind)), false
	}

	if !amount.IsPositive() {
		return Failed("", ErrKindValidation, "payment amount must be positive"), false
	}

	if method.Kind == models.MethodUpiCustomID && !vpaPattern.MatchString(method.VPA) {
		return Failed("", ErrKindValidation,
			fmt.Sprintf("invalid virtual payment address %q", method.VPA)), false
	}

	if method.Kind == models.MethodGatewayNative || method.Kind == models.MethodGatewayWeb {
		if session.Name == "" || session.Email == "" {
			return Failed("", ErrKindValidation,
				"online gateway payments require a billing name and email"), false
		}
	}

	return Outcome{}, true
}

// stamp sets the method on an outcome so callers always see which
// method produced it, regardless of fallback delegation.
func (r *Router) stamp(out Outcome, method models.PaymentMethod) Outcome {
	out.Method = method.Kind
	return out
}

func methodMetadata(method models.PaymentMethod) map[string]string {
	meta := map[string]string{}
	if method.VPA != "" {
		meta[MetaUpiVPA] = method.VPA
	}
	if method.AppID != "" {
		meta[MetaUpiApp] = method.AppID
	}
	return meta
}
