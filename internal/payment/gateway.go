package payment

import (
	"context"
	"sync"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// GatewayClient is the slice of the payment-gateway SDK the adapters
// use. Production wraps razorpay-go; tests substitute a fake.
type GatewayClient interface {
	CreateOrder(data map[string]interface{}) (map[string]interface{}, error)
	CreatePaymentLink(data map[string]interface{}) (map[string]interface{}, error)
	FetchPaymentLink(id string) (map[string]interface{}, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

type razorpayGateway struct {
	client *razorpay.Client
	secret string
}

// NewRazorpayGateway wraps the razorpay SDK behind GatewayClient.
// Returns nil when credentials are absent so the native adapter's
// availability probe fails cleanly.
func NewRazorpayGateway(keyID, keySecret string) GatewayClient {
	if keyID == "" || keySecret == "" {
		return nil
	}
	return &razorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		secret: keySecret,
	}
}

func (g *razorpayGateway) CreateOrder(data map[string]interface{}) (map[string]interface{}, error) {
	return g.client.Order.Create(data, nil)
}

func (g *razorpayGateway) CreatePaymentLink(data map[string]interface{}) (map[string]interface{}, error) {
	return g.client.PaymentLink.Create(data, nil)
}

func (g *razorpayGateway) FetchPaymentLink(id string) (map[string]interface{}, error) {
	return g.client.PaymentLink.Fetch(id, nil, nil)
}

func (g *razorpayGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, g.secret)
}

// Completion is the front-channel result of a native gateway checkout:
// either the success triple or a dismissal.
type Completion struct {
	PaymentID string
	OrderID   string
	Signature string
	Dismissed bool
	Reason    string
}

// CompletionSource delivers gateway checkout completions keyed by
// order ref.
type CompletionSource interface {
	Await(ctx context.Context, orderRef string) (Completion, error)
}

// CallbackRelay is an in-process CompletionSource fed by the HTTP
// callback handler.
type CallbackRelay struct {
	mu      sync.Mutex
	waiters map[string]chan Completion
}

// NewCallbackRelay creates an empty relay.
func NewCallbackRelay() *CallbackRelay {
	return &CallbackRelay{waiters: make(map[string]chan Completion)}
}

// Await blocks until Resolve delivers a completion for orderRef or
// the context ends.
func (r *CallbackRelay) Await(ctx context.Context, orderRef string) (Completion, error) {
	r.mu.Lock()
	ch, ok := r.waiters[orderRef]
	if !ok {
		ch = make(chan Completion, 1)
		r.waiters[orderRef] = ch
	}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.waiters, orderRef)
		r.mu.Unlock()
	}()

	select {
	case c := <-ch:
		return c, nil
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// Resolve delivers a completion to the waiter for orderRef, if any.
// Returns false when nobody is waiting.
func (r *CallbackRelay) Resolve(orderRef string, c Completion) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.waiters[orderRef]
	if !ok {
		return false
	}
	select {
	case ch <- c:
		return true
	default:
		return false
	}
}
