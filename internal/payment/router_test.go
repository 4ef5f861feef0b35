package payment

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// blockingAdapter holds Execute until released, counting invocations.
type blockingAdapter struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	outcome Outcome
}

func newBlockingAdapter(outcome Outcome) *blockingAdapter {
	return &blockingAdapter{release: make(chan struct{}), outcome: outcome}
}

func (b *blockingAdapter) Name() string    { return "blocking" }
func (b *blockingAdapter) Available() bool { return true }

func (b *blockingAdapter) Execute(ctx context.Context, _ Request) Outcome {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	select {
	case <-b.release:
		return b.outcome
	case <-ctx.Done():
		return Failed("", ErrKindTimeout, "ctx done")
	}
}

func (b *blockingAdapter) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func session() models.SessionContext {
	return models.SessionContext{
		SessionID: "sess-1",
		Name:      "Asha",
		Email:     "asha@example.com",
		Phone:     "9999999999",
	}
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRouter_ZeroAmountFailsFast(t *testing.T) {
	adapter := newBlockingAdapter(Succeeded("", "t", amount("1"), nil))
	router := NewRouter(map[models.MethodKind]Adapter{
		models.MethodUpiApp: adapter,
	}, nil, time.Second)

	out := router.Pay(context.Background(), models.PaymentMethod{Kind: models.MethodUpiApp}, amount("0"), "ord-1", session())

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ErrKindValidation, out.Kind)
	assert.Equal(t, 0, adapter.callCount(), "adapter must not run on validation failure")
}

func TestRouter_InvalidVPAFailsFast(t *testing.T) {
	adapter := newBlockingAdapter(Succeeded("", "t", amount("1"), nil))
	router := NewRouter(map[models.MethodKind]Adapter{
		models.MethodUpiCustomID: adapter,
	}, nil, time.Second)

	for _, vpa := range []string{"", "no-handle", "@bank", "user@", "user@@bank"} {
		out := router.Pay(context.Background(),
			models.PaymentMethod{Kind: models.MethodUpiCustomID, VPA: vpa},
			amount("10"), "ord-1", session())

		require.Equal(t, StatusFailed, out.Status, "vpa %q", vpa)
		assert.Equal(t, ErrKindValidation, out.Kind, "vpa %q", vpa)
	}
	assert.Equal(t, 0, adapter.callCount())
}

func TestRouter_ValidVPADispatches(t *testing.T) {
	mock := NewMockAdapter(1.0, 0, seededRand(7))
	router := NewRouter(map[models.MethodKind]Adapter{
		models.MethodUpiCustomID: mock,
	}, nil, time.Second)

	out := router.Pay(context.Background(),
		models.PaymentMethod{Kind: models.MethodUpiCustomID, VPA: "friend@okbank"},
		amount("10"), "ord-1", session())

	assert.Equal(t, StatusSucceeded, out.Status)
	assert.Equal(t, models.MethodUpiCustomID, out.Method)
}

func TestRouter_GatewayRequiresIdentity(t *testing.T) {
	adapter := newBlockingAdapter(Succeeded("", "t", amount("1"), nil))
	router := NewRouter(map[models.MethodKind]Adapter{
		models.MethodGatewayNative: adapter,
	}, nil, time.Second)

	anon := session()
	anon.Email = ""

	out := router.Pay(context.Background(),
		models.PaymentMethod{Kind: models.MethodGatewayNative},
		amount("10"), "ord-1", anon)

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ErrKindValidation, out.Kind)
	assert.Equal(t, 0, adapter.callCount())
}

func TestRouter_DisabledMethodsRejected(t *testing.T) {
	router := NewRouter(map[models.MethodKind]Adapter{}, nil, time.Second)

	for _, kind := range []models.MethodKind{models.MethodCard, models.MethodWallet} {
		out := router.Pay(context.Background(),
			models.PaymentMethod{Kind: kind}, amount("10"), "ord-1", session())

		require.Equal(t, StatusFailed, out.Status)
		assert.Equal(t, ErrKindUnsupported, out.Kind)
	}
}

func TestRouter_SingleInFlightPerSession(t *testing.T) {
	adapter := newBlockingAdapter(Succeeded("", "t1", amount("10"), nil))
	router := NewRouter(map[models.MethodKind]Adapter{
		models.MethodUpiApp: adapter,
	}, nil, 5*time.Second)

	method := models.PaymentMethod{Kind: models.MethodUpiApp}

	firstDone := make(chan Outcome, 1)
	go func() {
		firstDone <- router.Pay(context.Background(), method, amount("10"), "ord-1", session())
	}()

	// Wait for the first attempt to reach the adapter.
	require.Eventually(t, func() bool { return adapter.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	second := router.Pay(context.Background(), method, amount("10"), "ord-2", session())
	require.Equal(t, StatusFailed, second.Status)
	assert.Equal(t, ErrKindAlreadyInProgress, second.Kind)
	assert.Equal(t, 1, adapter.callCount(), "second attempt must not reach the adapter")

	close(adapter.release)
	first := <-firstDone
	assert.Equal(t, StatusSucceeded, first.Status)

	// After the first resolves, the session may pay again.
	third := router.Pay(context.Background(), method, amount("10"), "ord-3", session())
	assert.Equal(t, StatusSucceeded, third.Status)
}

func TestRouter_WatchdogConvertsStallToTimeout(t *testing.T) {
	adapter := newBlockingAdapter(Succeeded("", "t", amount("10"), nil))
	router := NewRouter(map[models.MethodKind]Adapter{
		models.MethodGatewayWeb: adapter,
	}, nil, 20*time.Millisecond)

	out := router.Pay(context.Background(),
		models.PaymentMethod{Kind: models.MethodGatewayWeb},
		amount("10"), "ord-1", session())

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ErrKindTimeout, out.Kind)
	close(adapter.release)
}

func TestRouter_UnregisteredMethod(t *testing.T) {
	router := NewRouter(map[models.MethodKind]Adapter{}, nil, time.Second)

	out := router.Pay(context.Background(),
		models.PaymentMethod{Kind: models.MethodUpiApp},
		amount("10"), "ord-1", session())

	require.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ErrKindUnsupported, out.Kind)
}

func TestRouter_StampsMethodOnOutcome(t *testing.T) {
	mock := NewMockAdapter(0.0, 0, seededRand(3))
	router := NewRouter(map[models.MethodKind]Adapter{
		models.MethodUpiApp: mock,
	}, nil, time.Second)

	out := router.Pay(context.Background(),
		models.PaymentMethod{Kind: models.MethodUpiApp, AppID: "gpay"},
		amount("10"), "ord-1", session())

	assert.Equal(t, models.MethodUpiApp, out.Method)
}
