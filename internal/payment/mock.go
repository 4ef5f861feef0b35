package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"checkout-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockAdapter simulates a payment backend with a configured success
// rate and delay. It doubles as the universal fallback when a real
// backend is unavailable and as the test double for the router.
type MockAdapter struct {
	successRate float64
	delay       time.Duration
	rng         *rand.Rand
	logger      *zap.Logger
}

// NewMockAdapter creates a mock adapter. A nil rng falls back to a
// time-seeded source; tests pass a seeded one for determinism.
func NewMockAdapter(successRate float64, delay time.Duration, rng *rand.Rand) *MockAdapter {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MockAdapter{
		successRate: successRate,
		delay:       delay,
		rng:         rng,
		logger:      util.GetLogger(),
	}
}

func (m *MockAdapter) Name() string { return "mock" }

// Available always reports true: the mock is the backend of last resort.
func (m *MockAdapter) Available() bool { return true }

// Execute resolves after the configured delay with a simulated outcome.
func (m *MockAdapter) Execute(ctx context.Context, req Request) Outcome {
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return Failed("", ErrKindTimeout, "simulated payment interrupted")
	}

	if m.rng.Float64() < m.successRate {
		txnID := fmt.Sprintf("TXN-%s", uuid.New().String()[:8])
		m.logger.Info("Simulated payment succeeded",
			zap.String("order_ref", req.OrderRef),
			zap.String("tx_id", txnID))
		return Succeeded("", txnID, req.Amount, map[string]interface{}{"simulated": true})
	}

	m.logger.Warn("Simulated payment declined", zap.String("order_ref", req.OrderRef))
	return Failed("", ErrKindSimulated, "mock_payment_declined")
}
