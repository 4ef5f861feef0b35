package payment

import (
	"context"
	"fmt"

	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// GatewayNativeAdapter drives a payment through the in-process
// gateway SDK: it creates a gateway order server-side, then waits on
// the front-channel completion relay for the checkout result. When
// the SDK is not usable it transparently delegates to the web
// adapter.
type GatewayNativeAdapter struct {
	gateway    GatewayClient
	completion CompletionSource
	currency   string
	merchant   string
	fallback   Adapter
	logger     *zap.Logger
}

// NewGatewayNativeAdapter creates the native adapter. gateway may be
// nil (credentials absent); Available then reports false and Execute
// falls through to fallback.
func NewGatewayNativeAdapter(gateway GatewayClient, completion CompletionSource, currency, merchant string, fallback Adapter) *GatewayNativeAdapter {
	return &GatewayNativeAdapter{
		gateway:    gateway,
		completion: completion,
		currency:   currency,
		merchant:   merchant,
		fallback:   fallback,
		logger:     util.GetLogger(),
	}
}

func (g *GatewayNativeAdapter) Name() string { return "gateway-native" }

// Available probes whether the SDK client and completion relay are
// wired.
func (g *GatewayNativeAdapter) Available() bool {
	return g.gateway != nil && g.completion != nil
}

// Execute creates the gateway order and resolves the front-channel
// completion into an outcome. A dismissed checkout surfaces as
// Cancelled, never Failed.
func (g *GatewayNativeAdapter) Execute(ctx context.Context, req Request) Outcome {
	if !g.Available() {
		g.logger.Info("Native gateway SDK unavailable, delegating to web checkout",
			zap.String("order_ref", req.OrderRef))
		return g.fallback.Execute(ctx, req)
	}

	order, err := g.gateway.CreateOrder(map[string]interface{}{
		"amount":   minorUnits(req.Amount),
		"currency": g.currency,
		"receipt":  req.OrderRef,
		"notes": map[string]interface{}{
			"customer_name":  req.CustomerName,
			"customer_email": req.CustomerEmail,
			"description":    req.Description,
		},
	})
	if err != nil {
		return Failed("", ErrKindGateway, fmt.Sprintf("gateway order create: %v", err))
	}

	gatewayOrderID, _ := order["id"].(string)
	if gatewayOrderID == "" {
		return Failed("", ErrKindInvalidResponse, "gateway order response missing id")
	}

	g.logger.Info("Gateway order created, awaiting checkout completion",
		zap.String("order_ref", req.OrderRef),
		zap.String("gateway_order_id", gatewayOrderID))

	done, err := g.completion.Await(ctx, req.OrderRef)
	if err != nil {
		return Failed("", ErrKindTimeout, "gateway checkout did not complete in time")
	}

	if done.Dismissed {
		reason := done.Reason
		if reason == "" {
			reason = "checkout dismissed by user"
		}
		return Cancelled("", reason)
	}

	if done.PaymentID == "" || done.OrderID == "" || done.Signature == "" {
		return Failed("", ErrKindInvalidResponse,
			"gateway success response missing payment id, order id, or signature")
	}

	if !g.gateway.VerifyPaymentSignature(done.OrderID, done.PaymentID, done.Signature) {
		return Failed("", ErrKindInvalidResponse, "gateway payment signature mismatch")
	}

	return Succeeded("", done.PaymentID, req.Amount, map[string]interface{}{
		"gateway_order_id": done.OrderID,
		"signature":        done.Signature,
	})
}
