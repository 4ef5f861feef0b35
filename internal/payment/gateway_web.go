package payment

import (
	"context"
	"fmt"
	"time"

	"checkout-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// minorUnits converts a decimal amount to the gateway's integer minor
// currency units.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// GatewayWebAdapter executes the same gateway contract through a
// browser-hosted checkout page: it creates a payment link and polls
// its status until it resolves. Used both as an explicit user choice
// and as the fallback when the native SDK is absent.
type GatewayWebAdapter struct {
	gateway      GatewayClient
	currency     string
	merchant     string
	callbackURL  string
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewGatewayWebAdapter creates the web adapter.
func NewGatewayWebAdapter(gateway GatewayClient, currency, merchant, callbackURL string, pollInterval time.Duration) *GatewayWebAdapter {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &GatewayWebAdapter{
		gateway:      gateway,
		currency:     currency,
		merchant:     merchant,
		callbackURL:  callbackURL,
		pollInterval: pollInterval,
		logger:       util.GetLogger(),
	}
}

func (g *GatewayWebAdapter) Name() string { return "gateway-web" }

func (g *GatewayWebAdapter) Available() bool { return g.gateway != nil }

// Execute creates the hosted payment link and polls until paid,
// cancelled, expired, or the context ends.
func (g *GatewayWebAdapter) Execute(ctx context.Context, req Request) Outcome {
	if !g.Available() {
		return Failed("", ErrKindGateway, "web gateway not configured")
	}

	link, err := g.gateway.CreatePaymentLink(map[string]interface{}{
		"amount":       minorUnits(req.Amount),
		"currency":     g.currency,
		"reference_id": req.OrderRef,
		"description":  req.Description,
		"customer": map[string]interface{}{
			"name":    req.CustomerName,
			"email":   req.CustomerEmail,
			"contact": req.CustomerPhone,
		},
		"callback_url":    g.callbackURL,
		"callback_method": "get",
	})
	if err != nil {
		return Failed("", ErrKindGateway, fmt.Sprintf("payment link create: %v", err))
	}

	linkID, _ := link["id"].(string)
	shortURL, _ := link["short_url"].(string)
	if linkID == "" {
		return Failed("", ErrKindInvalidResponse, "payment link response missing id")
	}

	g.logger.Info("Hosted checkout link created",
		zap.String("order_ref", req.OrderRef),
		zap.String("link_id", linkID),
		zap.String("url", shortURL))

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Failed("", ErrKindTimeout, "hosted checkout did not complete in time")
		case <-ticker.C:
		}

		current, err := g.gateway.FetchPaymentLink(linkID)
		if err != nil {
			g.logger.Warn("Payment link poll failed",
				zap.String("link_id", linkID),
				zap.Error(err))
			continue
		}

		status, _ := current["status"].(string)
		switch status {
		case "paid":
			paymentID := extractPaymentID(current)
			if paymentID == "" {
				return Failed("", ErrKindInvalidResponse, "paid link carries no payment id")
			}
			return Succeeded("", paymentID, req.Amount, map[string]interface{}{
				"link_id":  linkID,
				"link_url": shortURL,
			})
		case "cancelled":
			return Cancelled("", "hosted checkout cancelled by user")
		case "expired":
			return Failed("", ErrKindGateway, "hosted checkout link expired")
		case "created", "partially_paid", "":
			// keep polling
		default:
			return Failed("", ErrKindUnknownStatus,
				fmt.Sprintf("unrecognized payment link status %q", status))
		}
	}
}

// extractPaymentID digs the captured payment id out of a paid link
// entity.
func extractPaymentID(link map[string]interface{}) string {
	payments, ok := link["payments"].([]interface{})
	if !ok {
		return ""
	}
	for _, p := range payments {
		entry, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		if status, _ := entry["status"].(string); status != "captured" && status != "paid" {
			continue
		}
		if id, _ := entry["payment_id"].(string); id != "" {
			return id
		}
		if id, _ := entry["id"].(string); id != "" {
			return id
		}
	}
	return ""
}
