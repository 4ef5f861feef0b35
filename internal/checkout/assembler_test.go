package checkout

import (
	"errors"
	"testing"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBuildOrderRequest_ResolvesProductInOrder(t *testing.T) {
	assembler := NewAssembler()

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "line-1", Product: &models.ProductRef{ID: "prod-embedded"}, ProductID: "prod-flat", Quantity: 1, UnitPrice: dec("10")},
		{ID: "line-2", ProductID: "prod-flat", Quantity: 2, UnitPrice: dec("5")},
		{ID: "line-3", Quantity: 3, UnitPrice: dec("1")},
	}}

	req, err := assembler.BuildOrderRequest(cart, models.Address{ID: "a1"},
		models.PaymentMethod{Kind: models.MethodCashOnDelivery}, nil)
	require.NoError(t, err)
	require.Len(t, req.Items, 3)

	assert.Equal(t, "prod-embedded", req.Items[0].Product)
	assert.Equal(t, "prod-flat", req.Items[1].Product)
	assert.Equal(t, "line-3", req.Items[2].Product)
	assert.True(t, req.ClearCart)
	assert.Nil(t, req.PaymentConfirmation)
}

func TestBuildOrderRequest_MissingProductID(t *testing.T) {
	assembler := NewAssembler()

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{Name: "orphan", Quantity: 1, UnitPrice: dec("10")},
	}}

	_, err := assembler.BuildOrderRequest(cart, models.Address{ID: "a1"},
		models.PaymentMethod{Kind: models.MethodCashOnDelivery}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingProductID))
}

func TestBuildOrderRequest_InvalidQuantity(t *testing.T) {
	assembler := NewAssembler()

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", ProductID: "p1", Quantity: 0, UnitPrice: dec("10")},
	}}

	_, err := assembler.BuildOrderRequest(cart, models.Address{ID: "a1"},
		models.PaymentMethod{Kind: models.MethodCashOnDelivery}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidQuantity))
}

func TestBuildOrderRequest_AttachesConfirmationForOnlineSuccess(t *testing.T) {
	assembler := NewAssembler()

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", ProductID: "p1", Quantity: 1, UnitPrice: dec("284.50")},
	}}

	ts := time.Now().UTC()
	outcome := payment.Outcome{
		Status:        payment.StatusSucceeded,
		TransactionID: "TXN-1",
		Amount:        dec("284.50"),
		Timestamp:     ts,
	}

	req, err := assembler.BuildOrderRequest(cart, models.Address{ID: "a1"},
		models.PaymentMethod{Kind: models.MethodUpiApp, AppID: "gpay"}, &outcome)
	require.NoError(t, err)
	require.NotNil(t, req.PaymentConfirmation)
	assert.Equal(t, "TXN-1", req.PaymentConfirmation.TransactionID)
	assert.True(t, req.PaymentConfirmation.Amount.Equal(dec("284.50")))
	assert.Equal(t, ts, req.PaymentConfirmation.Timestamp)
}

func TestBuildOrderRequest_NoConfirmationForCash(t *testing.T) {
	assembler := NewAssembler()

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", ProductID: "p1", Quantity: 1, UnitPrice: dec("10")},
	}}

	outcome := payment.Outcome{Status: payment.StatusSucceeded, TransactionID: "TXN-x"}
	req, err := assembler.BuildOrderRequest(cart, models.Address{ID: "a1"},
		models.PaymentMethod{Kind: models.MethodCashOnDelivery}, &outcome)
	require.NoError(t, err)
	assert.Nil(t, req.PaymentConfirmation)
}

func TestBuildOrderRequest_CarriesVariation(t *testing.T) {
	assembler := NewAssembler()

	cart := models.CartSnapshot{Lines: []models.CartLine{
		{ID: "l1", ProductID: "p1", Quantity: 1, UnitPrice: dec("10"), Variation: "size-m"},
	}}

	req, err := assembler.BuildOrderRequest(cart, models.Address{ID: "a1"},
		models.PaymentMethod{Kind: models.MethodCashOnDelivery}, nil)
	require.NoError(t, err)
	assert.Equal(t, "size-m", req.Items[0].Variation)
}
