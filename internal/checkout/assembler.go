package checkout

import (
	"errors"
	"fmt"

	"checkout-service/internal/models"
	"checkout-service/internal/payment"
)

// ErrMissingProductID marks a cart line whose product reference could
// not be resolved. Raised before any order network call.
var ErrMissingProductID = errors.New("cart line has no resolvable product id")

// ErrInvalidQuantity marks a cart line with a non-positive quantity.
var ErrInvalidQuantity = errors.New("cart line has non-positive quantity")

// Assembler maps a validated cart, address, and payment outcome into
// the backend order-creation payload.
type Assembler struct{}

// NewAssembler creates an order assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// BuildOrderRequest builds the order payload. outcome is nil for cash
// flows; for online flows it must be a succeeded outcome, whose
// confirmation block is attached to the payload.
func (a *Assembler) BuildOrderRequest(cart models.CartSnapshot, address models.Address, method models.PaymentMethod, outcome *payment.Outcome) (models.OrderRequest, error) {
	items := make([]models.OrderItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		productID := resolveProductID(line)
		if productID == "" {
			return models.OrderRequest{}, fmt.Errorf("line %q: %w", line.Name, ErrMissingProductID)
		}
		if line.Quantity <= 0 {
			return models.OrderRequest{}, fmt.Errorf("line %q: %w", line.Name, ErrInvalidQuantity)
		}
		items = append(items, models.OrderItem{
			Product:   productID,
			Quantity:  line.Quantity,
			Variation: line.Variation,
		})
	}

	req := models.OrderRequest{
		DeliveryAddress: address,
		PaymentMethod:   method.Kind,
		Items:           items,
		ClearCart:       true,
	}

	if method.Online() && outcome != nil && outcome.Status == payment.StatusSucceeded {
		req.PaymentConfirmation = &models.PaymentConfirmation{
			TransactionID: outcome.TransactionID,
			Amount:        outcome.Amount,
			Timestamp:     outcome.Timestamp,
		}
	}

	return req, nil
}

// resolveProductID tries, in order, the embedded product object id,
// the plain product-id field, then the line's own id.
func resolveProductID(line models.CartLine) string {
	if line.Product != nil && line.Product.ID != "" {
		return line.Product.ID
	}
	if line.ProductID != "" {
		return line.ProductID
	}
	return line.ID
}
