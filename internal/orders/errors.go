package orders

import (
	"errors"
	"fmt"
)

// Error messages classified as user errors are shown verbatim on the
// storefront, so they are written for shoppers, not for logs.
var (
	ErrNoItems               = errors.New("Order must have at least one item")
	ErrOrderNotFound         = errors.New("Order not found")
	ErrConcurrentStockChange = errors.New("Stock changed while placing your order, please try again")
	ErrPromoInvalid          = errors.New("Promo code is invalid or no longer active")
	ErrOrderWriteFailed      = errors.New("order insert not acknowledged")
	ErrInvalidTransition     = errors.New("status transition not allowed")
)

// LineItemError marks one malformed entry in the checkout payload.
type LineItemError struct {
	Index  int
	Reason string
}

func (e *LineItemError) Error() string {
	return fmt.Sprintf("Item %d: %s", e.Index+1, e.Reason)
}

type ProductNotFoundError struct {
	ProductID string
	Size      string
}

func (e *ProductNotFoundError) Error() string {
	if e.Size != "" {
		return fmt.Sprintf("Product %s (Size %s) not found", e.ProductID, e.Size)
	}
	return fmt.Sprintf("Product %s not found", e.ProductID)
}

type InsufficientStockError struct {
	ProductName string
	Size        string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient quantity for product %s (Size %s). Available: %d",
		e.ProductName, e.Size, e.Available)
}

// IsUserError reports whether err is caused by the request itself (as
// opposed to the store or the transaction machinery) and is safe to show to
// the shopper.
func IsUserError(err error) bool {
	var li *LineItemError
	var nf *ProductNotFoundError
	var is *InsufficientStockError
	return errors.Is(err, ErrNoItems) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPromoInvalid) ||
		errors.Is(err, ErrConcurrentStockChange) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.As(err, &li) || errors.As(err, &nf) || errors.As(err, &is)
}

// IsConflict reports stock contention errors, mapped to 409 by the HTTP
// layer: the request was well-formed but lost to inventory state.
func IsConflict(err error) bool {
	var is *InsufficientStockError
	return errors.Is(err, ErrConcurrentStockChange) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.As(err, &is)
}
