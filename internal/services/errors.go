package services

import "errors"

// Sentinel errors surfaced to handlers. Handlers match with errors.Is and map
// them to HTTP status codes; the wrapped message carries the detail shown to
// the caller.
var (
	// ErrEmptyCart rejects a checkout with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrProductNotFound rejects a checkout referencing an unknown product.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock rejects a checkout requesting more units than are
	// in stock. The wrapping message names the product and the units left.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNothingToSettle means every cart line was dropped at settlement
	// (all products deleted since checkout); no order is created.
	ErrNothingToSettle = errors.New("no cart lines left to settle")
	// ErrForbidden means the requester may not access the resource.
	ErrForbidden = errors.New("forbidden")
)
