package cart

import "github.com/pkg/errors"

// Validation failures are returned synchronously and leave the cart unchanged.
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrStockExceeded   = errors.New("requested quantity exceeds available stock")
	ErrProductNotFound = errors.New("product not in cart")
	ErrInvalidProduct  = errors.New("product id is required")
)

// ErrPersistence wraps load and save failures. They are reported, never returned
// from a mutation, and never roll the in-memory cart back.
var ErrPersistence = errors.New("cart persistence failed")
