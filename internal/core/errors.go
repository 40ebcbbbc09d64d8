package core

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")

	// ErrStatsMissing means a decrement targeted a statistics record that no
	// increment ever created; the aggregate is inconsistent with the orders.
	ErrStatsMissing = errors.New("statistics record missing")

	ErrStatusConflict    = errors.New("order status changed concurrently")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrEmptyCart         = errors.New("cart is empty")
)
