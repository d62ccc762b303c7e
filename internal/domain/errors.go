package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrOutOfStock        = errors.New("out of stock")
	ErrNotEnoughStock    = errors.New("not enough stock")
	ErrInvalidCoupon     = errors.New("invalid coupon code")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OutOfStockError names the first cart line that could not be fulfilled.
type OutOfStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s is out of stock (product %d: requested %d, available %d)",
		e.ProductName, e.ProductID, e.Requested, e.Available)
}

func (e *OutOfStockError) Is(target error) bool {
	return target == ErrOutOfStock
}
