package utils

import (
	"errors"
	"fmt"
)

// Common application errors used across services.
var (
	ErrFetchFailed             = errors.New("FETCH_ERROR")
	ErrNoValidPricingData      = errors.New("NO_VALID_PRICING_DATA")
	ErrCartFailed              = errors.New("CART_ERROR")
	ErrDiscountFailed          = errors.New("DISCOUNT_ERROR")
	ErrConstraintUnsatisfiable = errors.New("CONSTRAINT_UNSATISFIABLE")
	ErrStaleEvent              = errors.New("STALE_EVENT")
	ErrInvalidEvent            = errors.New("INVALID_EVENT")
	ErrCheckoutInProgress      = errors.New("CHECKOUT_IN_PROGRESS")
	ErrNothingToCheckout       = errors.New("NOTHING_TO_CHECKOUT")
	ErrSessionNotFound         = errors.New("SESSION_NOT_FOUND")
	ErrBundleDisabled          = errors.New("BUNDLE_DISABLED")
	ErrCheckoutNotFound        = errors.New("CHECKOUT_NOT_FOUND")
	ErrInvalidToken            = errors.New("INVALID_TOKEN")
)

// FetchError reports a catalog fetch that failed or returned an unusable
// payload.
type FetchError struct {
	Handle string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch product %q: %v", e.Handle, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// CartError reports a rejected or failed cart mutation.
type CartError struct {
	Status  int
	Message string
	Err     error
}

func (e *CartError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cart request failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("cart request failed (status %d): %v", e.Status, e.Err)
}

func (e *CartError) Unwrap() error { return e.Err }

func (e *CartError) Is(target error) bool { return target == ErrCartFailed }

// DiscountError reports a discount code the cart did not accept.
type DiscountError struct {
	Code string
	Err  error
}

func (e *DiscountError) Error() string {
	return fmt.Sprintf("apply discount %q: %v", e.Code, e.Err)
}

func (e *DiscountError) Unwrap() error { return e.Err }

func (e *DiscountError) Is(target error) bool { return target == ErrDiscountFailed }
