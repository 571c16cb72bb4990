package checkout

import "errors"

var (
	// ErrStockInsufficient is returned when an add or increment would push
	// a line past its stock cap. The cart is left unchanged.
	ErrStockInsufficient = errors.New("insufficient stock")
	// ErrLineNotFound is returned when a quantity update targets a SKU that
	// is not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidCoupon covers unknown codes and codes the coupon service
	// reports as unusable.
	ErrInvalidCoupon         = errors.New("invalid coupon")
	ErrCouponAlreadyApplied  = errors.New("coupon already applied")
	ErrDiscountAlreadyActive = errors.New("a discount coupon is already active")
	ErrEmptyCart             = errors.New("cart is empty")
	// ErrNothingToRestore is returned when every item of a saved
	// transaction is unavailable at restore time.
	ErrNothingToRestore = errors.New("nothing to restore")
	// ErrPersistence wraps failures from the transaction store. Local
	// session state is never changed when it is returned.
	ErrPersistence = errors.New("persistence failure")
)
