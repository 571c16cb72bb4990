package couponsvc

import (
	"context"
	"errors"

	"tokokasir/backend/internal/domain"
)

var ErrNotFound = errors.New("coupon not found")

// Client is the consumed Coupon Service contract. CheckUsage returns
// ErrNotFound for unknown codes; a returned usage with CanUse=false means
// the code exists but may not be redeemed.
type Client interface {
	CheckUsage(ctx context.Context, code string) (*domain.CouponUsage, error)
}
