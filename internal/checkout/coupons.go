package checkout

import (
	"math"

	"tokokasir/backend/internal/domain"
)

// CouponSet is the active coupon collection for one session. Voucher
// coupons stack; at most one discount (percentage) coupon may be active,
// and a code may appear at most once.
type CouponSet struct {
	coupons []domain.AppliedCoupon
}

func (s *CouponSet) Contains(code string) bool {
	for _, c := range s.coupons {
		if c.Code == code {
			return true
		}
	}
	return false
}

func (s *CouponSet) HasDiscount() bool {
	for _, c := range s.coupons {
		if c.Type == domain.CouponDiscount {
			return true
		}
	}
	return false
}

// Add appends a validated coupon, enforcing the duplicate-code and
// single-discount rules. The set is unchanged on rejection.
func (s *CouponSet) Add(coupon domain.AppliedCoupon) error {
	if s.Contains(coupon.Code) {
		return ErrCouponAlreadyApplied
	}
	if coupon.Type == domain.CouponDiscount && s.HasDiscount() {
		return ErrDiscountAlreadyActive
	}
	s.coupons = append(s.coupons, coupon)
	return nil
}

// Remove drops the coupon with the given code. Removing an absent code is a
// no-op.
func (s *CouponSet) Remove(code string) {
	for i, c := range s.coupons {
		if c.Code == code {
			s.coupons = append(s.coupons[:i], s.coupons[i+1:]...)
			return
		}
	}
}

func (s *CouponSet) Clear() {
	s.coupons = nil
}

// List returns a copy of the active coupons in application order.
func (s *CouponSet) List() []domain.AppliedCoupon {
	out := make([]domain.AppliedCoupon, len(s.coupons))
	copy(out, s.coupons)
	return out
}

// replace swaps in a restored coupon set wholesale.
func (s *CouponSet) replace(coupons []domain.AppliedCoupon) {
	s.coupons = make([]domain.AppliedCoupon, len(coupons))
	copy(s.coupons, coupons)
}

// ComputeTotals derives the full totals breakdown from a subtotal and an
// active coupon set. The combined discount is capped at the subtotal; the
// overflow, if any, is reported as RemainingDiscount.
func ComputeTotals(subTotal int64, coupons []domain.AppliedCoupon) domain.Totals {
	var voucherTotal int64
	var percentage float64
	for _, c := range coupons {
		switch c.Type {
		case domain.CouponVoucher:
			voucherTotal += c.VoucherValue
		case domain.CouponDiscount:
			percentage = c.DiscountPercentage
		}
	}

	percentageAmount := int64(math.Round(float64(subTotal) * percentage / 100))
	discountTotal := voucherTotal + percentageAmount
	var remaining int64
	if discountTotal > subTotal {
		remaining = discountTotal - subTotal
		discountTotal = subTotal
	}

	return domain.Totals{
		SubTotal:          subTotal,
		VoucherTotal:      voucherTotal,
		PercentageAmount:  percentageAmount,
		DiscountTotal:     discountTotal,
		Total:             subTotal - discountTotal,
		RemainingDiscount: remaining,
	}
}
