package checkout

import (
	"errors"
	"testing"

	"tokokasir/backend/internal/domain"
)

func TestComputeTotalsVoucherPlusDiscount(t *testing.T) {
	coupons := []domain.AppliedCoupon{
		{Code: "POTONGAN20K", Type: domain.CouponVoucher, VoucherValue: 20000},
		{Code: "HEMAT10", Type: domain.CouponDiscount, DiscountPercentage: 10},
	}

	totals := ComputeTotals(100000, coupons)
	if totals.PercentageAmount != 10000 {
		t.Fatalf("expected percentage amount 10000, got %d", totals.PercentageAmount)
	}
	if totals.DiscountTotal != 30000 {
		t.Fatalf("expected discount total 30000, got %d", totals.DiscountTotal)
	}
	if totals.Total != 70000 {
		t.Fatalf("expected total 70000, got %d", totals.Total)
	}
	if totals.RemainingDiscount != 0 {
		t.Fatalf("expected no remaining discount, got %d", totals.RemainingDiscount)
	}
}

func TestComputeTotalsCapsDiscountAtSubtotal(t *testing.T) {
	coupons := []domain.AppliedCoupon{
		{Code: "BIG", Type: domain.CouponVoucher, VoucherValue: 150000},
	}

	totals := ComputeTotals(100000, coupons)
	if totals.DiscountTotal != 100000 {
		t.Fatalf("expected discount capped at 100000, got %d", totals.DiscountTotal)
	}
	if totals.Total != 0 {
		t.Fatalf("expected total 0, got %d", totals.Total)
	}
	if totals.RemainingDiscount != 50000 {
		t.Fatalf("expected remaining discount 50000, got %d", totals.RemainingDiscount)
	}
}

func TestComputeTotalsEmptyCoupons(t *testing.T) {
	totals := ComputeTotals(42000, nil)
	if totals.DiscountTotal != 0 || totals.Total != 42000 {
		t.Fatalf("unexpected totals without coupons: %+v", totals)
	}
}

func TestCouponSetRejectsDuplicateCode(t *testing.T) {
	var set CouponSet
	coupon := domain.AppliedCoupon{Code: "POTONGAN20K", Type: domain.CouponVoucher, VoucherValue: 20000}
	if err := set.Add(coupon); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := set.Add(coupon); !errors.Is(err, ErrCouponAlreadyApplied) {
		t.Fatalf("expected ErrCouponAlreadyApplied, got %v", err)
	}
	if len(set.List()) != 1 {
		t.Fatalf("coupon set changed on rejection")
	}
}

func TestCouponSetSingleDiscountRule(t *testing.T) {
	var set CouponSet
	if err := set.Add(domain.AppliedCoupon{Code: "HEMAT10", Type: domain.CouponDiscount, DiscountPercentage: 10}); err != nil {
		t.Fatalf("first discount add failed: %v", err)
	}
	err := set.Add(domain.AppliedCoupon{Code: "HEMAT15", Type: domain.CouponDiscount, DiscountPercentage: 15})
	if !errors.Is(err, ErrDiscountAlreadyActive) {
		t.Fatalf("expected ErrDiscountAlreadyActive, got %v", err)
	}
	if len(set.List()) != 1 {
		t.Fatalf("coupon set changed on rejection")
	}
}

func TestCouponSetVouchersStack(t *testing.T) {
	var set CouponSet
	for _, code := range []string{"V1", "V2", "V3"} {
		if err := set.Add(domain.AppliedCoupon{Code: code, Type: domain.CouponVoucher, VoucherValue: 5000}); err != nil {
			t.Fatalf("voucher %s add failed: %v", code, err)
		}
	}
	totals := ComputeTotals(50000, set.List())
	if totals.VoucherTotal != 15000 {
		t.Fatalf("expected voucher total 15000, got %d", totals.VoucherTotal)
	}
}

func TestCouponSetRemoveAbsentIsNoop(t *testing.T) {
	var set CouponSet
	if err := set.Add(domain.AppliedCoupon{Code: "V1", Type: domain.CouponVoucher, VoucherValue: 5000}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	set.Remove("MISSING")
	if len(set.List()) != 1 {
		t.Fatalf("remove of absent code changed the set")
	}
	set.Remove("V1")
	if len(set.List()) != 0 {
		t.Fatalf("expected empty set after remove")
	}
}
