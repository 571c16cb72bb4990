package domain

import "time"

// Product is a catalog entry as seen by the cashier terminal. Stock is a
// snapshot taken at query time; it is not a reservation.
type Product struct {
	SKU    string   `json:"sku"`
	Name   string   `json:"name"`
	Price  int64    `json:"price"`
	Stock  int      `json:"stock"`
	Images []string `json:"images,omitempty"`
}

type SearchMeta struct {
	Query string `json:"query"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Total int    `json:"total"`
}

type SearchResult struct {
	Items []Product  `json:"items"`
	Meta  SearchMeta `json:"meta"`
}

// CartLine is one SKU entry in the working cart. Invariant:
// 1 <= Amount <= min(999, StockCap).
type CartLine struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Amount    int    `json:"amount"`
	StockCap  int    `json:"stock_cap"`
}

type CouponType string

const (
	CouponVoucher  CouponType = "voucher"
	CouponDiscount CouponType = "discount"
)

// AppliedCoupon is a coupon accepted into the active set. At most one
// discount-type coupon may be active; voucher coupons stack freely.
type AppliedCoupon struct {
	Code               string     `json:"code"`
	Type               CouponType `json:"type"`
	VoucherValue       int64      `json:"voucher_value,omitempty"`
	DiscountPercentage float64    `json:"discount_percentage,omitempty"`
}

// CouponUsage is the Coupon Service's verdict for a code.
type CouponUsage struct {
	Code               string     `json:"code"`
	Type               CouponType `json:"type"`
	CanUse             bool       `json:"can_use"`
	VoucherValue       int64      `json:"voucher_value,omitempty"`
	DiscountPercentage float64    `json:"discount_percentage,omitempty"`
}

// Totals are derived from the cart and the active coupon set; they are
// recomputed on every mutation and never stored independently.
// RemainingDiscount is the portion of the combined discount that exceeded
// the subtotal cap. It is informational only.
type Totals struct {
	SubTotal          int64 `json:"sub_total"`
	VoucherTotal      int64 `json:"voucher_total"`
	PercentageAmount  int64 `json:"percentage_amount"`
	DiscountTotal     int64 `json:"discount_total"`
	Total             int64 `json:"total"`
	RemainingDiscount int64 `json:"remaining_discount,omitempty"`
}

type TransactionItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Amount    int    `json:"amount"`
}

// Transaction is the persisted form of a checkout. A saved transaction has
// IsSaved=true and no payment; a paid transaction has IsSaved=false with
// Pay and PaymentMethod set, and is immutable thereafter.
type Transaction struct {
	ID              string            `json:"id"`
	Code            string            `json:"code"`
	Items           []TransactionItem `json:"items"`
	Coupons         []AppliedCoupon   `json:"coupons,omitempty"`
	SubTotal        int64             `json:"sub_total"`
	DiscountTotal   int64             `json:"discount_total"`
	Total           int64             `json:"total"`
	Pay             *int64            `json:"pay,omitempty"`
	PaymentMethod   *string           `json:"payment_method,omitempty"`
	Note            string            `json:"note,omitempty"`
	IsSaved         bool              `json:"is_saved"`
	CashierUsername string            `json:"cashier_username,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Cashier identifies the operator performing a lifecycle operation. It is
// passed explicitly rather than read from ambient session state.
type Cashier struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type AddItemRequest struct {
	SKU string `json:"sku"`
}

type UpdateQuantityRequest struct {
	Delta int `json:"delta"`
}

type ApplyCouponRequest struct {
	Code string `json:"code"`
}

type ConfirmPaymentRequest struct {
	Method string `json:"method"`
	Pay    int64  `json:"pay"`
	Note   string `json:"note,omitempty"`
}

type RestoreRequest struct {
	TransactionID string `json:"transaction_id"`
}

// CartView is the full session state exposed to the presentation layer.
type CartView struct {
	Lines                 []CartLine      `json:"lines"`
	Coupons               []AppliedCoupon `json:"coupons"`
	Totals                Totals          `json:"totals"`
	RestoredTransactionID string          `json:"restored_transaction_id,omitempty"`
}

type TenderResponse struct {
	Total       int64   `json:"total"`
	Suggestions []int64 `json:"suggestions"`
}

type SaveResponse struct {
	Transaction Transaction `json:"transaction"`
}

type PaymentResponse struct {
	Transaction Transaction `json:"transaction"`
	Change      int64       `json:"change"`
}

type RestoreResponse struct {
	Cart          CartView `json:"cart"`
	StockAdjusted bool     `json:"stock_adjusted"`
	DroppedSKUs   []string `json:"dropped_skus,omitempty"`
}

type SavedTransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}
