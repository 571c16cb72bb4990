package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"tokokasir/backend/internal/catalog"
	"tokokasir/backend/internal/couponsvc"
	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
	"tokokasir/backend/internal/xid"
)

// Session drives one terminal's checkout through the cart → saved → paid
// lifecycle. All state mutations run under the session mutex so that one
// lifecycle operation at a time acts on the cart, matching the one-cashier
// contract of the engine.
type Session struct {
	mu      sync.Mutex
	cart    Cart
	coupons CouponSet

	// restoredID is the id of the saved transaction currently loaded into
	// the cart, or empty when the session is building a fresh cart. It
	// decides whether ConfirmPayment updates or creates.
	restoredID string
	lastPaid   *domain.Transaction

	transactions store.TransactionStore
	catalog      catalog.Client
	coupsvc      couponsvc.Client
}

func NewSession(transactions store.TransactionStore, catalogClient catalog.Client, coupons couponsvc.Client) *Session {
	return &Session{
		transactions: transactions,
		catalog:      catalogClient,
		coupsvc:      coupons,
	}
}

// AddLine adds one unit of the product to the cart.
func (s *Session) AddLine(product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.AddLine(product)
}

// UpdateQuantity applies a signed quantity delta to the line for sku.
func (s *Session) UpdateQuantity(sku string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.UpdateQuantity(sku, delta)
}

// CheckCoupon validates the code against the coupon service and, if
// accepted, appends it to the active set. The active set is unchanged on
// any rejection, including when the service was already consulted.
func (s *Session) CheckCoupon(ctx context.Context, code string) (domain.AppliedCoupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return domain.AppliedCoupon{}, ErrInvalidCoupon
	}

	s.mu.Lock()
	already := s.coupons.Contains(code)
	s.mu.Unlock()
	if already {
		return domain.AppliedCoupon{}, ErrCouponAlreadyApplied
	}

	usage, err := s.coupsvc.CheckUsage(ctx, code)
	if err != nil {
		if errors.Is(err, couponsvc.ErrNotFound) {
			return domain.AppliedCoupon{}, ErrInvalidCoupon
		}
		return domain.AppliedCoupon{}, err
	}
	if usage == nil || !usage.CanUse {
		return domain.AppliedCoupon{}, ErrInvalidCoupon
	}

	coupon := domain.AppliedCoupon{
		Code:               code,
		Type:               usage.Type,
		VoucherValue:       usage.VoucherValue,
		DiscountPercentage: usage.DiscountPercentage,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.coupons.Add(coupon); err != nil {
		return domain.AppliedCoupon{}, err
	}
	return coupon, nil
}

// RemoveCoupon drops the coupon by exact code match; absent codes are a
// no-op.
func (s *Session) RemoveCoupon(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons.Remove(code)
}

// Totals recomputes the derived totals from the current cart and coupons.
func (s *Session) Totals() domain.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.cart.SubTotal(), s.coupons.List())
}

// View returns the full session state for the presentation layer.
func (s *Session) View() domain.CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() domain.CartView {
	return domain.CartView{
		Lines:                 s.cart.Lines(),
		Coupons:               s.coupons.List(),
		Totals:                ComputeTotals(s.cart.SubTotal(), s.coupons.List()),
		RestoredTransactionID: s.restoredID,
	}
}

// Save parks the current cart as a saved transaction. On success the cart,
// coupons and restore pointer are reset; on failure nothing changes.
func (s *Session) Save(ctx context.Context, cashier domain.Cashier) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	payload := s.buildTransactionLocked(cashier)
	payload.IsSaved = true

	saved, err := s.transactions.Create(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.resetLocked()
	return saved, nil
}

// ConfirmPayment finalizes the cart into a paid transaction. When a saved
// transaction is loaded it transitions that transaction to paid via update;
// otherwise a new paid transaction is created. Payment sufficiency is the
// caller's responsibility; a store-side rejection surfaces as
// ErrPersistence with no local state change.
func (s *Session) ConfirmPayment(ctx context.Context, cashier domain.Cashier, method string, pay int64, note string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	payload := s.buildTransactionLocked(cashier)
	payload.IsSaved = false
	payload.Pay = &pay
	m := strings.TrimSpace(method)
	payload.PaymentMethod = &m
	payload.Note = strings.TrimSpace(note)

	var (
		paid *domain.Transaction
		err  error
	)
	if s.restoredID != "" {
		paid, err = s.transactions.Update(ctx, s.restoredID, payload)
	} else {
		paid, err = s.transactions.Create(ctx, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.resetLocked()
	s.lastPaid = paid
	return paid, nil
}

// Restore reloads a saved transaction into the cart, reconciling each item
// against current catalog stock. Items whose SKU is gone or out of stock
// are dropped; items with partial stock are clamped and flagged. When no
// item survives the session is left untouched and ErrNothingToRestore is
// returned.
func (s *Session) Restore(ctx context.Context, tx domain.Transaction) (domain.RestoreResponse, error) {
	lines := make([]domain.CartLine, 0, len(tx.Items))
	dropped := make([]string, 0)
	adjusted := false

	for _, item := range tx.Items {
		product, err := s.catalog.GetBySKU(ctx, item.SKU)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				dropped = append(dropped, item.SKU)
				continue
			}
			return domain.RestoreResponse{}, err
		}
		if product.Stock < 1 {
			dropped = append(dropped, item.SKU)
			continue
		}

		amount := item.Amount
		if product.Stock < amount {
			amount = product.Stock
			adjusted = true
			log.Printf("[checkout] stock adjusted on restore: tx=%s sku=%s requested=%d available=%d", tx.ID, item.SKU, item.Amount, product.Stock)
		}
		lines = append(lines, domain.CartLine{
			SKU:       product.SKU,
			Name:      product.Name,
			UnitPrice: item.UnitPrice,
			Amount:    amount,
			StockCap:  product.Stock,
		})
	}

	if len(lines) == 0 {
		return domain.RestoreResponse{}, ErrNothingToRestore
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.replaceLines(lines)
	s.coupons.replace(tx.Coupons)
	s.restoredID = tx.ID

	return domain.RestoreResponse{
		Cart:          s.viewLocked(),
		StockAdjusted: adjusted,
		DroppedSKUs:   dropped,
	}, nil
}

// Clear drops the cart, coupons and restore pointer without persisting
// anything. The last paid transaction is kept for receipt display.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// LastPaid returns the most recent successfully paid transaction, or nil.
func (s *Session) LastPaid() *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPaid
}

func (s *Session) resetLocked() {
	s.cart.Clear()
	s.coupons.Clear()
	s.restoredID = ""
}

func (s *Session) buildTransactionLocked(cashier domain.Cashier) domain.Transaction {
	lines := s.cart.Lines()
	items := make([]domain.TransactionItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.TransactionItem{
			SKU:       line.SKU,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Amount:    line.Amount,
		})
	}

	totals := ComputeTotals(s.cart.SubTotal(), s.coupons.List())
	now := time.Now().UTC()
	return domain.Transaction{
		ID:              xid.New("trx"),
		Code:            xid.Code("TRX"),
		Items:           items,
		Coupons:         s.coupons.List(),
		SubTotal:        totals.SubTotal,
		DiscountTotal:   totals.DiscountTotal,
		Total:           totals.Total,
		CashierUsername: cashier.Username,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
