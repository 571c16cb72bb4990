package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"tokokasir/backend/internal/catalog"
	"tokokasir/backend/internal/checkout"
	"tokokasir/backend/internal/couponsvc"
	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
)

type cashierContextKey struct{}

// WithCashier attaches the operating cashier to the context. Lifecycle
// operations require it; there is no ambient session state.
func WithCashier(ctx context.Context, cashier domain.Cashier) context.Context {
	return context.WithValue(ctx, cashierContextKey{}, cashier)
}

func CashierFromContext(ctx context.Context) (domain.Cashier, bool) {
	cashier, ok := ctx.Value(cashierContextKey{}).(domain.Cashier)
	return cashier, ok
}

var ErrCashierRequired = errors.New("cashier context required")

// Service exposes the checkout engine to the transport layer, holding one
// Session per terminal id.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*checkout.Session

	transactions store.TransactionStore
	catalog      catalog.Client
	coupons      couponsvc.Client
}

func New(transactions store.TransactionStore, catalogClient catalog.Client, coupons couponsvc.Client) *Service {
	return &Service{
		sessions:     make(map[string]*checkout.Session),
		transactions: transactions,
		catalog:      catalogClient,
		coupons:      coupons,
	}
}

func (s *Service) session(terminalID string) *checkout.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[terminalID]
	if !ok {
		session = checkout.NewSession(s.transactions, s.catalog, s.coupons)
		s.sessions[terminalID] = session
	}
	return session
}

func cashierFrom(ctx context.Context) (domain.Cashier, error) {
	cashier, ok := CashierFromContext(ctx)
	if !ok || cashier.Username == "" {
		return domain.Cashier{}, ErrCashierRequired
	}
	return cashier, nil
}

// SearchProducts queries the product catalog for the cashier lookup screen.
func (s *Service) SearchProducts(ctx context.Context, query string, page int, limit int) (domain.SearchResult, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}
	return s.catalog.Search(ctx, strings.TrimSpace(query), page, limit)
}

// AddItem fetches a live product snapshot and adds one unit to the
// terminal's cart.
func (s *Service) AddItem(ctx context.Context, terminalID string, sku string) (domain.CartView, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.CartView{}, catalog.ErrNotFound
	}

	product, err := s.catalog.GetBySKU(ctx, sku)
	if err != nil {
		return domain.CartView{}, err
	}

	session := s.session(terminalID)
	if err := session.AddLine(*product); err != nil {
		return domain.CartView{}, err
	}
	return session.View(), nil
}

// UpdateQuantity applies a signed quantity delta to a cart line.
func (s *Service) UpdateQuantity(_ context.Context, terminalID string, sku string, delta int) (domain.CartView, error) {
	session := s.session(terminalID)
	if err := session.UpdateQuantity(strings.ToUpper(strings.TrimSpace(sku)), delta); err != nil {
		return domain.CartView{}, err
	}
	return session.View(), nil
}

// ApplyCoupon validates and applies a coupon code to the terminal's cart.
func (s *Service) ApplyCoupon(ctx context.Context, terminalID string, code string) (domain.CartView, error) {
	session := s.session(terminalID)
	if _, err := session.CheckCoupon(ctx, code); err != nil {
		return domain.CartView{}, err
	}
	return session.View(), nil
}

// RemoveCoupon drops a coupon from the terminal's cart by exact code.
func (s *Service) RemoveCoupon(_ context.Context, terminalID string, code string) domain.CartView {
	session := s.session(terminalID)
	session.RemoveCoupon(code)
	return session.View()
}

// Cart returns the terminal's current cart view.
func (s *Service) Cart(_ context.Context, terminalID string) domain.CartView {
	return s.session(terminalID).View()
}

// TenderSuggestions proposes round cash amounts. When total is negative the
// terminal's current total owed is used.
func (s *Service) TenderSuggestions(_ context.Context, terminalID string, total int64) domain.TenderResponse {
	if total < 0 {
		total = s.session(terminalID).Totals().Total
	}
	return domain.TenderResponse{
		Total:       total,
		Suggestions: checkout.RecommendTender(total),
	}
}

// SaveTransaction parks the terminal's cart as a saved transaction.
func (s *Service) SaveTransaction(ctx context.Context, terminalID string) (domain.SaveResponse, error) {
	cashier, err := cashierFrom(ctx)
	if err != nil {
		return domain.SaveResponse{}, err
	}

	saved, err := s.session(terminalID).Save(ctx, cashier)
	if err != nil {
		return domain.SaveResponse{}, err
	}
	return domain.SaveResponse{Transaction: *saved}, nil
}

// ConfirmPayment finalizes the terminal's cart into a paid transaction.
// Payment sufficiency is checked here, at the boundary, before the
// lifecycle manager is invoked.
func (s *Service) ConfirmPayment(ctx context.Context, terminalID string, req domain.ConfirmPaymentRequest) (domain.PaymentResponse, error) {
	cashier, err := cashierFrom(ctx)
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	if strings.TrimSpace(req.Method) == "" {
		return domain.PaymentResponse{}, store.ErrInvalidPayment
	}

	session := s.session(terminalID)
	totals := session.Totals()
	if req.Pay < totals.Total {
		return domain.PaymentResponse{}, store.ErrInvalidPayment
	}

	paid, err := session.ConfirmPayment(ctx, cashier, req.Method, req.Pay, req.Note)
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	return domain.PaymentResponse{
		Transaction: *paid,
		Change:      req.Pay - paid.Total,
	}, nil
}

// RestoreTransaction reloads a saved transaction into the terminal's cart.
func (s *Service) RestoreTransaction(ctx context.Context, terminalID string, transactionID string) (domain.RestoreResponse, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return domain.RestoreResponse{}, store.ErrNotFound
	}

	tx, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return domain.RestoreResponse{}, err
	}
	if !tx.IsSaved {
		return domain.RestoreResponse{}, store.ErrConflict
	}

	return s.session(terminalID).Restore(ctx, *tx)
}

// ClearSession abandons the terminal's cart, coupons and restore pointer.
func (s *Service) ClearSession(_ context.Context, terminalID string) {
	s.session(terminalID).Clear()
}

// LastReceipt returns the terminal's most recent paid transaction.
func (s *Service) LastReceipt(_ context.Context, terminalID string) (domain.Transaction, error) {
	last := s.session(terminalID).LastPaid()
	if last == nil {
		return domain.Transaction{}, store.ErrNotFound
	}
	return *last, nil
}

// ListSavedTransactions feeds the restore picker.
func (s *Service) ListSavedTransactions(ctx context.Context) (domain.SavedTransactionsResponse, error) {
	saved := true
	list, err := s.transactions.List(ctx, store.TransactionFilter{Saved: &saved, Limit: 100})
	if err != nil {
		return domain.SavedTransactionsResponse{}, err
	}
	return domain.SavedTransactionsResponse{Transactions: list}, nil
}
