package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tokokasir/backend/internal/catalog"
	"tokokasir/backend/internal/couponsvc"
	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
)

// Store is an in-memory implementation of the transaction store, product
// catalog and coupon service contracts, seeded for dev/demo mode and used
// as the test fixture throughout the repo.
type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	productOrder []string
	coupons      map[string]domain.CouponUsage
	transactions map[string]*domain.Transaction
	users        map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		coupons:      make(map[string]domain.CouponUsage),
		transactions: make(map[string]*domain.Transaction),
		users:        make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store pre-loaded with a small product catalog, a few
// coupon codes and two user accounts (admin, cashier).
func NewSeeded() *Store {
	s := New()

	for _, p := range []domain.Product{
		{SKU: "SKU-MIE-01", Name: "Mie Goreng Instan", Price: 3500, Stock: 120},
		{SKU: "SKU-TELUR-01", Name: "Telur 10 Butir", Price: 26500, Stock: 40},
		{SKU: "SKU-SUSU-01", Name: "Susu UHT 1L", Price: 18900, Stock: 55},
		{SKU: "SKU-ROTI-01", Name: "Roti Tawar", Price: 17800, Stock: 25},
		{SKU: "SKU-KOPI-01", Name: "Kopi Sachet", Price: 2600, Stock: 200},
		{SKU: "SKU-GULA-01", Name: "Gula 1kg", Price: 17400, Stock: 60},
		{SKU: "SKU-AIR-01", Name: "Air Mineral 600ml", Price: 3900, Stock: 300},
		{SKU: "SKU-KERIPIK-01", Name: "Keripik Singkong", Price: 12800, Stock: 35},
		{SKU: "SKU-COKLAT-01", Name: "Coklat Batang", Price: 8600, Stock: 48},
		{SKU: "SKU-SABUN-01", Name: "Sabun Mandi", Price: 7400, Stock: 80},
	} {
		s.PutProduct(p)
	}

	for _, c := range []domain.CouponUsage{
		{Code: "POTONGAN20K", Type: domain.CouponVoucher, CanUse: true, VoucherValue: 20000},
		{Code: "POTONGAN5K", Type: domain.CouponVoucher, CanUse: true, VoucherValue: 5000},
		{Code: "HEMAT10", Type: domain.CouponDiscount, CanUse: true, DiscountPercentage: 10},
		{Code: "HEMAT15", Type: domain.CouponDiscount, CanUse: true, DiscountPercentage: 15},
		{Code: "KADALUARSA", Type: domain.CouponVoucher, CanUse: false, VoucherValue: 10000},
	} {
		s.PutCoupon(c)
	}

	s.seedUsers()
	return s
}

// seedUsers builds the initial accounts for dev/demo mode. Credentials come
// from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; hardcoded dev
// defaults are used with a warning when unset.
func (s *Store) seedUsers() {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		s.users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// PutProduct inserts or replaces a catalog entry. Exposed for seeding and
// for tests that need to manipulate stock between save and restore.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.SKU]; !exists {
		s.productOrder = append(s.productOrder, p.SKU)
	}
	s.products[p.SKU] = p
}

// SetStock overrides the stock snapshot for a SKU. Test helper.
func (s *Store) SetStock(sku string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[sku]; ok {
		p.Stock = stock
		s.products[sku] = p
	}
}

// RemoveProduct deletes a SKU from the catalog. Test helper.
func (s *Store) RemoveProduct(sku string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, sku)
	for i, existing := range s.productOrder {
		if existing == sku {
			s.productOrder = append(s.productOrder[:i], s.productOrder[i+1:]...)
			break
		}
	}
}

// PutUser inserts or replaces a user account. Test helper.
func (s *Store) PutUser(u domain.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

// PutCoupon inserts or replaces a coupon code.
func (s *Store) PutCoupon(c domain.CouponUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[strings.ToUpper(c.Code)] = c
}

// Search implements catalog.Client with a case-insensitive substring match
// over SKU and name.
func (s *Store) Search(_ context.Context, query string, page int, limit int) (domain.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	needle := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Product, 0, len(s.productOrder))
	for _, sku := range s.productOrder {
		p, ok := s.products[sku]
		if !ok {
			continue
		}
		if needle == "" ||
			strings.Contains(strings.ToLower(p.SKU), needle) ||
			strings.Contains(strings.ToLower(p.Name), needle) {
			matched = append(matched, p)
		}
	}

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return domain.SearchResult{
		Items: matched[start:end],
		Meta:  domain.SearchMeta{Query: query, Page: page, Limit: limit, Total: total},
	}, nil
}

// GetBySKU implements catalog.Client.
func (s *Store) GetBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[sku]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	found := p
	return &found, nil
}

// CheckUsage implements couponsvc.Client.
func (s *Store) CheckUsage(_ context.Context, code string) (*domain.CouponUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	usage, ok := s.coupons[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, couponsvc.ErrNotFound
	}
	found := usage
	return &found, nil
}

// Create implements store.TransactionStore. Paid transactions must carry a
// pay amount covering the total.
func (s *Store) Create(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if err := validatePayment(tx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.ID]; exists {
		return nil, store.ErrConflict
	}
	saved := tx
	s.transactions[tx.ID] = &saved
	out := saved
	return &out, nil
}

// Update implements store.TransactionStore. Only saved transactions may be
// updated; the stored id, code and creation time are preserved.
func (s *Store) Update(_ context.Context, id string, tx domain.Transaction) (*domain.Transaction, error) {
	if err := validatePayment(tx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !existing.IsSaved {
		return nil, store.ErrConflict
	}

	updated := tx
	updated.ID = existing.ID
	updated.Code = existing.Code
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.transactions[id] = &updated
	out := updated
	return &out, nil
}

// GetByID implements store.TransactionStore.
func (s *Store) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := *tx
	return &found, nil
}

// List implements store.TransactionStore, newest first.
func (s *Store) List(_ context.Context, filter store.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if filter.Saved != nil && tx.IsSaved != *filter.Saved {
			continue
		}
		out = append(out, *tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListUsers implements store.UserStore.
func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func validatePayment(tx domain.Transaction) error {
	if tx.IsSaved {
		return nil
	}
	if tx.Pay == nil || tx.PaymentMethod == nil || *tx.PaymentMethod == "" {
		return store.ErrInvalidPayment
	}
	if *tx.Pay < tx.Total {
		return store.ErrInvalidPayment
	}
	return nil
}
