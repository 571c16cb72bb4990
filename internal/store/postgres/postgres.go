package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tokokasir/backend/internal/catalog"
	"tokokasir/backend/internal/couponsvc"
	"tokokasir/backend/internal/domain"
	"tokokasir/backend/internal/store"
)

// Store backs the checkout engine with postgres. It serves the transaction
// repository plus the product catalog, coupon lookup and user account
// surfaces from one connection pool.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Search implements catalog.Client with a case-insensitive substring match
// over SKU and name.
func (s *Store) Search(ctx context.Context, query string, page int, limit int) (domain.SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	pattern := "%" + strings.TrimSpace(query) + "%"

	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM products
		WHERE sku ILIKE $1 OR name ILIKE $1
	`, pattern).Scan(&total)
	if err != nil {
		return domain.SearchResult{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, price, stock, images
		FROM products
		WHERE sku ILIKE $1 OR name ILIKE $1
		ORDER BY name ASC, sku ASC
		LIMIT $2 OFFSET $3
	`, pattern, limit, (page-1)*limit)
	if err != nil {
		return domain.SearchResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Product, 0, limit)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return domain.SearchResult{}, err
		}
		items = append(items, product)
	}
	if err := rows.Err(); err != nil {
		return domain.SearchResult{}, err
	}

	return domain.SearchResult{
		Items: items,
		Meta: domain.SearchMeta{
			Query: strings.TrimSpace(query),
			Page:  page,
			Limit: limit,
			Total: total,
		},
	}, nil
}

// GetBySKU implements catalog.Client.
func (s *Store) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sku, name, price, stock, images
		FROM products
		WHERE sku = $1
	`, sku)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	var images []byte
	if err := row.Scan(&product.SKU, &product.Name, &product.Price, &product.Stock, &images); err != nil {
		return domain.Product{}, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &product.Images); err != nil {
			return domain.Product{}, err
		}
	}
	return product, nil
}

// CheckUsage implements couponsvc.Client.
func (s *Store) CheckUsage(ctx context.Context, code string) (*domain.CouponUsage, error) {
	var usage domain.CouponUsage
	err := s.db.QueryRowContext(ctx, `
		SELECT code, type, can_use, voucher_value, discount_percentage
		FROM coupons
		WHERE code = $1
	`, strings.ToUpper(strings.TrimSpace(code))).Scan(
		&usage.Code,
		&usage.Type,
		&usage.CanUse,
		&usage.VoucherValue,
		&usage.DiscountPercentage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, couponsvc.ErrNotFound
		}
		return nil, err
	}
	return &usage, nil
}

// Create implements store.TransactionStore. Paid transactions must carry a
// pay amount covering the total.
func (s *Store) Create(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if err := validatePayment(tx); err != nil {
		return nil, err
	}

	items, coupons, err := marshalLines(tx)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions
			(id, code, items, coupons, subtotal, discount_total, total,
			 pay, payment_method, note, is_saved, cashier_username, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, tx.ID, tx.Code, items, coupons, tx.SubTotal, tx.DiscountTotal, tx.Total,
		tx.Pay, tx.PaymentMethod, tx.Note, tx.IsSaved, tx.CashierUsername,
		tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := tx
	return &created, nil
}

// Update implements store.TransactionStore. Only saved transactions may be
// updated; the stored id, code and creation time are preserved.
func (s *Store) Update(ctx context.Context, id string, tx domain.Transaction) (*domain.Transaction, error) {
	if err := validatePayment(tx); err != nil {
		return nil, err
	}

	items, coupons, err := marshalLines(tx)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var isSaved bool
	var code string
	var createdAt time.Time
	err = pgTx.QueryRowContext(ctx, `
		SELECT code, is_saved, created_at
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&code, &isSaved, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if !isSaved {
		return nil, store.ErrConflict
	}

	updatedAt := time.Now().UTC()
	_, err = pgTx.ExecContext(ctx, `
		UPDATE transactions
		SET items = $2, coupons = $3, subtotal = $4, discount_total = $5, total = $6,
			pay = $7, payment_method = $8, note = $9, is_saved = $10,
			cashier_username = $11, updated_at = $12
		WHERE id = $1
	`, id, items, coupons, tx.SubTotal, tx.DiscountTotal, tx.Total,
		tx.Pay, tx.PaymentMethod, tx.Note, tx.IsSaved, tx.CashierUsername, updatedAt)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	updated := tx
	updated.ID = id
	updated.Code = code
	updated.CreatedAt = createdAt.UTC()
	updated.UpdatedAt = updatedAt
	return &updated, nil
}

// GetByID implements store.TransactionStore.
func (s *Store) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, items, coupons, subtotal, discount_total, total,
			pay, payment_method, note, is_saved, cashier_username, created_at, updated_at
		FROM transactions
		WHERE id = $1
	`, id)

	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

// List implements store.TransactionStore, newest first.
func (s *Store) List(ctx context.Context, filter store.TransactionFilter) ([]domain.Transaction, error) {
	query := `
		SELECT id, code, items, coupons, subtotal, discount_total, total,
			pay, payment_method, note, is_saved, cashier_username, created_at, updated_at
		FROM transactions
	`
	args := make([]any, 0, 2)
	if filter.Saved != nil {
		query += ` WHERE is_saved = $1`
		args = append(args, *filter.Saved)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		if filter.Saved != nil {
			query += ` LIMIT $2`
		} else {
			query += ` LIMIT $1`
		}
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0, 16)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers implements store.UserStore.
func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var items []byte
	var coupons []byte
	var pay sql.NullInt64
	var method sql.NullString

	err := row.Scan(
		&tx.ID,
		&tx.Code,
		&items,
		&coupons,
		&tx.SubTotal,
		&tx.DiscountTotal,
		&tx.Total,
		&pay,
		&method,
		&tx.Note,
		&tx.IsSaved,
		&tx.CashierUsername,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &tx.Items); err != nil {
			return nil, err
		}
	}
	if len(coupons) > 0 {
		if err := json.Unmarshal(coupons, &tx.Coupons); err != nil {
			return nil, err
		}
	}
	if pay.Valid {
		amount := pay.Int64
		tx.Pay = &amount
	}
	if method.Valid {
		value := method.String
		tx.PaymentMethod = &value
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return &tx, nil
}

func marshalLines(tx domain.Transaction) ([]byte, []byte, error) {
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return nil, nil, err
	}
	coupons, err := json.Marshal(tx.Coupons)
	if err != nil {
		return nil, nil, err
	}
	return items, coupons, nil
}

func validatePayment(tx domain.Transaction) error {
	if tx.IsSaved {
		return nil
	}
	if tx.Pay == nil || tx.PaymentMethod == nil || strings.TrimSpace(*tx.PaymentMethod) == "" {
		return store.ErrInvalidPayment
	}
	if *tx.Pay < tx.Total {
		return store.ErrInvalidPayment
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
