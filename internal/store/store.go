package store

import (
	"context"
	"errors"

	"tokokasir/backend/internal/catalog"
	"tokokasir/backend/internal/couponsvc"
	"tokokasir/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an update targets a transaction that is
	// no longer in a state that allows it (e.g. already paid).
	ErrConflict = errors.New("transaction state conflict")
	// ErrInvalidPayment is returned when a paid transaction's pay amount
	// does not cover its total.
	ErrInvalidPayment = errors.New("invalid payment amount")
)

// TransactionFilter narrows List results. A nil Saved means both saved and
// paid transactions are returned.
type TransactionFilter struct {
	Saved *bool
	Limit int
}

// TransactionStore persists checkout transactions. Implementations must
// enforce payment sufficiency on paid transactions and reject updates to
// transactions that have already been paid.
type TransactionStore interface {
	Create(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	Update(ctx context.Context, id string, tx domain.Transaction) (*domain.Transaction, error)
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)
}

// UserStore exposes the credential records the auth layer needs.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

// Repository aggregates every persistence surface the server wires up.
// Both the postgres and the in-memory store satisfy it.
type Repository interface {
	TransactionStore
	UserStore
	catalog.Client
	couponsvc.Client
}
