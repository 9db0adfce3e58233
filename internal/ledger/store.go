package ledger

import (
	"context"
	"time"
)

// AccountStore persists accounts. Save is an upsert keyed by ID.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)
	ListAccountsByCustomer(ctx context.Context, customerID string) ([]*Account, error)
	SaveAccount(ctx context.Context, account *Account) error
	DeleteAccount(ctx context.Context, id string) error
}

// MovementStore persists movements. Movements are append-only; there is no
// update or delete. All list methods return movements ordered by timestamp
// ascending.
type MovementStore interface {
	AppendMovement(ctx context.Context, movement *Movement) error
	ListMovements(ctx context.Context, accountID string) ([]*Movement, error)
	// ListMovementsBefore returns movements strictly before the instant.
	ListMovementsBefore(ctx context.Context, accountID string, before time.Time) ([]*Movement, error)
	// ListMovementsInRange returns movements with from <= timestamp <= to.
	ListMovementsInRange(ctx context.Context, accountID string, from, to time.Time) ([]*Movement, error)
}

// CustomerStore persists customers. Save is an upsert keyed by ID.
type CustomerStore interface {
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	GetCustomerByCode(ctx context.Context, code string) (*Customer, error)
	GetCustomerByNationalID(ctx context.Context, nationalID string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]*Customer, error)
	SaveCustomer(ctx context.Context, customer *Customer) error
	DeleteCustomer(ctx context.Context, id string) error
}

// Tx is the write view an engine operation sees inside Atomic. Reads
// through a Tx observe the transaction's own writes; GetAccountForUpdate
// additionally locks the account row so concurrent operations on the same
// account serialize.
type Tx interface {
	GetAccountForUpdate(ctx context.Context, id string) (*Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*Account, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	SaveAccount(ctx context.Context, account *Account) error
	AppendMovement(ctx context.Context, movement *Movement) error
}

// Store is the full persistence surface the engine and its collaborators
// run against. Atomic runs fn in one serializable transaction: either every
// write inside fn commits, or none do. Business errors returned by fn abort
// the transaction and propagate unchanged.
type Store interface {
	AccountStore
	MovementStore
	CustomerStore
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
