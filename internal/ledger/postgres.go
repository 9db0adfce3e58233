package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	queryTimeout = 5 * time.Second

	serializationFailure = "40001"
	uniqueViolation      = "23505"
)

// PostgresStore implements Store on a pgx connection pool. Engine
// operations run in SERIALIZABLE transactions with row locks, so
// concurrent operations on the same account serialize while different
// accounts proceed independently.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// InitSchema creates the ledger tables if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS customers (
			id          TEXT PRIMARY KEY,
			code        TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			gender      TEXT NOT NULL DEFAULT '',
			age         INT NOT NULL DEFAULT 0,
			national_id TEXT NOT NULL UNIQUE,
			address     TEXT NOT NULL DEFAULT '',
			phone       TEXT NOT NULL DEFAULT '',
			active      BOOLEAN NOT NULL DEFAULT TRUE,
			created_at  TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS accounts (
			id          TEXT PRIMARY KEY,
			number      TEXT NOT NULL UNIQUE,
			type        TEXT NOT NULL,
			balance     NUMERIC(19,2) NOT NULL DEFAULT 0,
			active      BOOLEAN NOT NULL DEFAULT TRUE,
			customer_id TEXT NOT NULL REFERENCES customers(id),
			created_at  TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS movements (
			id                TEXT PRIMARY KEY,
			account_id        TEXT NOT NULL REFERENCES accounts(id),
			kind              TEXT NOT NULL,
			value             NUMERIC(19,2) NOT NULL CHECK (value > 0),
			resulting_balance NUMERIC(19,2) NOT NULL,
			reference         TEXT NOT NULL DEFAULT '',
			ts                TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS movements_account_ts ON movements (account_id, ts);
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Atomic runs fn in a SERIALIZABLE transaction. Serialization failures are
// retried up to three times with linear backoff; business errors returned
// by fn abort without retry.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	const maxRetries = 3

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = s.atomicOnce(ctx, fn)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
			if attempt == maxRetries-1 {
				return fmt.Errorf("transaction failed after %d retries due to serialization failure: %w", maxRetries, err)
			}
			time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
			continue
		}
		return err
	}
	return err
}

func (s *PostgresStore) atomicOnce(ctx context.Context, fn func(tx Tx) error) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetAccountForUpdate(ctx context.Context, id string) (*Account, error) {
	row := t.tx.QueryRow(ctx, accountSelect+`
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAccount(row)
}

func (t *pgTx) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	row := t.tx.QueryRow(ctx, accountSelect+` WHERE number = $1`, number)
	return scanAccount(row)
}

func (t *pgTx) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	row := t.tx.QueryRow(ctx, customerSelect+` WHERE id = $1`, id)
	return scanCustomer(row)
}

func (t *pgTx) SaveAccount(ctx context.Context, account *Account) error {
	_, err := t.tx.Exec(ctx, accountUpsert,
		account.ID, account.Number, account.Type, account.Balance,
		account.Active, account.CustomerID, account.CreatedAt)
	return mapAccountSaveErr(err)
}

func (t *pgTx) AppendMovement(ctx context.Context, movement *Movement) error {
	_, err := t.tx.Exec(ctx, movementInsert,
		movement.ID, movement.AccountID, movement.Kind, movement.Value,
		movement.ResultingBalance, movement.Reference, movement.Timestamp)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

const accountSelect = `
	SELECT id, number, type, balance, active, customer_id, created_at
	FROM accounts`

const accountUpsert = `
	INSERT INTO accounts (id, number, type, balance, active, customer_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		number = EXCLUDED.number,
		type = EXCLUDED.type,
		balance = EXCLUDED.balance,
		active = EXCLUDED.active
`

const customerSelect = `
	SELECT id, code, name, gender, age, national_id, address, phone, active, created_at
	FROM customers`

const movementSelect = `
	SELECT id, account_id, kind, value, resulting_balance, reference, ts
	FROM movements`

const movementInsert = `
	INSERT INTO movements (id, account_id, kind, value, resulting_balance, reference, ts)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanAccount(s.Pool.QueryRow(ctx, accountSelect+` WHERE id = $1`, id))
}

func (s *PostgresStore) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanAccount(s.Pool.QueryRow(ctx, accountSelect+` WHERE number = $1`, number))
}

func (s *PostgresStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx, accountSelect+` ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (s *PostgresStore) ListAccountsByCustomer(ctx context.Context, customerID string) ([]*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx, accountSelect+`
		WHERE customer_id = $1
		ORDER BY number
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query accounts for customer %s: %w", customerID, err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

func (s *PostgresStore) SaveAccount(ctx context.Context, account *Account) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.Pool.Exec(ctx, accountUpsert,
		account.ID, account.Number, account.Type, account.Balance,
		account.Active, account.CustomerID, account.CreatedAt)
	return mapAccountSaveErr(err)
}

func (s *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStore) AppendMovement(ctx context.Context, movement *Movement) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.Pool.Exec(ctx, movementInsert,
		movement.ID, movement.AccountID, movement.Kind, movement.Value,
		movement.ResultingBalance, movement.Reference, movement.Timestamp)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMovements(ctx context.Context, accountID string) ([]*Movement, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx, movementSelect+`
		WHERE account_id = $1
		ORDER BY ts ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

func (s *PostgresStore) ListMovementsBefore(ctx context.Context, accountID string, before time.Time) ([]*Movement, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx, movementSelect+`
		WHERE account_id = $1 AND ts < $2
		ORDER BY ts ASC
	`, accountID, before)
	if err != nil {
		return nil, fmt.Errorf("query movements before %s: %w", before, err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

func (s *PostgresStore) ListMovementsInRange(ctx context.Context, accountID string, from, to time.Time) ([]*Movement, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx, movementSelect+`
		WHERE account_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query movements in range: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanCustomer(s.Pool.QueryRow(ctx, customerSelect+` WHERE id = $1`, id))
}

func (s *PostgresStore) GetCustomerByCode(ctx context.Context, code string) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanCustomer(s.Pool.QueryRow(ctx, customerSelect+` WHERE code = $1`, code))
}

func (s *PostgresStore) GetCustomerByNationalID(ctx context.Context, nationalID string) (*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanCustomer(s.Pool.QueryRow(ctx, customerSelect+` WHERE national_id = $1`, nationalID))
}

func (s *PostgresStore) ListCustomers(ctx context.Context) ([]*Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.Pool.Query(ctx, customerSelect+` ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []*Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, customer)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveCustomer(ctx context.Context, customer *Customer) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO customers (id, code, name, gender, age, national_id, address, phone, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			gender = EXCLUDED.gender,
			age = EXCLUDED.age,
			national_id = EXCLUDED.national_id,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			active = EXCLUDED.active
	`, customer.ID, customer.Code, customer.Name, customer.Gender, customer.Age,
		customer.NationalID, customer.Address, customer.Phone, customer.Active, customer.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateCustomer
		}
		return fmt.Errorf("save customer %s: %w", customer.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() {
	s.Pool.Close()
}

func scanAccount(row pgx.Row) (*Account, error) {
	var account Account
	err := row.Scan(&account.ID, &account.Number, &account.Type, &account.Balance,
		&account.Active, &account.CustomerID, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &account, nil
}

func scanAccounts(rows pgx.Rows) ([]*Account, error) {
	var out []*Account
	for rows.Next() {
		var account Account
		err := rows.Scan(&account.ID, &account.Number, &account.Type, &account.Balance,
			&account.Active, &account.CustomerID, &account.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, &account)
	}
	return out, rows.Err()
}

func scanMovements(rows pgx.Rows) ([]*Movement, error) {
	var out []*Movement
	for rows.Next() {
		var movement Movement
		err := rows.Scan(&movement.ID, &movement.AccountID, &movement.Kind, &movement.Value,
			&movement.ResultingBalance, &movement.Reference, &movement.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, &movement)
	}
	return out, rows.Err()
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var customer Customer
	err := row.Scan(&customer.ID, &customer.Code, &customer.Name, &customer.Gender,
		&customer.Age, &customer.NationalID, &customer.Address, &customer.Phone,
		&customer.Active, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &customer, nil
}

func mapAccountSaveErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateAccount
	}
	return fmt.Errorf("save account: %w", err)
}
