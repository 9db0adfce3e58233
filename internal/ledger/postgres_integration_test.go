package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("bankoffice"),
		postgres.WithUsername("bankoffice"),
		postgres.WithPassword("bankoffice"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := &PostgresStore{Pool: pool}
	require.NoError(t, store.InitSchema(ctx))
	return store
}

func seedPostgres(t *testing.T, store *PostgresStore) (customerID string) {
	t.Helper()
	customerID = uuid.NewString()
	require.NoError(t, store.SaveCustomer(context.Background(), &Customer{
		ID:         customerID,
		Code:       "code-" + customerID[:8],
		Name:       "Jose Lema",
		NationalID: "nid-" + customerID[:8],
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}))
	return customerID
}

func TestPostgresAccountRoundTrip(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	customerID := seedPostgres(t, store)
	engine := NewEngine(store, nil)

	account, err := engine.OpenAccount(ctx, OpenAccountRequest{
		Number:         "478758",
		Type:           AccountSavings,
		CustomerID:     customerID,
		InitialDeposit: decimal.RequireFromString("2000.00"),
	})
	require.NoError(t, err)

	loaded, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "478758", loaded.Number)
	assert.True(t, loaded.Balance.Equal(decimal.RequireFromString("2000.00")))

	byNumber, err := store.GetAccountByNumber(ctx, "478758")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byNumber.ID)

	movements, err := store.ListMovements(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, KindInitialDeposit, movements[0].Kind)
	assert.Equal(t, "opening", movements[0].Reference)
}

func TestPostgresDuplicateAccountNumber(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	customerID := seedPostgres(t, store)
	engine := NewEngine(store, nil)

	_, err := engine.OpenAccount(ctx, OpenAccountRequest{
		Number: "478758", Type: AccountSavings, CustomerID: customerID,
	})
	require.NoError(t, err)

	_, err = engine.OpenAccount(ctx, OpenAccountRequest{
		Number: "478758", Type: AccountChecking, CustomerID: customerID,
	})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestPostgresTransferAtomicity(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	customerID := seedPostgres(t, store)
	engine := NewEngine(store, nil)

	source, err := engine.OpenAccount(ctx, OpenAccountRequest{
		Number: "478758", Type: AccountSavings, CustomerID: customerID,
		InitialDeposit: decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	_, _, err = engine.Transfer(ctx, source.ID, "missing", decimal.RequireFromString("30.00"), "")
	require.ErrorIs(t, err, ErrAccountNotFound)

	reloaded, err := store.GetAccount(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(decimal.RequireFromString("100.00")))

	movements, err := store.ListMovements(ctx, source.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestPostgresConcurrentWithdrawals(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	customerID := seedPostgres(t, store)
	engine := NewEngine(store, nil)

	account, err := engine.OpenAccount(ctx, OpenAccountRequest{
		Number: "478758", Type: AccountSavings, CustomerID: customerID,
		InitialDeposit: decimal.RequireFromString("100.00"),
	})
	require.NoError(t, err)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Withdraw(ctx, account.ID, decimal.RequireFromString("60.00"), "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 1, succeeded)

	reloaded, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(decimal.RequireFromString("40.00")))
}

func TestPostgresMovementRangeQueries(t *testing.T) {
	store := startPostgres(t)
	ctx := context.Background()
	customerID := seedPostgres(t, store)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Minute)
		return current
	}
	engine := NewEngine(store, clock)

	account, err := engine.OpenAccount(ctx, OpenAccountRequest{
		Number: "478758", Type: AccountSavings, CustomerID: customerID,
		InitialDeposit: decimal.RequireFromString("50.00"),
	})
	require.NoError(t, err)

	_, err = engine.Deposit(ctx, account.ID, decimal.RequireFromString("20.00"), "")
	require.NoError(t, err)

	before, err := store.ListMovementsBefore(ctx, account.ID, base.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, KindInitialDeposit, before[0].Kind)

	inRange, err := store.ListMovementsInRange(ctx, account.ID, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, inRange, 2)
}
