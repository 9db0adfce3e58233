package report

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bankoffice/internal/ledger"
)

// setClock lets a test pin the timestamp of each write.
type setClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *setClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *setClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seed creates one customer with two accounts and a history spanning
// February and March 2024:
//
//	478758 (savings):  opened Feb 10 with 2000.00, withdraws 575.00 Mar 2
//	225487 (checking): opened Feb 10 with 100.00, receives 600.00 Mar 5
//
// Returns the store and the account IDs.
func seed(t *testing.T, clock *setClock) (*ledger.MemoryStore, string, string) {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	engine := ledger.NewEngine(store, clock.Now)

	require.NoError(t, store.SaveCustomer(ctx, &ledger.Customer{
		ID: "cus-1", Code: "jose", Name: "Jose Lema", NationalID: "1710034065", Active: true,
	}))

	clock.Set(time.Date(2024, 2, 10, 10, 0, 0, 0, time.UTC))
	savings, err := engine.OpenAccount(ctx, ledger.OpenAccountRequest{
		Number: "478758", Type: ledger.AccountSavings, CustomerID: "cus-1",
		InitialDeposit: dec("2000.00"),
	})
	require.NoError(t, err)

	checking, err := engine.OpenAccount(ctx, ledger.OpenAccountRequest{
		Number: "225487", Type: ledger.AccountChecking, CustomerID: "cus-1",
		InitialDeposit: dec("100.00"),
	})
	require.NoError(t, err)

	clock.Set(time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC))
	_, err = engine.Withdraw(ctx, savings.ID, dec("575.00"), "rent")
	require.NoError(t, err)

	clock.Set(time.Date(2024, 3, 5, 16, 45, 0, 0, time.UTC))
	_, err = engine.Deposit(ctx, checking.ID, dec("600.00"), "payroll")
	require.NoError(t, err)

	return store, savings.ID, checking.ID
}

func TestBuildOpeningBalancesFoldPriorMovements(t *testing.T) {
	clock := &setClock{}
	store, _, _ := seed(t, clock)

	clock.Set(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	builder := NewBuilder(store, time.UTC, clock.Now)
	statement, err := builder.Build(context.Background(), "cus-1", date(2024, 3, 1), date(2024, 3, 31))
	require.NoError(t, err)

	require.Len(t, statement.Accounts, 2)
	byNumber := map[string]AccountSection{}
	for _, section := range statement.Accounts {
		byNumber[section.Number] = section
	}

	savings := byNumber["478758"]
	assert.True(t, savings.OpeningBalance.Equal(dec("2000.00")))
	assert.True(t, savings.ClosingBalance.Equal(dec("1425.00")))
	require.Len(t, savings.Lines, 1)
	assert.Equal(t, "Jose Lema", savings.Lines[0].CustomerName)
	assert.True(t, savings.Lines[0].AccountActive)
	assert.True(t, savings.Lines[0].BalanceBefore.Equal(dec("2000.00")))
	assert.True(t, savings.Lines[0].Value.Equal(dec("-575.00")))
	assert.True(t, savings.Lines[0].Balance.Equal(dec("1425.00")))

	checking := byNumber["225487"]
	assert.True(t, checking.OpeningBalance.Equal(dec("100.00")))
	assert.True(t, checking.ClosingBalance.Equal(dec("700.00")))
}

func TestBuildMergesLinesAcrossAccountsInTimestampOrder(t *testing.T) {
	clock := &setClock{}
	store, _, _ := seed(t, clock)

	builder := NewBuilder(store, time.UTC, clock.Now)
	statement, err := builder.Build(context.Background(), "cus-1", date(2024, 2, 1), date(2024, 3, 31))
	require.NoError(t, err)

	require.Len(t, statement.Lines, 4)
	for i := 1; i < len(statement.Lines); i++ {
		assert.False(t, statement.Lines[i].Timestamp.Before(statement.Lines[i-1].Timestamp))
	}
	// Mar 2 withdrawal lands before Mar 5 deposit even though the
	// accounts were assembled in a different order.
	assert.Equal(t, "478758", statement.Lines[2].AccountNumber)
	assert.Equal(t, "225487", statement.Lines[3].AccountNumber)
}

func TestBuildTotals(t *testing.T) {
	clock := &setClock{}
	store, _, _ := seed(t, clock)

	builder := NewBuilder(store, time.UTC, clock.Now)
	statement, err := builder.Build(context.Background(), "cus-1", date(2024, 3, 1), date(2024, 3, 31))
	require.NoError(t, err)

	assert.True(t, statement.TotalCredits.Equal(dec("600.00")), "credits: %s", statement.TotalCredits)
	assert.True(t, statement.TotalDebits.Equal(dec("575.00")), "debits: %s", statement.TotalDebits)
}

func TestBuildDayBoundariesInclusive(t *testing.T) {
	clock := &setClock{}
	store, savingsID, _ := seed(t, clock)
	ctx := context.Background()
	engine := ledger.NewEngine(store, clock.Now)

	// Movements at the very edges of March 7.
	clock.Set(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC))
	_, err := engine.Deposit(ctx, savingsID, dec("1.00"), "first second")
	require.NoError(t, err)
	clock.Set(time.Date(2024, 3, 7, 23, 59, 59, 0, time.UTC))
	_, err = engine.Deposit(ctx, savingsID, dec("2.00"), "last second")
	require.NoError(t, err)
	clock.Set(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	_, err = engine.Deposit(ctx, savingsID, dec("4.00"), "next day")
	require.NoError(t, err)

	builder := NewBuilder(store, time.UTC, clock.Now)
	statement, err := builder.Build(ctx, "cus-1", date(2024, 3, 7), date(2024, 3, 7))
	require.NoError(t, err)

	require.Len(t, statement.Lines, 2)
	assert.Equal(t, "first second", statement.Lines[0].Reference)
	assert.Equal(t, "last second", statement.Lines[1].Reference)
}

func TestBuildEmptyRange(t *testing.T) {
	clock := &setClock{}
	store, _, _ := seed(t, clock)

	builder := NewBuilder(store, time.UTC, clock.Now)
	statement, err := builder.Build(context.Background(), "cus-1", date(2023, 1, 1), date(2023, 1, 31))
	require.NoError(t, err)

	assert.Empty(t, statement.Lines)
	assert.True(t, statement.TotalCredits.IsZero())
	assert.True(t, statement.TotalDebits.IsZero())
	for _, section := range statement.Accounts {
		assert.True(t, section.OpeningBalance.IsZero())
		assert.True(t, section.ClosingBalance.IsZero())
	}
}

func TestBuildInvertedRangeYieldsEmptyResult(t *testing.T) {
	clock := &setClock{}
	store, _, _ := seed(t, clock)

	builder := NewBuilder(store, time.UTC, clock.Now)
	statement, err := builder.Build(context.Background(), "cus-1", date(2024, 3, 31), date(2024, 3, 1))
	require.NoError(t, err)

	assert.Empty(t, statement.Lines)
	assert.True(t, statement.TotalCredits.IsZero())
	assert.True(t, statement.TotalDebits.IsZero())
}

func TestBuildCustomerWithoutAccounts(t *testing.T) {
	clock := &setClock{}
	store, _, _ := seed(t, clock)
	require.NoError(t, store.SaveCustomer(context.Background(), &ledger.Customer{
		ID: "cus-2", Code: "marianela", Name: "Marianela Montalvo", NationalID: "1750079001", Active: true,
	}))

	clock.Set(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	builder := NewBuilder(store, time.UTC, clock.Now)
	statement, err := builder.Build(context.Background(), "cus-2", date(2024, 3, 1), date(2024, 3, 31))
	require.NoError(t, err)

	assert.Equal(t, "Marianela Montalvo", statement.CustomerName)
	assert.Empty(t, statement.Accounts)
	assert.Empty(t, statement.Lines)
	assert.True(t, statement.TotalCredits.IsZero())
	assert.True(t, statement.TotalDebits.IsZero())
}

func TestBuildIsReadOnlyAndRepeatable(t *testing.T) {
	clock := &setClock{}
	store, _, _ := seed(t, clock)

	clock.Set(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	builder := NewBuilder(store, time.UTC, clock.Now)

	first, err := builder.Build(context.Background(), "cus-1", date(2024, 3, 1), date(2024, 3, 31))
	require.NoError(t, err)
	second, err := builder.Build(context.Background(), "cus-1", date(2024, 3, 1), date(2024, 3, 31))
	require.NoError(t, err)

	assert.Equal(t, first.Lines, second.Lines)
	assert.Equal(t, first.Accounts, second.Accounts)
	assert.True(t, first.TotalCredits.Equal(second.TotalCredits))
	assert.True(t, first.TotalDebits.Equal(second.TotalDebits))
}

func TestBuildUnknownCustomer(t *testing.T) {
	clock := &setClock{}
	store, _, _ := seed(t, clock)

	builder := NewBuilder(store, time.UTC, clock.Now)
	_, err := builder.Build(context.Background(), "nobody", date(2024, 3, 1), date(2024, 3, 31))
	assert.ErrorIs(t, err, ledger.ErrCustomerNotFound)
}

func TestBuildBusinessTimezoneShiftsDayBoundaries(t *testing.T) {
	clock := &setClock{}
	store, savingsID, _ := seed(t, clock)
	ctx := context.Background()
	engine := ledger.NewEngine(store, clock.Now)

	// 03:00 UTC on Mar 8 is still Mar 7 in Guayaquil (UTC-5).
	clock.Set(time.Date(2024, 3, 8, 3, 0, 0, 0, time.UTC))
	_, err := engine.Deposit(ctx, savingsID, dec("9.00"), "late night")
	require.NoError(t, err)

	loc, err := time.LoadLocation("America/Guayaquil")
	require.NoError(t, err)

	builder := NewBuilder(store, loc, clock.Now)
	statement, err := builder.Build(ctx, "cus-1", date(2024, 3, 7), date(2024, 3, 7))
	require.NoError(t, err)

	require.Len(t, statement.Lines, 1)
	assert.Equal(t, "late night", statement.Lines[0].Reference)
}
