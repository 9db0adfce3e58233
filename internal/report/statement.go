// Package report builds account statements for a customer over a date
// range. A statement folds each account's movement history: the opening
// balance is the sum of all movements before the range and every line
// carries the running balance after applying that movement.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/bankoffice/internal/ledger"
)

// DataSource is the slice of the ledger store a statement needs.
type DataSource interface {
	GetCustomer(ctx context.Context, id string) (*ledger.Customer, error)
	ListAccountsByCustomer(ctx context.Context, customerID string) ([]*ledger.Account, error)
	ListMovementsBefore(ctx context.Context, accountID string, before time.Time) ([]*ledger.Movement, error)
	ListMovementsInRange(ctx context.Context, accountID string, from, to time.Time) ([]*ledger.Movement, error)
}

// Line is a single statement entry. Value is signed: deposits positive,
// withdrawals negative. BalanceBefore and Balance bracket the movement.
type Line struct {
	Timestamp     time.Time           `json:"timestamp"`
	CustomerName  string              `json:"customer_name"`
	AccountNumber string              `json:"account_number"`
	AccountType   ledger.AccountType  `json:"account_type"`
	AccountActive bool                `json:"account_active"`
	Kind          ledger.MovementKind `json:"kind"`
	Reference     string              `json:"reference"`
	BalanceBefore decimal.Decimal     `json:"balance_before"`
	Value         decimal.Decimal     `json:"value"`
	Balance       decimal.Decimal     `json:"balance"`
}

// AccountSection summarizes one account inside a statement.
type AccountSection struct {
	Number         string             `json:"number"`
	Type           ledger.AccountType `json:"type"`
	OpeningBalance decimal.Decimal    `json:"opening_balance"`
	ClosingBalance decimal.Decimal    `json:"closing_balance"`
	Lines          []Line             `json:"lines"`
}

// Statement is the full report for one customer. Lines merges every
// account's entries in timestamp order.
type Statement struct {
	CustomerID   string           `json:"customer_id"`
	CustomerName string           `json:"customer_name"`
	From         time.Time        `json:"from"`
	To           time.Time        `json:"to"`
	Accounts     []AccountSection `json:"accounts"`
	Lines        []Line           `json:"lines"`
	TotalCredits decimal.Decimal  `json:"total_credits"`
	TotalDebits  decimal.Decimal  `json:"total_debits"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// Builder assembles statements. The location fixes where a calendar day
// begins and ends when expanding the requested dates.
type Builder struct {
	source DataSource
	loc    *time.Location
	now    ledger.Clock
}

func NewBuilder(source DataSource, loc *time.Location, clock ledger.Clock) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &Builder{source: source, loc: loc, now: clock}
}

// Build produces the statement for customerID covering the calendar days
// of from through to, inclusive. Only the date parts of from and to are
// used; the builder's location supplies the day boundaries. An inverted
// range is not an error, it just selects no movements.
func (b *Builder) Build(ctx context.Context, customerID string, from, to time.Time) (*Statement, error) {
	start, end := b.bounds(from, to)

	customer, err := b.source.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	accounts, err := b.source.ListAccountsByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	statement := &Statement{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		From:         start,
		To:           end,
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		GeneratedAt:  b.now(),
	}

	for _, account := range accounts {
		section, err := b.buildSection(ctx, customer, account, start, end)
		if err != nil {
			return nil, err
		}
		statement.Accounts = append(statement.Accounts, section)
		statement.Lines = append(statement.Lines, section.Lines...)
		for _, line := range section.Lines {
			switch line.Kind {
			case ledger.KindWithdrawal:
				statement.TotalDebits = statement.TotalDebits.Add(line.Value.Neg())
			default:
				statement.TotalCredits = statement.TotalCredits.Add(line.Value)
			}
		}
	}

	sort.SliceStable(statement.Lines, func(i, j int) bool {
		return statement.Lines[i].Timestamp.Before(statement.Lines[j].Timestamp)
	})
	return statement, nil
}

func (b *Builder) buildSection(ctx context.Context, customer *ledger.Customer, account *ledger.Account, start, end time.Time) (AccountSection, error) {
	section := AccountSection{
		Number:         account.Number,
		Type:           account.Type,
		OpeningBalance: decimal.Zero,
	}

	prior, err := b.source.ListMovementsBefore(ctx, account.ID, start)
	if err != nil {
		return section, fmt.Errorf("account %s: movements before range: %w", account.Number, err)
	}
	for _, m := range prior {
		section.OpeningBalance = section.OpeningBalance.Add(m.Kind.Signed(m.Value))
	}

	inRange, err := b.source.ListMovementsInRange(ctx, account.ID, start, end)
	if err != nil {
		return section, fmt.Errorf("account %s: movements in range: %w", account.Number, err)
	}

	running := section.OpeningBalance
	for _, m := range inRange {
		before := running
		running = running.Add(m.Kind.Signed(m.Value))
		section.Lines = append(section.Lines, Line{
			Timestamp:     m.Timestamp,
			CustomerName:  customer.Name,
			AccountNumber: account.Number,
			AccountType:   account.Type,
			AccountActive: account.Active,
			Kind:          m.Kind,
			Reference:     m.Reference,
			BalanceBefore: before,
			Value:         m.Kind.Signed(m.Value),
			Balance:       running,
		})
	}
	section.ClosingBalance = running
	return section, nil
}

// bounds expands two dates into the first instant of the start day and
// the last whole second of the end day, in the builder's location.
func (b *Builder) bounds(from, to time.Time) (time.Time, time.Time) {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, b.loc)
	end := time.Date(ty, tm, td, 23, 59, 59, 0, b.loc)
	return start, end
}
