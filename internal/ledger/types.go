package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the product class of an account.
type AccountType string

const (
	AccountSavings  AccountType = "SAVINGS"
	AccountChecking AccountType = "CHECKING"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountSavings, AccountChecking:
		return true
	}
	return false
}

// MovementKind tags a movement. The sign of a movement is implied by its
// kind; stored values are always strictly positive.
type MovementKind string

const (
	KindDeposit        MovementKind = "DEPOSIT"
	KindWithdrawal     MovementKind = "WITHDRAWAL"
	KindInitialDeposit MovementKind = "INITIAL_DEPOSIT"
)

// Valid reports whether k is one of the known movement kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindInitialDeposit:
		return true
	}
	return false
}

// Signed returns value with the sign implied by the kind applied:
// negative for withdrawals, positive otherwise.
func (k MovementKind) Signed(value decimal.Decimal) decimal.Decimal {
	if k == KindWithdrawal {
		return value.Neg()
	}
	return value
}

// Account is a monetary balance holder owned by a customer. Balance is a
// cached fold over the account's movement history; it is only ever changed
// by the Engine together with an appended Movement.
type Account struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	Type       AccountType     `json:"type"`
	Balance    decimal.Decimal `json:"balance"`
	Active     bool            `json:"active"`
	CustomerID string          `json:"customer_id"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Movement is an immutable, append-only record of a balance change.
// ResultingBalance is the account balance immediately after the movement
// was applied.
type Movement struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"account_id"`
	Kind             MovementKind    `json:"kind"`
	Value            decimal.Decimal `json:"value"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
	Reference        string          `json:"reference,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Customer is an account owner. Person fields live directly on the
// customer; the engine and report builder only ever read ID and Name.
type Customer struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Gender     string    `json:"gender,omitempty"`
	Age        int       `json:"age,omitempty"`
	NationalID string    `json:"national_id"`
	Address    string    `json:"address,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
