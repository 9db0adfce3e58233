package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Clock supplies movement timestamps. Injected so operations are
// deterministic under test.
type Clock func() time.Time

// Reference markers appended to the caller's memo on the two legs of a
// transfer, and the fixed reference for an opening movement.
const (
	debitSuffix      = " - debit"
	creditSuffix     = " - credit"
	openingReference = "opening"
)

// Engine enforces the ledger invariant: an account's balance always equals
// the signed fold of its movement history. Every operation runs as one
// serializable store transaction, so the balance update and the movement
// append commit together or not at all.
type Engine struct {
	store Store
	now   Clock
	newID func() string
}

// NewEngine creates an engine over store. A nil clock defaults to
// time.Now.
func NewEngine(store Store, clock Clock) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		store: store,
		now:   clock,
		newID: uuid.NewString,
	}
}

// validateAmount rejects non-positive amounts and amounts with more than
// two fractional digits. All monetary arithmetic stays on exact decimals.
func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// Deposit credits amount to the account and appends a DEPOSIT movement
// carrying the resulting balance.
func (e *Engine) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, memo string) (*Movement, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var movement *Movement
	err := e.store.Atomic(ctx, func(tx Tx) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		movement, err = e.applyDeposit(ctx, tx, account, KindDeposit, amount, memo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// Withdraw debits amount from the account and appends a WITHDRAWAL
// movement. The balance may never go negative.
func (e *Engine) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, memo string) (*Movement, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var movement *Movement
	err := e.store.Atomic(ctx, func(tx Tx) error {
		account, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		movement, err = e.applyWithdrawal(ctx, tx, account, amount, memo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// Transfer moves amount from the source account to the destination account
// as a WITHDRAWAL plus DEPOSIT pair committed in one transaction spanning
// both accounts. If either leg fails, neither commits. The debit leg's
// reference is memo + " - debit", the credit leg's memo + " - credit".
func (e *Engine) Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal, memo string) (debit, credit *Movement, err error) {
	if sourceID == destID {
		return nil, nil, ErrInvalidTransfer
	}
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}

	err = e.store.Atomic(ctx, func(tx Tx) error {
		// Lock both rows in id order so opposing transfers cannot
		// deadlock.
		first, second := sourceID, destID
		if second < first {
			first, second = second, first
		}
		locked := make(map[string]*Account, 2)
		for _, id := range []string{first, second} {
			account, err := tx.GetAccountForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}

		debit, err = e.applyWithdrawal(ctx, tx, locked[sourceID], amount, memo+debitSuffix)
		if err != nil {
			return err
		}
		credit, err = e.applyDeposit(ctx, tx, locked[destID], KindDeposit, amount, memo+creditSuffix)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return debit, credit, nil
}

// OpenAccountRequest carries the inputs for opening an account. A zero
// InitialDeposit opens the account with balance 0 and no movement.
type OpenAccountRequest struct {
	Number         string
	Type           AccountType
	CustomerID     string
	InitialDeposit decimal.Decimal
}

// OpenAccount creates an account for an existing customer. A strictly
// positive initial deposit is folded in immediately as an INITIAL_DEPOSIT
// movement referencing "opening".
func (e *Engine) OpenAccount(ctx context.Context, req OpenAccountRequest) (*Account, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("invalid account type %q", req.Type)
	}
	if req.InitialDeposit.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	var account *Account
	err := e.store.Atomic(ctx, func(tx Tx) error {
		existing, err := tx.GetAccountByNumber(ctx, req.Number)
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			return err
		}
		if existing != nil {
			return ErrDuplicateAccount
		}

		if _, err := tx.GetCustomer(ctx, req.CustomerID); err != nil {
			return err
		}

		account = &Account{
			ID:         e.newID(),
			Number:     req.Number,
			Type:       req.Type,
			Balance:    decimal.Zero,
			Active:     true,
			CustomerID: req.CustomerID,
			CreatedAt:  e.now(),
		}
		if err := tx.SaveAccount(ctx, account); err != nil {
			return err
		}

		if req.InitialDeposit.Sign() > 0 {
			if err := validateAmount(req.InitialDeposit); err != nil {
				return err
			}
			if _, err := e.applyDeposit(ctx, tx, account, KindInitialDeposit, req.InitialDeposit, openingReference); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccountRequest carries the mutable account attributes. Balance
// is never updated directly; only ledger operations move it.
type UpdateAccountRequest struct {
	Number string
	Type   AccountType
	Active *bool
}

// UpdateAccount renumbers or retypes an account, keeping numbers unique.
func (e *Engine) UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest) (*Account, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("invalid account type %q", req.Type)
	}

	var account *Account
	err := e.store.Atomic(ctx, func(tx Tx) error {
		var err error
		account, err = tx.GetAccountForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if req.Number != account.Number {
			existing, err := tx.GetAccountByNumber(ctx, req.Number)
			if err != nil && !errors.Is(err, ErrAccountNotFound) {
				return err
			}
			if existing != nil {
				return ErrDuplicateAccount
			}
		}

		account.Number = req.Number
		account.Type = req.Type
		if req.Active != nil {
			account.Active = *req.Active
		}
		return tx.SaveAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// applyDeposit folds a credit into a locked account: balance moves up by
// value and a movement snapshotting the new balance is appended.
func (e *Engine) applyDeposit(ctx context.Context, tx Tx, account *Account, kind MovementKind, value decimal.Decimal, reference string) (*Movement, error) {
	account.Balance = account.Balance.Add(value)
	if err := tx.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("save account %s: %w", account.ID, err)
	}
	return e.appendMovement(ctx, tx, account, kind, value, reference)
}

// applyWithdrawal folds a debit into a locked account after the
// sufficient-funds check.
func (e *Engine) applyWithdrawal(ctx context.Context, tx Tx, account *Account, value decimal.Decimal, reference string) (*Movement, error) {
	if account.Balance.LessThan(value) {
		return nil, ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(value)
	if err := tx.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("save account %s: %w", account.ID, err)
	}
	return e.appendMovement(ctx, tx, account, KindWithdrawal, value, reference)
}

func (e *Engine) appendMovement(ctx context.Context, tx Tx, account *Account, kind MovementKind, value decimal.Decimal, reference string) (*Movement, error) {
	movement := &Movement{
		ID:               e.newID(),
		AccountID:        account.ID,
		Kind:             kind,
		Value:            value,
		ResultingBalance: account.Balance,
		Reference:        reference,
		Timestamp:        e.now(),
	}
	if err := tx.AppendMovement(ctx, movement); err != nil {
		return nil, fmt.Errorf("append movement for account %s: %w", account.ID, err)
	}
	return movement, nil
}
