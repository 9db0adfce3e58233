package ledger

import "errors"

// Business-rule failures surfaced directly to the caller. They are never
// retried by the engine; storage failures propagate separately, wrapped
// with context.
var (
	// ErrAccountNotFound means the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCustomerNotFound means the referenced customer does not exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInvalidAmount means the amount is zero, negative, or carries more
	// than two fractional digits.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientFunds means a withdrawal exceeds the available
	// balance. An unset balance counts as insufficient, not as zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateAccount means the account number is already in use.
	ErrDuplicateAccount = errors.New("account number already exists")

	// ErrDuplicateCustomer means the national id or customer code is
	// already in use.
	ErrDuplicateCustomer = errors.New("customer identification already exists")

	// ErrInvalidTransfer means source and destination accounts are the
	// same.
	ErrInvalidTransfer = errors.New("destination account must differ from source account")
)
