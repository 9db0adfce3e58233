package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local development.
// A single mutex serializes transactions; writes are staged per
// transaction and applied on commit, so a failed operation leaves no
// partial state behind.
type MemoryStore struct {
	mu        sync.Mutex
	accounts  map[string]Account
	numbers   map[string]string // account number -> account id
	movements map[string][]Movement
	customers map[string]Customer
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]Account),
		numbers:   make(map[string]string),
		movements: make(map[string][]Movement),
		customers: make(map[string]Customer),
	}
}

type memTx struct {
	store           *MemoryStore
	stagedAccounts  map[string]*Account
	stagedMovements []Movement
}

// Atomic runs fn with the store lock held and applies staged writes only
// when fn succeeds.
func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, stagedAccounts: make(map[string]*Account)}
	if err := fn(tx); err != nil {
		return err
	}

	for id, account := range tx.stagedAccounts {
		if prev, ok := s.accounts[id]; ok && prev.Number != account.Number {
			delete(s.numbers, prev.Number)
		}
		s.accounts[id] = *account
		s.numbers[account.Number] = id
	}
	for _, movement := range tx.stagedMovements {
		s.movements[movement.AccountID] = append(s.movements[movement.AccountID], movement)
	}
	return nil
}

func (t *memTx) GetAccountForUpdate(ctx context.Context, id string) (*Account, error) {
	if staged, ok := t.stagedAccounts[id]; ok {
		return staged, nil
	}
	account, ok := t.store.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := account
	t.stagedAccounts[id] = &copied
	return &copied, nil
}

func (t *memTx) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	for _, staged := range t.stagedAccounts {
		if staged.Number == number {
			copied := *staged
			return &copied, nil
		}
	}
	id, ok := t.store.numbers[number]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account := t.store.accounts[id]
	return &account, nil
}

func (t *memTx) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	customer, ok := t.store.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return &customer, nil
}

func (t *memTx) SaveAccount(ctx context.Context, account *Account) error {
	copied := *account
	t.stagedAccounts[account.ID] = &copied
	return nil
}

func (t *memTx) AppendMovement(ctx context.Context, movement *Movement) error {
	t.stagedMovements = append(t.stagedMovements, *movement)
	return nil
}

func (s *MemoryStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (s *MemoryStore) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.numbers[number]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account := s.accounts[id]
	return &account, nil
}

func (s *MemoryStore) ListAccounts(ctx context.Context) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		copied := account
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) ListAccountsByCustomer(ctx context.Context, customerID string) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Account
	for _, account := range s.accounts {
		if account.CustomerID == customerID {
			copied := account
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) SaveAccount(ctx context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.accounts[account.ID]; ok && prev.Number != account.Number {
		delete(s.numbers, prev.Number)
	}
	s.accounts[account.ID] = *account
	s.numbers[account.Number] = account.ID
	return nil
}

func (s *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	delete(s.numbers, account.Number)
	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) AppendMovement(ctx context.Context, movement *Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements[movement.AccountID] = append(s.movements[movement.AccountID], *movement)
	return nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, accountID string) ([]*Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMovements(accountID, func(Movement) bool { return true }), nil
}

func (s *MemoryStore) ListMovementsBefore(ctx context.Context, accountID string, before time.Time) ([]*Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMovements(accountID, func(m Movement) bool {
		return m.Timestamp.Before(before)
	}), nil
}

func (s *MemoryStore) ListMovementsInRange(ctx context.Context, accountID string, from, to time.Time) ([]*Movement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMovements(accountID, func(m Movement) bool {
		return !m.Timestamp.Before(from) && !m.Timestamp.After(to)
	}), nil
}

// listMovements filters an account's movements and returns them ordered by
// timestamp ascending, append order breaking ties.
func (s *MemoryStore) listMovements(accountID string, keep func(Movement) bool) []*Movement {
	var out []*Movement
	for _, movement := range s.movements[accountID] {
		if keep(movement) {
			copied := movement
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s *MemoryStore) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return &customer, nil
}

func (s *MemoryStore) GetCustomerByCode(ctx context.Context, code string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, customer := range s.customers {
		if customer.Code == code {
			copied := customer
			return &copied, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s *MemoryStore) GetCustomerByNationalID(ctx context.Context, nationalID string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, customer := range s.customers {
		if customer.NationalID == nationalID {
			copied := customer
			return &copied, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s *MemoryStore) ListCustomers(ctx context.Context) ([]*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		copied := customer
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryStore) SaveCustomer(ctx context.Context, customer *Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = *customer
	return nil
}

func (s *MemoryStore) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return ErrCustomerNotFound
	}
	delete(s.customers, id)
	return nil
}
