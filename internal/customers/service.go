// Package customers manages customer records: creation, updates and
// lookups, with uniqueness enforced on both the customer code and the
// national identity number.
package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/bankoffice/internal/ledger"
)

// ErrInvalidCustomer is returned when required fields are missing.
var ErrInvalidCustomer = errors.New("customers: code, name and national id are required")

type Service struct {
	store ledger.CustomerStore
	now   ledger.Clock
	newID func() string
}

func NewService(store ledger.CustomerStore, clock ledger.Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, now: clock, newID: uuid.NewString}
}

// CreateRequest carries the fields for a new customer record.
type CreateRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Age        int    `json:"age"`
	NationalID string `json:"national_id"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
}

func (r CreateRequest) validate() error {
	if strings.TrimSpace(r.Code) == "" ||
		strings.TrimSpace(r.Name) == "" ||
		strings.TrimSpace(r.NationalID) == "" {
		return ErrInvalidCustomer
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*ledger.Customer, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, req.Code, req.NationalID, ""); err != nil {
		return nil, err
	}

	customer := &ledger.Customer{
		ID:         s.newID(),
		Code:       req.Code,
		Name:       req.Name,
		Gender:     req.Gender,
		Age:        req.Age,
		NationalID: req.NationalID,
		Address:    req.Address,
		Phone:      req.Phone,
		Active:     true,
		CreatedAt:  s.now(),
	}
	if err := s.store.SaveCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("save customer: %w", err)
	}
	return customer, nil
}

// UpdateRequest carries the mutable customer fields. Code and NationalID
// may change but must stay unique.
type UpdateRequest struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Age        int    `json:"age"`
	NationalID string `json:"national_id"`
	Address    string `json:"address"`
	Phone      string `json:"phone"`
	Active     *bool  `json:"active,omitempty"`
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*ledger.Customer, error) {
	customer, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Code) == "" ||
		strings.TrimSpace(req.Name) == "" ||
		strings.TrimSpace(req.NationalID) == "" {
		return nil, ErrInvalidCustomer
	}
	if err := s.checkUnique(ctx, req.Code, req.NationalID, id); err != nil {
		return nil, err
	}

	customer.Code = req.Code
	customer.Name = req.Name
	customer.Gender = req.Gender
	customer.Age = req.Age
	customer.NationalID = req.NationalID
	customer.Address = req.Address
	customer.Phone = req.Phone
	if req.Active != nil {
		customer.Active = *req.Active
	}
	if err := s.store.SaveCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("save customer: %w", err)
	}
	return customer, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ledger.Customer, error) {
	return s.store.GetCustomer(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*ledger.Customer, error) {
	return s.store.ListCustomers(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteCustomer(ctx, id)
}

// checkUnique rejects a code or national id already held by a different
// customer. selfID is empty on create.
func (s *Service) checkUnique(ctx context.Context, code, nationalID, selfID string) error {
	existing, err := s.store.GetCustomerByCode(ctx, code)
	switch {
	case err == nil && existing.ID != selfID:
		return ledger.ErrDuplicateCustomer
	case err != nil && !errors.Is(err, ledger.ErrCustomerNotFound):
		return fmt.Errorf("check code: %w", err)
	}

	existing, err = s.store.GetCustomerByNationalID(ctx, nationalID)
	switch {
	case err == nil && existing.ID != selfID:
		return ledger.ErrDuplicateCustomer
	case err != nil && !errors.Is(err, ledger.ErrCustomerNotFound):
		return fmt.Errorf("check national id: %w", err)
	}
	return nil
}
