package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/bankoffice/internal/customers"
	"github.com/example/bankoffice/internal/ledger"
	"github.com/example/bankoffice/internal/report"
	"github.com/example/bankoffice/internal/security"
)

const dateLayout = "2006-01-02"

// LedgerService is the slice of the ledger engine the handlers call.
type LedgerService interface {
	OpenAccount(ctx context.Context, req ledger.OpenAccountRequest) (*ledger.Account, error)
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal, memo string) (*ledger.Movement, error)
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, memo string) (*ledger.Movement, error)
	Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal, memo string) (*ledger.Movement, *ledger.Movement, error)
	UpdateAccount(ctx context.Context, id string, req ledger.UpdateAccountRequest) (*ledger.Account, error)
}

// AccountReader serves account and movement lookups.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*ledger.Account, error)
	ListAccounts(ctx context.Context) ([]*ledger.Account, error)
	ListAccountsByCustomer(ctx context.Context, customerID string) ([]*ledger.Account, error)
	ListMovements(ctx context.Context, accountID string) ([]*ledger.Movement, error)
	DeleteAccount(ctx context.Context, id string) error
}

// CustomerService is the customer CRUD surface.
type CustomerService interface {
	Create(ctx context.Context, req customers.CreateRequest) (*ledger.Customer, error)
	Update(ctx context.Context, id string, req customers.UpdateRequest) (*ledger.Customer, error)
	Get(ctx context.Context, id string) (*ledger.Customer, error)
	List(ctx context.Context) ([]*ledger.Customer, error)
	Delete(ctx context.Context, id string) error
}

// StatementBuilder produces customer statements.
type StatementBuilder interface {
	Build(ctx context.Context, customerID string, from, to time.Time) (*report.Statement, error)
}

type movementRequest struct {
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo"`
}

type transferRequest struct {
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Memo                 string          `json:"memo"`
}

type openAccountRequest struct {
	Number         string          `json:"number"`
	Type           string          `json:"type"`
	CustomerID     string          `json:"customer_id"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
}

type updateAccountRequest struct {
	Number string `json:"number"`
	Type   string `json:"type"`
	Active *bool  `json:"active,omitempty"`
}

type movementResponse struct {
	CorrelationID string           `json:"correlation_id"`
	Movement      *ledger.Movement `json:"movement"`
}

type transferResponse struct {
	CorrelationID string           `json:"correlation_id"`
	Debit         *ledger.Movement `json:"debit"`
	Credit        *ledger.Movement `json:"credit"`
}

type accountResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Account       *ledger.Account `json:"account"`
}

type listAccountsResponse struct {
	CorrelationID string            `json:"correlation_id"`
	Accounts      []*ledger.Account `json:"accounts"`
}

type listMovementsResponse struct {
	CorrelationID string             `json:"correlation_id"`
	AccountID     string             `json:"account_id"`
	Movements     []*ledger.Movement `json:"movements"`
}

type customerResponse struct {
	CorrelationID string           `json:"correlation_id"`
	Customer      *ledger.Customer `json:"customer"`
}

type listCustomersResponse struct {
	CorrelationID string             `json:"correlation_id"`
	Customers     []*ledger.Customer `json:"customers"`
}

type statementResponse struct {
	CorrelationID string            `json:"correlation_id"`
	Statement     *report.Statement `json:"statement"`
}

// writeError maps domain errors to HTTP statuses and stable error codes.
func writeError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, "account_not_found")
	case errors.Is(err, ledger.ErrCustomerNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, "customer_not_found")
	case errors.Is(err, ledger.ErrInvalidAmount):
		security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, ledger.ErrInvalidTransfer):
		security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_transfer")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		security.WriteJSONError(w, r, http.StatusConflict, "insufficient_funds")
	case errors.Is(err, ledger.ErrDuplicateAccount):
		security.WriteJSONError(w, r, http.StatusConflict, "duplicate_account")
	case errors.Is(err, ledger.ErrDuplicateCustomer):
		security.WriteJSONError(w, r, http.StatusConflict, "duplicate_customer")
	case errors.Is(err, customers.ErrInvalidCustomer):
		security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error")
	default:
		if logger != nil {
			logger.Error("request failed",
				"cid", security.CorrelationIDFromContext(r.Context()),
				"path", r.URL.Path,
				"err", err,
			)
		}
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func handleDeposit(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req movementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		movement, err := deps.Ledger.Deposit(r.Context(), req.AccountID, req.Amount, req.Memo)
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, movementResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Movement:      movement,
		})
	}
}

func handleWithdraw(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req movementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		movement, err := deps.Ledger.Withdraw(r.Context(), req.AccountID, req.Amount, req.Memo)
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, movementResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Movement:      movement,
		})
	}
}

func handleTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		debit, credit, err := deps.Ledger.Transfer(r.Context(), req.SourceAccountID, req.DestinationAccountID, req.Amount, req.Memo)
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, transferResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Debit:         debit,
			Credit:        credit,
		})
	}
}

func handleOpenAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req openAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		account, err := deps.Ledger.OpenAccount(r.Context(), ledger.OpenAccountRequest{
			Number:         req.Number,
			Type:           ledger.AccountType(req.Type),
			CustomerID:     req.CustomerID,
			InitialDeposit: req.InitialDeposit,
		})
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, accountResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Account:       account,
		})
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := deps.Accounts.GetAccount(r.Context(), chi.URLParam(r, "account_id"))
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, accountResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Account:       account,
		})
	}
}

func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			accounts []*ledger.Account
			err      error
		)
		if customerID := r.URL.Query().Get("customer_id"); customerID != "" {
			accounts, err = deps.Accounts.ListAccountsByCustomer(r.Context(), customerID)
		} else {
			accounts, err = deps.Accounts.ListAccounts(r.Context())
		}
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, listAccountsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Accounts:      accounts,
		})
	}
}

func handleUpdateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		account, err := deps.Ledger.UpdateAccount(r.Context(), chi.URLParam(r, "account_id"), ledger.UpdateAccountRequest{
			Number: req.Number,
			Type:   ledger.AccountType(req.Type),
			Active: req.Active,
		})
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, accountResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Account:       account,
		})
	}
}

func handleDeleteAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Accounts.DeleteAccount(r.Context(), chi.URLParam(r, "account_id")); err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListMovements(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "account_id")

		// 404 for unknown accounts rather than an empty list.
		if _, err := deps.Accounts.GetAccount(r.Context(), accountID); err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		movements, err := deps.Accounts.ListMovements(r.Context(), accountID)
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, listMovementsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			AccountID:     accountID,
			Movements:     movements,
		})
	}
}

func handleCreateCustomer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req customers.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		customer, err := deps.Customers.Create(r.Context(), req)
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, customerResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Customer:      customer,
		})
	}
}

func handleUpdateCustomer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req customers.UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		customer, err := deps.Customers.Update(r.Context(), chi.URLParam(r, "customer_id"), req)
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, customerResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Customer:      customer,
		})
	}
}

func handleGetCustomer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := deps.Customers.Get(r.Context(), chi.URLParam(r, "customer_id"))
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, customerResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Customer:      customer,
		})
	}
}

func handleListCustomers(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Customers.List(r.Context())
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, listCustomersResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Customers:     list,
		})
	}
}

func handleDeleteCustomer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Customers.Delete(r.Context(), chi.URLParam(r, "customer_id")); err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleStatement serves GET /v1/reports/statement. The from and to
// query parameters are calendar dates; format=text returns the rendered
// plain-text report instead of JSON.
func handleStatement(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		customerID := q.Get("customer_id")
		if customerID == "" {
			security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error")
			return
		}

		from, err := time.Parse(dateLayout, q.Get("from"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_date")
			return
		}
		to, err := time.Parse(dateLayout, q.Get("to"))
		if err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_date")
			return
		}

		statement, err := deps.Reports.Build(r.Context(), customerID, from, to)
		if err != nil {
			writeError(deps.Logger, w, r, err)
			return
		}

		if q.Get("format") == "text" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(report.RenderText(statement)))
			return
		}

		writeJSON(w, r, http.StatusOK, statementResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Statement:     statement,
		})
	}
}
