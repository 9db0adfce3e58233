// Package api exposes the HTTP surface: customer CRUD, account
// lifecycle, ledger operations and statement reports.
package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/bankoffice/internal/security"
	"github.com/example/bankoffice/pkg/audit"
)

type Auditor interface {
	Append(payload string) (*audit.LogEntry, error)
}

type Dependencies struct {
	Logger *slog.Logger

	Ledger    LedgerService
	Accounts  AccountReader
	Customers CustomerService
	Reports   StatementBuilder

	Auditor      Auditor
	RateLimiter  *security.RedisTokenBucket
	IPAllowlist  []*net.IPNet
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	customerV, err := security.NewJSONSchemaValidator(customerSchema)
	if err != nil {
		return nil, err
	}
	openAccountV, err := security.NewJSONSchemaValidator(openAccountSchema)
	if err != nil {
		return nil, err
	}
	updateAccountV, err := security.NewJSONSchemaValidator(updateAccountSchema)
	if err != nil {
		return nil, err
	}
	movementV, err := security.NewJSONSchemaValidator(movementSchema)
	if err != nil {
		return nil, err
	}
	transferV, err := security.NewJSONSchemaValidator(transferSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	r.Use(security.IPAllowlist(deps.IPAllowlist))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}
	if deps.Auditor != nil {
		r.Use(AuditMiddleware(deps.Auditor))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", handleListCustomers(deps))
			r.With(customerV.Middleware).Post("/", handleCreateCustomer(deps))
			r.Get("/{customer_id}", handleGetCustomer(deps))
			r.With(customerV.Middleware).Put("/{customer_id}", handleUpdateCustomer(deps))
			r.Delete("/{customer_id}", handleDeleteCustomer(deps))
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", handleListAccounts(deps))
			r.With(openAccountV.Middleware).Post("/", handleOpenAccount(deps))
			r.Get("/{account_id}", handleGetAccount(deps))
			r.With(updateAccountV.Middleware).Put("/{account_id}", handleUpdateAccount(deps))
			r.Delete("/{account_id}", handleDeleteAccount(deps))
			r.Get("/{account_id}/movements", handleListMovements(deps))
		})

		r.Route("/ledger", func(r chi.Router) {
			r.With(movementV.Middleware).Post("/deposit", handleDeposit(deps))
			r.With(movementV.Middleware).Post("/withdraw", handleWithdraw(deps))
			r.With(transferV.Middleware).Post("/transfer", handleTransfer(deps))
		})

		r.Get("/reports/statement", handleStatement(deps))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}

func rateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
