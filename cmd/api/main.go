package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/example/bankoffice/internal/api"
	"github.com/example/bankoffice/internal/config"
	"github.com/example/bankoffice/internal/customers"
	"github.com/example/bankoffice/internal/ledger"
	"github.com/example/bankoffice/internal/report"
	"github.com/example/bankoffice/internal/security"
	"github.com/example/bankoffice/pkg/audit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	allowlist, err := security.ParseCIDRAllowlist(cfg.IPAllowlist)
	if err != nil {
		logger.Error("invalid IP_ALLOWLIST", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := &ledger.PostgresStore{Pool: pool}
	if err := store.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	engine := ledger.NewEngine(store, nil)
	customerSvc := customers.NewService(store, nil)
	statements := report.NewBuilder(store, cfg.ReportLocation, nil)

	auditor, closeAudit, err := buildAuditor(cfg.AuditDBPath)
	if err != nil {
		logger.Error("failed to open audit store", "error", err, "path", cfg.AuditDBPath)
		os.Exit(1)
	}
	defer closeAudit()

	var rateLimiter *security.RedisTokenBucket
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		rateLimiter = &security.RedisTokenBucket{
			Redis:      redisClient,
			Prefix:     "bankoffice_api",
			Capacity:   cfg.RateLimitCapacity,
			RefillRate: cfg.RateLimitRefill,
		}
	}

	router, err := api.NewRouter(api.Dependencies{
		Logger:       logger,
		Ledger:       engine,
		Accounts:     store,
		Customers:    customerSvc,
		Reports:      statements,
		Auditor:      auditor,
		RateLimiter:  rateLimiter,
		IPAllowlist:  allowlist,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.APIAddr)
	if err != nil {
		logger.Error("failed to listen", "error", err, "addr", cfg.APIAddr)
		os.Exit(1)
	}

	if cfg.TLSEnabled() {
		tlsCfg, err := security.LoadServerTLSConfig(security.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
			CAFile:   cfg.TLSCAFile,
		})
		if err != nil {
			logger.Error("failed to load TLS config", "error", err)
			os.Exit(1)
		}
		srv.TLSConfig = tlsCfg
		ln = tls.NewListener(ln, tlsCfg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("bankoffice api listening", "addr", cfg.APIAddr, "env", cfg.Environment, "tls", cfg.TLSEnabled())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// buildAuditor wires the hash-chained audit log, persisted to SQLite
// when AUDIT_DB is set and in-memory otherwise.
func buildAuditor(path string) (api.Auditor, func(), error) {
	if path == "" {
		return audit.NewChainLogger(), func() {}, nil
	}

	store, err := audit.OpenSQLiteStore(path)
	if err != nil {
		return nil, nil, err
	}
	head, sequence, err := store.Head()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	logger := audit.NewChainLoggerWithSink(store, head, sequence)
	return logger, func() { store.Close() }, nil
}
