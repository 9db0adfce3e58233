// auditverify checks the integrity of a persisted audit chain. It exits
// non-zero when the chain has been tampered with.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/bankoffice/pkg/audit"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	dbPath := flag.String("db", os.Getenv("AUDIT_DB"), "path to the audit SQLite database")
	flag.Parse()

	if *dbPath == "" {
		logger.Error("no audit database given, set -db or AUDIT_DB")
		os.Exit(2)
	}

	store, err := audit.OpenSQLiteStore(*dbPath)
	if err != nil {
		logger.Error("failed to open audit store", "error", err, "path", *dbPath)
		os.Exit(2)
	}
	defer store.Close()

	entries, err := store.Entries()
	if err != nil {
		logger.Error("failed to read audit entries", "error", err)
		os.Exit(2)
	}

	if !audit.VerifyChain(entries) {
		logger.Error("audit chain verification FAILED", "entries", len(entries))
		os.Exit(1)
	}

	head := ""
	if len(entries) > 0 {
		head = entries[len(entries)-1].Hash
	}
	fmt.Printf("audit chain OK: %d entries, head %s\n", len(entries), head)
}
