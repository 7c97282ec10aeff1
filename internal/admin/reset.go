// Package admin provides operator actions on a whole ledger.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/store"
)

// ResetTimeout is the maximum duration for a reset.
const ResetTimeout = 30 * time.Second

// LedgerCollections are the business collections a reset clears. Accounts
// and the audit log are kept.
var LedgerCollections = []string{
	"tr800",
	"allocations",
	"invoices",
	"invoiceNumber",
	"data",
	"trucks",
	"creditors",
	"expenses",
}

// Reset removes every record of the named collections in one commit, so a
// failed reset leaves the ledger untouched. With no names it clears
// LedgerCollections. This is a destructive operation.
func Reset(ctx context.Context, st store.Store, collections ...string) error {
	if len(collections) == 0 {
		collections = LedgerCollections
	}

	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	ops := make([]store.Op, 0, len(collections))
	for _, c := range collections {
		if err := store.ValidatePath(c); err != nil {
			return fmt.Errorf("reset %q: %w", c, err)
		}
		ops = append(ops, store.Remove(c))
	}

	if err := st.Commit(ctx, ops...); err != nil {
		return fmt.Errorf("reset ledger: %w", err)
	}
	slog.Warn("ledger reset", "collections", collections)
	return nil
}
