package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/fuelledger/internal/store"
)

// WorkIDGate approves gated mutations when the re-entered work ID equals
// the one stored at users/{uid}. The stored value is read on every check so
// a changed work ID takes effect immediately. Comparison is exact: case
// sensitive, no trimming.
type WorkIDGate struct {
	store store.Store
}

// NewWorkIDGate creates a gate reading users from st.
func NewWorkIDGate(st store.Store) *WorkIDGate {
	return &WorkIDGate{store: st}
}

func (g *WorkIDGate) Authorize(ctx context.Context, req Request) error {
	if !Gated(req.Path) {
		return nil
	}
	if req.WorkID == "" {
		return ErrWorkIDRequired
	}

	stored, err := g.StoredWorkID(ctx, req.UID)
	if err != nil {
		return err
	}

	if req.WorkID != stored {
		slog.Warn("policy: work id mismatch",
			"uid", req.UID,
			"action", req.Action,
			"path", req.Path,
		)
		return ErrWorkIDMismatch
	}
	return nil
}

// StoredWorkID returns the work ID on file for uid.
func (g *WorkIDGate) StoredWorkID(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return "", ErrNoWorkIDOnFile
	}
	rec, found, err := g.store.Read(ctx, store.Join("users", uid))
	if err != nil {
		return "", fmt.Errorf("read user: %w", err)
	}
	if !found {
		return "", ErrNoWorkIDOnFile
	}
	workID, _ := rec["workId"].(string)
	if workID == "" {
		return "", ErrNoWorkIDOnFile
	}
	return workID, nil
}
