package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/store"
)

const auditCollection = "audit_log"

// DefaultAuditLimit caps an audit query without an explicit limit.
const DefaultAuditLimit = 100

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionEntryCreate           AuditAction = "entry_create"
	ActionInvoiceCreate         AuditAction = "invoice_create"
	ActionCounterSet            AuditAction = "counter_set"
	ActionLedgerCreate          AuditAction = "ledger_create"
	ActionTruckCreate           AuditAction = "truck_create"
	ActionTruckUpdate           AuditAction = "truck_update"
	ActionTruckDelete           AuditAction = "truck_delete"
	ActionCreditorCreate        AuditAction = "creditor_create"
	ActionCreditorRename        AuditAction = "creditor_rename"
	ActionCreditorDelete        AuditAction = "creditor_delete"
	ActionCreditorExpenseCreate AuditAction = "creditor_expense_create"
	ActionCreditorExpenseUpdate AuditAction = "creditor_expense_update"
	ActionCreditorExpenseDelete AuditAction = "creditor_expense_delete"
	ActionExpenseCreate         AuditAction = "expense_create"
	ActionExpenseUpdate         AuditAction = "expense_update"
	ActionExpenseDelete         AuditAction = "expense_delete"
	ActionAccountCreate         AuditAction = "account_create"
	ActionPasswordReset         AuditAction = "password_reset"
	ActionProfileUpdate         AuditAction = "profile_update"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string        `json:"id"`
	Action    AuditAction   `json:"action"`
	Severity  AuditSeverity `json:"severity"`
	Path      string        `json:"path"`
	UserID    string        `json:"userId,omitempty"`
	UserEmail string        `json:"userEmail,omitempty"`
	IPAddress string        `json:"ipAddress,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`
	OldValue  store.Record  `json:"oldValue,omitempty"`
	NewValue  store.Record  `json:"newValue,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// AuditLogParams contains parameters for creating an audit log entry.
// The actor, IP address and user agent come from the context.
type AuditLogParams struct {
	Action   AuditAction
	Path     string
	OldValue store.Record
	NewValue store.Record
	Reason   string
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionCounterSet, ActionCreditorDelete:
		return SeverityCritical
	case ActionTruckDelete, ActionCreditorExpenseDelete, ActionExpenseDelete, ActionPasswordReset:
		return SeverityHigh
	case ActionProfileUpdate, ActionAccountCreate:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit creates a new audit log entry.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) (*AuditEntry, error) {
	entry := &AuditEntry{
		Action:    params.Action,
		Severity:  determineSeverity(params.Action),
		Path:      params.Path,
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		OldValue:  params.OldValue,
		NewValue:  params.NewValue,
		Reason:    params.Reason,
		CreatedAt: s.now().UTC(),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		entry.UserID = actor.UID
		entry.UserEmail = actor.Email
	}

	rec, err := store.Encode(entry)
	if err != nil {
		return nil, err
	}
	delete(rec, "id")

	id, err := s.store.Create(context.WithoutCancel(ctx), auditCollection, rec)
	if err != nil {
		return nil, remote("write audit entry", err)
	}
	entry.ID = id
	return entry, nil
}

// recordAudit logs a completed mutation. The mutation has already been
// committed, so a failed audit write is logged and otherwise ignored.
func (s *Service) recordAudit(ctx context.Context, params AuditLogParams) {
	log := s.logger(ctx)
	if _, err := s.LogAudit(ctx, params); err != nil {
		log.Error("audit write failed",
			"action", params.Action,
			"path", params.Path,
			"error", err,
		)
		return
	}
	log.Info("mutation recorded", "action", params.Action, "path", params.Path)
}

// AuditLogFilter contains filtering options for querying audit logs.
type AuditLogFilter struct {
	Action     AuditAction
	PathPrefix string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

func (f AuditLogFilter) match(e AuditEntry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(e.Path, f.PathPrefix) {
		return false
	}
	if !f.StartTime.IsZero() && e.CreatedAt.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && !e.CreatedAt.Before(f.EndTime) {
		return false
	}
	return true
}

// GetAuditLog retrieves audit log entries newest first. A zero Limit
// selects DefaultAuditLimit; a negative one returns every match.
func (s *Service) GetAuditLog(ctx context.Context, filter AuditLogFilter) ([]AuditEntry, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultAuditLimit
	}

	all, err := s.auditEntries(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]AuditEntry, 0, len(all))
	for _, e := range all {
		if filter.match(e) {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})

	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Offset >= len(entries) {
		return []AuditEntry{}, nil
	}
	entries = entries[filter.Offset:]
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

// PurgeAuditLog deletes entries created before cutoff and returns how many
// were removed.
func (s *Service) PurgeAuditLog(ctx context.Context, cutoff time.Time) (int, error) {
	all, err := s.auditEntries(ctx)
	if err != nil {
		return 0, err
	}

	var ops []store.Op
	for _, e := range all {
		if e.CreatedAt.Before(cutoff) {
			ops = append(ops, store.Remove(store.Join(auditCollection, e.ID)))
		}
	}
	if len(ops) == 0 {
		return 0, nil
	}
	if err := s.commit(ctx, ops...); err != nil {
		return 0, remote("purge audit log", err)
	}
	return len(ops), nil
}

func (s *Service) auditEntries(ctx context.Context) ([]AuditEntry, error) {
	snaps, err := s.store.List(ctx, auditCollection)
	if err != nil {
		return nil, remote("list audit log", err)
	}
	out := make([]AuditEntry, 0, len(snaps))
	for _, snap := range snaps {
		var e AuditEntry
		if err := store.Decode(snap.Value, &e); err != nil {
			return nil, err
		}
		e.ID = snap.Key
		out = append(out, e)
	}
	return out, nil
}
