package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/fuelledger/internal/identity"
	"github.com/JonMunkholm/fuelledger/internal/lock"
	"github.com/JonMunkholm/fuelledger/internal/logging"
	"github.com/JonMunkholm/fuelledger/internal/policy"
	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/go-playground/validator/v10"
)

// CommitTimeout bounds a write once it has been decided. Writes run on a
// context detached from the request so a client disconnect cannot abort a
// half-decided mutation.
var CommitTimeout = 10 * time.Second

// Config holds the tunables of the ledger service.
type Config struct {
	InvoicePrefix   string        // "MOK-PFI"
	CounterStart    int           // value assumed when the counter is absent
	DefaultHSCode   string        // "0001.13.01"
	LockTTL         time.Duration // invoice counter lock lifetime
	ExportMax       int           // concurrent workbook renders
	ExportMaxWait   time.Duration // wait for a render slot
	AuditRetention  time.Duration // audit entries older than this are purged
	AuditCheckEvery time.Duration
}

// DefaultConfig returns the values the ledger has always used.
func DefaultConfig() Config {
	return Config{
		InvoicePrefix:   "MOK-PFI",
		CounterStart:    599,
		DefaultHSCode:   "0001.13.01",
		LockTTL:         30 * time.Second,
		ExportMax:       DefaultMaxConcurrentExports,
		ExportMaxWait:   DefaultExportWait,
		AuditRetention:  365 * 24 * time.Hour,
		AuditCheckEvery: 24 * time.Hour,
	}
}

// Accounts is the identity collaborator as the ledger sees it.
type Accounts interface {
	CreateUser(ctx context.Context, email, password string) (identity.Principal, error)
	Lookup(ctx context.Context, uid string) (identity.Principal, error)
	UpdateProfile(ctx context.Context, uid string, upd identity.ProfileUpdate) (identity.Principal, error)
	SendPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Deps are the collaborators of a Service. Only Store is required.
type Deps struct {
	Store      store.Store
	Locker     lock.Locker
	Authorizer policy.Authorizer
	Accounts   Accounts
	Artifacts  ArtifactRenderer
}

// Service provides the ledger's business operations.
type Service struct {
	store     store.Store
	locker    lock.Locker
	authz     policy.Authorizer
	accounts  Accounts
	artifacts ArtifactRenderer
	exports   *ExportLimiter
	validate  *validator.Validate
	cfg       Config
	now       func() time.Time
}

// NewService creates a Service. Missing optional collaborators fall back to
// an in-process lock, the work ID gate over the same store and the Excel
// renderer.
func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("core: store is required")
	}

	def := DefaultConfig()
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = def.InvoicePrefix
	}
	if cfg.CounterStart < 0 {
		return nil, fmt.Errorf("core: counter start must not be negative, got %d", cfg.CounterStart)
	}
	if cfg.DefaultHSCode == "" {
		cfg.DefaultHSCode = def.DefaultHSCode
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.AuditRetention <= 0 {
		cfg.AuditRetention = def.AuditRetention
	}
	if cfg.AuditCheckEvery <= 0 {
		cfg.AuditCheckEvery = def.AuditCheckEvery
	}

	s := &Service{
		store:     deps.Store,
		locker:    deps.Locker,
		authz:     deps.Authorizer,
		accounts:  deps.Accounts,
		artifacts: deps.Artifacts,
		exports:   NewExportLimiter(cfg.ExportMax, cfg.ExportMaxWait),
		validate:  newValidator(),
		cfg:       cfg,
		now:       time.Now,
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.authz == nil {
		s.authz = policy.NewWorkIDGate(deps.Store)
	}
	if s.artifacts == nil {
		s.artifacts = ExcelRenderer{}
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Exports exposes the export limiter for status reporting and shutdown.
func (s *Service) Exports() *ExportLimiter {
	return s.exports
}

// streamable lists the collections clients may follow live. Accounts and
// the audit log are not streamed.
var streamable = map[string]bool{
	entriesCollection:     true,
	allocationsCollection: true,
	invoicesCollection:    true,
	counterPath:           true,
	ledgerCollection:      true,
	trucksCollection:      true,
	creditorsCollection:   true,
	expensesCollection:    true,
}

// Streamable reports whether collection may be subscribed to by clients.
func Streamable(collection string) bool {
	return streamable[collection]
}

// Subscribe forwards store change events for path.
func (s *Service) Subscribe(ctx context.Context, path string, fn func(store.Event)) (func(), error) {
	unsub, err := s.store.Subscribe(ctx, path, fn)
	if err != nil {
		return nil, remote("subscribe", err)
	}
	return unsub, nil
}

// commit applies ops on a context that survives the caller's cancellation.
func (s *Service) commit(ctx context.Context, ops ...store.Op) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CommitTimeout)
	defer cancel()
	return s.store.Commit(cctx, ops...)
}

// authorize runs the work ID gate for a mutation of path.
func (s *Service) authorize(ctx context.Context, action policy.Action, path, workID string) error {
	actor, _ := ActorFromContext(ctx)
	err := s.authz.Authorize(ctx, policy.Request{
		UID:    actor.UID,
		Action: action,
		Path:   path,
		WorkID: workID,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, policy.ErrWorkIDMismatch),
		errors.Is(err, policy.ErrWorkIDRequired),
		errors.Is(err, policy.ErrNoWorkIDOnFile):
		return &AuthorizationError{Path: path, Err: err}
	default:
		return remote("authorize", err)
	}
}

// load reads path and decodes it into v, returning the raw record for
// compare-and-set.
func (s *Service) load(ctx context.Context, path string, v any) (store.Record, error) {
	rec, found, err := s.store.Read(ctx, path)
	if err != nil {
		return nil, remote("read "+path, err)
	}
	if !found {
		return nil, &NotFoundError{Path: path}
	}
	if v != nil {
		if err := store.Decode(rec, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return rec, nil
}

// replace swaps the record at path for next, failing if it changed or
// vanished since current was read.
func (s *Service) replace(ctx context.Context, path string, current store.Record, next any) (store.Record, error) {
	rec, err := store.Encode(next)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, store.CompareAndSet(path, current, rec)); err != nil {
		return nil, remote("update "+path, err)
	}
	return rec, nil
}

// remove deletes path and everything below it.
func (s *Service) remove(ctx context.Context, path string) error {
	if err := s.commit(ctx, store.Remove(path)); err != nil {
		return remote("delete "+path, err)
	}
	return nil
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	log := logging.FromContext(ctx)
	if actor, ok := ActorFromContext(ctx); ok {
		log = logging.WithPrincipal(log, actor.UID, actor.SessionID)
	}
	return log
}

// childPath addresses record id directly below collection. Ids are opaque
// single segments; anything else cannot name a record.
func childPath(collection, id string) (string, error) {
	path := store.Join(collection, id)
	if id == "" || strings.Contains(id, "/") {
		return "", &NotFoundError{Path: path}
	}
	return path, nil
}
