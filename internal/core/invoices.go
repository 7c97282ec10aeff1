package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/lock"
	"github.com/JonMunkholm/fuelledger/internal/store"
)

const (
	invoicesCollection = "invoices"
	counterPath        = "invoiceNumber"
	counterLockKey     = "invoice-counter"
)

// InvoiceInput is a wallet invoice as submitted. The number, amount and
// artifact are assigned by the service.
type InvoiceInput struct {
	InvoiceDate string `json:"invoiceDate" validate:"required"`
	CustomerID  string `json:"customerId" validate:"required"`
	BillTo      string `json:"billTo" validate:"required"`
	ShipTo      string `json:"shipTo" validate:"required"`
	Description string `json:"description" validate:"required"`
	HSCode      string `json:"hsCode"`
	Quantity    string `json:"quantity" validate:"required,numstr"`
	UnitPrice   string `json:"unitPrice" validate:"required,numstr"`
}

// Invoice is a stored wallet invoice.
type Invoice struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	InvoiceDate   string  `json:"invoiceDate"`
	CustomerID    string  `json:"customerId"`
	BillTo        string  `json:"billTo"`
	ShipTo        string  `json:"shipTo"`
	Description   string  `json:"description"`
	HSCode        string  `json:"hsCode"`
	Quantity      float64 `json:"quantity"`
	UnitPrice     float64 `json:"unitPrice"`
	Amount        string  `json:"amount"`
	Artifact      string  `json:"artifact"`
	CreatedBy     string  `json:"createdBy,omitempty"`
}

// ArtifactName is the download name of an invoice workbook.
func ArtifactName(number string) string {
	return number + ".xlsx"
}

// FormatInvoiceNumber renders n with prefix, zero padded to three digits.
func FormatInvoiceNumber(prefix string, n int) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

// CreateInvoice assigns the next invoice number, renders the invoice
// workbook and stores both the invoice and the advanced counter in one
// commit. The counter only moves when the workbook was produced and the
// invoice saved, so a failure at any step leaves it untouched.
//
// Numbering is serialised by a named lock; the commit also compares the
// counter against the value read, so a lock lost to TTL expiry cannot hand
// out the same number twice.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (Invoice, []byte, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return Invoice{}, nil, err
	}

	var (
		inv      Invoice
		artifact []byte
	)
	err := lock.With(ctx, s.locker, counterLockKey, s.cfg.LockTTL, func(ctx context.Context) error {
		current, counterRec, err := s.readCounter(ctx)
		if err != nil {
			return err
		}

		inv = s.buildInvoice(ctx, in, current+1)

		var buf bytes.Buffer
		if err := s.renderInvoice(ctx, &buf, inv); err != nil {
			return err
		}
		artifact = buf.Bytes()

		rec, err := store.Encode(inv)
		if err != nil {
			return err
		}
		err = s.commit(ctx,
			store.CreateIfAbsent(store.Join(invoicesCollection, store.Key(inv.InvoiceNumber)), rec),
			store.CompareAndSet(counterPath, counterRec, store.Record{"value": current + 1}),
		)
		if err != nil {
			return remote("commit invoice "+inv.InvoiceNumber, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			return Invoice{}, nil, remote("obtain invoice lock", err)
		}
		return Invoice{}, nil, err
	}

	s.logger(ctx).Info("invoice created", "invoice", inv.InvoiceNumber, "bill_to", inv.BillTo)
	rec, _ := store.Encode(inv)
	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionInvoiceCreate,
		Path:     store.Join(invoicesCollection, store.Key(inv.InvoiceNumber)),
		NewValue: rec,
	})
	return inv, artifact, nil
}

func (s *Service) buildInvoice(ctx context.Context, in InvoiceInput, n int) Invoice {
	qty := Amount(in.Quantity)
	price := Amount(in.UnitPrice)
	q, _ := qty.Float64()
	p, _ := price.Float64()

	hs := strings.TrimSpace(in.HSCode)
	if hs == "" {
		hs = s.cfg.DefaultHSCode
	}

	number := FormatInvoiceNumber(s.cfg.InvoicePrefix, n)
	actor, _ := ActorFromContext(ctx)
	return Invoice{
		InvoiceNumber: number,
		InvoiceDate:   in.InvoiceDate,
		CustomerID:    in.CustomerID,
		BillTo:        in.BillTo,
		ShipTo:        in.ShipTo,
		Description:   in.Description,
		HSCode:        hs,
		Quantity:      q,
		UnitPrice:     p,
		Amount:        Money(WalletAmount(qty, price)),
		Artifact:      ArtifactName(number),
		CreatedBy:     actor.UID,
	}
}

func (s *Service) renderInvoice(ctx context.Context, w io.Writer, inv Invoice) error {
	return s.exports.Do(ctx, func() error {
		if err := s.artifacts.RenderInvoice(w, inv); err != nil {
			return &ArtifactError{Name: inv.InvoiceNumber, Err: err}
		}
		return nil
	})
}

// readCounter returns the last issued invoice number and the raw counter
// record (nil when absent).
func (s *Service) readCounter(ctx context.Context) (int, store.Record, error) {
	rec, found, err := s.store.Read(ctx, counterPath)
	if err != nil {
		return 0, nil, remote("read invoice counter", err)
	}
	if !found {
		return s.cfg.CounterStart, nil, nil
	}
	n, ok := toInt(rec["value"])
	if !ok {
		return 0, nil, fmt.Errorf("invoice counter holds %v, want a whole number", rec["value"])
	}
	return n, rec, nil
}

// InvoiceCounter returns the last issued invoice number.
func (s *Service) InvoiceCounter(ctx context.Context) (int, error) {
	n, _, err := s.readCounter(ctx)
	return n, err
}

// NextInvoiceNumber previews the number the next invoice will receive.
func (s *Service) NextInvoiceNumber(ctx context.Context) (string, error) {
	n, err := s.InvoiceCounter(ctx)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(s.cfg.InvoicePrefix, n+1), nil
}

// SetInvoiceCounter overwrites the counter under the numbering lock. It is
// an operator action for repairing or seeding a ledger.
func (s *Service) SetInvoiceCounter(ctx context.Context, n int) error {
	if n < 0 {
		return invalid("value", fmt.Sprint(n), MsgInvalidNumber)
	}
	err := lock.With(ctx, s.locker, counterLockKey, s.cfg.LockTTL, func(ctx context.Context) error {
		return s.commit(ctx, store.Set(counterPath, store.Record{"value": n}))
	})
	if err != nil {
		return remote("set invoice counter", err)
	}
	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionCounterSet,
		Path:     counterPath,
		NewValue: store.Record{"value": n},
	})
	return nil
}

// GetInvoice loads one invoice by number.
func (s *Service) GetInvoice(ctx context.Context, number string) (Invoice, error) {
	var inv Invoice
	_, err := s.load(ctx, store.Join(invoicesCollection, store.Key(strings.TrimSpace(number))), &inv)
	return inv, err
}

// SearchInvoices looks an invoice up by number when query carries the
// invoice prefix, otherwise returns invoices billed to exactly query.
func (s *Service) SearchInvoices(ctx context.Context, query string) ([]Invoice, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("q", query, MsgRequired)
	}

	if strings.HasPrefix(query, s.cfg.InvoicePrefix) {
		inv, err := s.GetInvoice(ctx, query)
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return []Invoice{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []Invoice{inv}, nil
	}

	snaps, err := s.store.QueryByField(ctx, invoicesCollection, "billTo", query)
	if err != nil {
		return nil, remote("search invoices", err)
	}
	out := make([]Invoice, 0, len(snaps))
	for _, snap := range snaps {
		var inv Invoice
		if err := store.Decode(snap.Value, &inv); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// WriteInvoiceArtifact re-renders the workbook for a stored invoice.
func (s *Service) WriteInvoiceArtifact(ctx context.Context, w io.Writer, number string) (Invoice, error) {
	inv, err := s.GetInvoice(ctx, number)
	if err != nil {
		return Invoice{}, err
	}
	return inv, s.renderInvoice(ctx, w, inv)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
