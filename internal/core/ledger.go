package core

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/store"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ledgerCollection = "data"
	unknownOwner     = "unknown"
)

// LedgerInvoiceInput is a trucking ledger invoice as submitted.
type LedgerInvoiceInput struct {
	Date        string `json:"date" validate:"required,ddmmyyyy"`
	Owner       string `json:"owner" validate:"required"`
	Deport      string `json:"deport" validate:"required"`
	TruckNo     string `json:"truckNo" validate:"required"`
	PMS         string `json:"pms" validate:"omitempty,numstr"`
	AGO         string `json:"ago" validate:"omitempty,numstr"`
	At20        string `json:"at20" validate:"required,numstr"`
	Price       string `json:"price" validate:"required,numstr"`
	Expenses    string `json:"expenses" validate:"omitempty,numstr"`
	Payments    string `json:"payments" validate:"omitempty,numstr"`
	PaymentDate string `json:"paymentDate" validate:"omitempty,ddmmyyyy"`
	Transport   string `json:"transport" validate:"omitempty,numstr"`
}

func (in LedgerInvoiceInput) figures() LedgerFigures {
	return ComputeLedger(LedgerInputs{
		At20:      in.At20,
		Price:     in.Price,
		Expenses:  in.Expenses,
		Payments:  in.Payments,
		Transport: in.Transport,
	})
}

// LedgerInvoice is a stored ledger invoice.
type LedgerInvoice struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	Owner       string `json:"owner"`
	Deport      string `json:"deport"`
	TruckNo     string `json:"truckNo"`
	PMS         string `json:"pms"`
	AGO         string `json:"ago"`
	At20        string `json:"at20"`
	Price       string `json:"price"`
	Amount      string `json:"amount"`
	Expenses    string `json:"expenses"`
	Payments    string `json:"payments"`
	PaymentDate string `json:"paymentDate"`
	Transport   string `json:"transport"`
	Balance     string `json:"balance"`
}

// LedgerTotals sums the money columns of a group.
type LedgerTotals struct {
	Amount    string `json:"amount"`
	Expenses  string `json:"expenses"`
	Payments  string `json:"payments"`
	Transport string `json:"transport"`
	Balance   string `json:"balance"`
}

// LedgerGroup is every invoice of one owner.
type LedgerGroup struct {
	Owner    string          `json:"owner"`
	Invoices []LedgerInvoice `json:"invoices"`
	Totals   LedgerTotals    `json:"totals"`
}

// PreviewLedgerInvoice computes the derived fields without validating or
// storing anything. Clients call it as inputs change.
func (s *Service) PreviewLedgerInvoice(in LedgerInvoiceInput) LedgerFigures {
	return in.figures()
}

// CreateLedgerInvoice validates and stores a ledger invoice with
// server-computed amount and balance.
func (s *Service) CreateLedgerInvoice(ctx context.Context, in LedgerInvoiceInput) (LedgerInvoice, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return LedgerInvoice{}, err
	}

	fig := in.figures()
	inv := LedgerInvoice{
		Date:        in.Date,
		Owner:       in.Owner,
		Deport:      in.Deport,
		TruckNo:     in.TruckNo,
		PMS:         in.PMS,
		AGO:         in.AGO,
		At20:        in.At20,
		Price:       in.Price,
		Amount:      fig.Amount,
		Expenses:    in.Expenses,
		Payments:    in.Payments,
		PaymentDate: in.PaymentDate,
		Transport:   in.Transport,
		Balance:     fig.Balance,
	}
	rec, err := store.Encode(inv)
	if err != nil {
		return LedgerInvoice{}, err
	}

	id, err := s.store.Create(context.WithoutCancel(ctx), ledgerCollection, rec)
	if err != nil {
		return LedgerInvoice{}, remote("create ledger invoice", err)
	}
	inv.ID = id

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionLedgerCreate,
		Path:     store.Join(ledgerCollection, id),
		NewValue: rec,
	})
	return inv, nil
}

// LedgerOwnerKey is the grouping key for an owner name.
func LedgerOwnerKey(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return unknownOwner
	}
	return lower(owner)
}

// ListLedgerGroups returns ledger invoices grouped by case-insensitive owner,
// groups ordered by owner and invoices in insertion order.
func (s *Service) ListLedgerGroups(ctx context.Context) ([]LedgerGroup, error) {
	snaps, err := s.store.List(ctx, ledgerCollection)
	if err != nil {
		return nil, remote("list ledger invoices", err)
	}

	byOwner := make(map[string][]LedgerInvoice)
	for _, snap := range snaps {
		var inv LedgerInvoice
		if err := store.Decode(snap.Value, &inv); err != nil {
			return nil, err
		}
		inv.ID = snap.Key
		key := LedgerOwnerKey(inv.Owner)
		byOwner[key] = append(byOwner[key], inv)
	}

	groups := make([]LedgerGroup, 0, len(byOwner))
	for owner, invs := range byOwner {
		groups = append(groups, LedgerGroup{
			Owner:    owner,
			Invoices: invs,
			Totals:   ledgerTotals(invs),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Owner < groups[j].Owner })
	return groups, nil
}

// LedgerGroup returns the invoices of one owner.
func (s *Service) LedgerGroup(ctx context.Context, owner string) (LedgerGroup, error) {
	groups, err := s.ListLedgerGroups(ctx)
	if err != nil {
		return LedgerGroup{}, err
	}
	key := LedgerOwnerKey(owner)
	for _, g := range groups {
		if g.Owner == key {
			return g, nil
		}
	}
	return LedgerGroup{}, &NotFoundError{Path: store.Join(ledgerCollection, "owner", key)}
}

// ExportLedger writes one owner's invoices as a workbook.
func (s *Service) ExportLedger(ctx context.Context, w io.Writer, owner string) (LedgerGroup, error) {
	group, err := s.LedgerGroup(ctx, owner)
	if err != nil {
		return LedgerGroup{}, err
	}
	err = s.exports.Do(ctx, func() error {
		if err := s.artifacts.RenderLedger(w, group); err != nil {
			return &ArtifactError{Name: group.Owner + " ledger", Err: err}
		}
		return nil
	})
	return group, err
}

func ledgerTotals(invs []LedgerInvoice) LedgerTotals {
	col := func(get func(LedgerInvoice) string) string {
		vals := make([]string, len(invs))
		for i, inv := range invs {
			vals[i] = get(inv)
		}
		return Money(Sum(vals...))
	}
	return LedgerTotals{
		Amount:    col(func(i LedgerInvoice) string { return i.Amount }),
		Expenses:  col(func(i LedgerInvoice) string { return i.Expenses }),
		Payments:  col(func(i LedgerInvoice) string { return i.Payments }),
		Transport: col(func(i LedgerInvoice) string { return i.Transport }),
		Balance:   col(func(i LedgerInvoice) string { return i.Balance }),
	}
}

func titleOwner(owner string) string {
	return cases.Title(language.Und).String(owner)
}
