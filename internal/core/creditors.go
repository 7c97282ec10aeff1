package core

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/JonMunkholm/fuelledger/internal/policy"
	"github.com/JonMunkholm/fuelledger/internal/store"
)

const (
	creditorsCollection = "creditors"
	creditorExpenses    = "expenses"
)

// Creditor is someone the business owes. Its expenses live below it.
type Creditor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Total string `json:"total"`
}

// CreditorExpenseInput is an amount owed to a creditor.
type CreditorExpenseInput struct {
	Name   string `json:"name" validate:"required"`
	Amount string `json:"amount" validate:"required,numstr"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
}

// CreditorExpense is a stored creditor expense.
type CreditorExpense struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

// CreditorStatement is a creditor with its expenses oldest first.
type CreditorStatement struct {
	Creditor
	Expenses []CreditorExpense `json:"expenses"`
}

type creditorName struct {
	Name string `json:"name" validate:"required"`
}

func expensesPath(creditorPath string) string {
	return store.Join(creditorPath, creditorExpenses)
}

// CreateCreditor adds a creditor.
func (s *Service) CreateCreditor(ctx context.Context, name string) (Creditor, error) {
	in := creditorName{Name: strings.TrimSpace(name)}
	if err := validateStruct(s.validate, in); err != nil {
		return Creditor{}, err
	}
	rec := store.Record{"name": in.Name}
	id, err := s.store.Create(context.WithoutCancel(ctx), creditorsCollection, rec)
	if err != nil {
		return Creditor{}, remote("create creditor", err)
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionCreditorCreate,
		Path:     store.Join(creditorsCollection, id),
		NewValue: rec,
	})
	return Creditor{ID: id, Name: in.Name, Total: Money(Sum())}, nil
}

// ListCreditors returns every creditor with the sum of its expenses.
func (s *Service) ListCreditors(ctx context.Context) ([]Creditor, error) {
	snaps, err := s.store.List(ctx, creditorsCollection)
	if err != nil {
		return nil, remote("list creditors", err)
	}
	out := make([]Creditor, 0, len(snaps))
	for _, snap := range snaps {
		expenses, err := s.creditorExpenses(ctx, snap.Path)
		if err != nil {
			return nil, err
		}
		name, _ := snap.Value["name"].(string)
		out = append(out, Creditor{ID: snap.Key, Name: name, Total: expenseTotal(expenses)})
	}
	return out, nil
}

// CreditorStatement returns one creditor with its expenses sorted by date.
func (s *Service) CreditorStatement(ctx context.Context, id string) (CreditorStatement, error) {
	path, err := childPath(creditorsCollection, id)
	if err != nil {
		return CreditorStatement{}, err
	}
	var c creditorName
	if _, err := s.load(ctx, path, &c); err != nil {
		return CreditorStatement{}, err
	}
	expenses, err := s.creditorExpenses(ctx, path)
	if err != nil {
		return CreditorStatement{}, err
	}
	return CreditorStatement{
		Creditor: Creditor{ID: id, Name: c.Name, Total: expenseTotal(expenses)},
		Expenses: expenses,
	}, nil
}

// RenameCreditor changes a creditor's name after the work ID gate passes.
func (s *Service) RenameCreditor(ctx context.Context, id, workID, name string) (Creditor, error) {
	path, err := childPath(creditorsCollection, id)
	if err != nil {
		return Creditor{}, err
	}
	if err := s.authorize(ctx, policy.ActionUpdate, path, workID); err != nil {
		return Creditor{}, err
	}
	in := creditorName{Name: strings.TrimSpace(name)}
	if err := validateStruct(s.validate, in); err != nil {
		return Creditor{}, err
	}

	current, err := s.load(ctx, path, nil)
	if err != nil {
		return Creditor{}, err
	}
	next := maps.Clone(current)
	next["name"] = in.Name
	if _, err := s.replace(ctx, path, current, next); err != nil {
		return Creditor{}, err
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionCreditorRename,
		Path:     path,
		OldValue: current,
		NewValue: next,
	})
	return s.creditorSummary(ctx, id, in.Name)
}

// DeleteCreditor removes a creditor and all of its expenses after the work
// ID gate passes.
func (s *Service) DeleteCreditor(ctx context.Context, id, workID string) error {
	path, err := childPath(creditorsCollection, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, policy.ActionDelete, path, workID); err != nil {
		return err
	}
	current, err := s.load(ctx, path, nil)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, path); err != nil {
		return err
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionCreditorDelete,
		Path:     path,
		OldValue: current,
	})
	return nil
}

// AddCreditorExpense records an amount owed to an existing creditor.
func (s *Service) AddCreditorExpense(ctx context.Context, creditorID string, in CreditorExpenseInput) (CreditorExpense, error) {
	path, err := childPath(creditorsCollection, creditorID)
	if err != nil {
		return CreditorExpense{}, err
	}
	if err := validateStruct(s.validate, in); err != nil {
		return CreditorExpense{}, err
	}
	if _, err := s.load(ctx, path, nil); err != nil {
		return CreditorExpense{}, err
	}

	exp := CreditorExpense{Name: in.Name, Amount: in.Amount, Date: in.Date}
	rec, err := store.Encode(exp)
	if err != nil {
		return CreditorExpense{}, err
	}
	id, err := s.store.Create(context.WithoutCancel(ctx), expensesPath(path), rec)
	if err != nil {
		return CreditorExpense{}, remote("create creditor expense", err)
	}
	exp.ID = id

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionCreditorExpenseCreate,
		Path:     store.Join(expensesPath(path), id),
		NewValue: rec,
	})
	return exp, nil
}

// UpdateCreditorExpense replaces a creditor expense after the work ID gate
// passes.
func (s *Service) UpdateCreditorExpense(ctx context.Context, creditorID, expenseID, workID string, in CreditorExpenseInput) (CreditorExpense, error) {
	path, err := s.creditorExpensePath(creditorID, expenseID)
	if err != nil {
		return CreditorExpense{}, err
	}
	if err := s.authorize(ctx, policy.ActionUpdate, path, workID); err != nil {
		return CreditorExpense{}, err
	}
	if err := validateStruct(s.validate, in); err != nil {
		return CreditorExpense{}, err
	}

	current, err := s.load(ctx, path, nil)
	if err != nil {
		return CreditorExpense{}, err
	}
	exp := CreditorExpense{Name: in.Name, Amount: in.Amount, Date: in.Date}
	rec, err := s.replace(ctx, path, current, exp)
	if err != nil {
		return CreditorExpense{}, err
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionCreditorExpenseUpdate,
		Path:     path,
		OldValue: current,
		NewValue: rec,
	})
	exp.ID = expenseID
	return exp, nil
}

// DeleteCreditorExpense removes a creditor expense after the work ID gate
// passes.
func (s *Service) DeleteCreditorExpense(ctx context.Context, creditorID, expenseID, workID string) error {
	path, err := s.creditorExpensePath(creditorID, expenseID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, policy.ActionDelete, path, workID); err != nil {
		return err
	}
	current, err := s.load(ctx, path, nil)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, path); err != nil {
		return err
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionCreditorExpenseDelete,
		Path:     path,
		OldValue: current,
	})
	return nil
}

func (s *Service) creditorExpensePath(creditorID, expenseID string) (string, error) {
	parent, err := childPath(creditorsCollection, creditorID)
	if err != nil {
		return "", err
	}
	return childPath(expensesPath(parent), expenseID)
}

func (s *Service) creditorSummary(ctx context.Context, id, name string) (Creditor, error) {
	expenses, err := s.creditorExpenses(ctx, store.Join(creditorsCollection, id))
	if err != nil {
		return Creditor{}, err
	}
	return Creditor{ID: id, Name: name, Total: expenseTotal(expenses)}, nil
}

// creditorExpenses lists the expenses below creditorPath, oldest first.
// Expenses on the same date keep insertion order.
func (s *Service) creditorExpenses(ctx context.Context, creditorPath string) ([]CreditorExpense, error) {
	snaps, err := s.store.List(ctx, expensesPath(creditorPath))
	if err != nil {
		return nil, remote("list creditor expenses", err)
	}
	out := make([]CreditorExpense, 0, len(snaps))
	for _, snap := range snaps {
		var e CreditorExpense
		if err := store.Decode(snap.Value, &e); err != nil {
			return nil, err
		}
		e.ID = snap.Key
		out = append(out, e)
	}
	// ISO dates sort lexically.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func expenseTotal(expenses []CreditorExpense) string {
	amounts := make([]string, len(expenses))
	for i, e := range expenses {
		amounts[i] = e.Amount
	}
	return Money(Sum(amounts...))
}
