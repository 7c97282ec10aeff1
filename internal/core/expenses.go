package core

import (
	"context"

	"github.com/JonMunkholm/fuelledger/internal/policy"
	"github.com/JonMunkholm/fuelledger/internal/store"
)

const expensesCollection = "expenses"

// ExpenseInput is a tracker expense. Statement fields hold links to
// documents stored elsewhere; the service never receives file contents.
type ExpenseInput struct {
	Name           string `json:"name" validate:"required"`
	Amount         string `json:"amount" validate:"required,numstr"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	Statement      string `json:"statement" validate:"omitempty,url"`
	MpesaStatement string `json:"mpesaStatement" validate:"omitempty,url"`
}

// Expense is a stored tracker expense.
type Expense struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	Date           string `json:"date"`
	Statement      string `json:"statement,omitempty"`
	MpesaStatement string `json:"mpesaStatement,omitempty"`
}

func (in ExpenseInput) expense() Expense {
	return Expense{
		Name:           in.Name,
		Amount:         in.Amount,
		Date:           in.Date,
		Statement:      in.Statement,
		MpesaStatement: in.MpesaStatement,
	}
}

// ExpenseList is every tracker expense and their total.
type ExpenseList struct {
	Expenses []Expense `json:"expenses"`
	Total    string    `json:"total"`
}

// CreateExpense records a tracker expense.
func (s *Service) CreateExpense(ctx context.Context, in ExpenseInput) (Expense, error) {
	if err := validateStruct(s.validate, in); err != nil {
		return Expense{}, err
	}
	exp := in.expense()
	rec, err := store.Encode(exp)
	if err != nil {
		return Expense{}, err
	}
	id, err := s.store.Create(context.WithoutCancel(ctx), expensesCollection, rec)
	if err != nil {
		return Expense{}, remote("create expense", err)
	}
	exp.ID = id

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionExpenseCreate,
		Path:     store.Join(expensesCollection, id),
		NewValue: rec,
	})
	return exp, nil
}

// ListExpenses returns tracker expenses in insertion order.
func (s *Service) ListExpenses(ctx context.Context) (ExpenseList, error) {
	snaps, err := s.store.List(ctx, expensesCollection)
	if err != nil {
		return ExpenseList{}, remote("list expenses", err)
	}
	list := ExpenseList{Expenses: make([]Expense, 0, len(snaps))}
	amounts := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		var e Expense
		if err := store.Decode(snap.Value, &e); err != nil {
			return ExpenseList{}, err
		}
		e.ID = snap.Key
		list.Expenses = append(list.Expenses, e)
		amounts = append(amounts, e.Amount)
	}
	list.Total = Money(Sum(amounts...))
	return list, nil
}

// UpdateExpense replaces a tracker expense after the work ID gate passes.
func (s *Service) UpdateExpense(ctx context.Context, id, workID string, in ExpenseInput) (Expense, error) {
	path, err := childPath(expensesCollection, id)
	if err != nil {
		return Expense{}, err
	}
	if err := s.authorize(ctx, policy.ActionUpdate, path, workID); err != nil {
		return Expense{}, err
	}
	if err := validateStruct(s.validate, in); err != nil {
		return Expense{}, err
	}

	current, err := s.load(ctx, path, nil)
	if err != nil {
		return Expense{}, err
	}
	exp := in.expense()
	rec, err := s.replace(ctx, path, current, exp)
	if err != nil {
		return Expense{}, err
	}

	s.recordAudit(ctx, AuditLogParams{
		Action:   ActionExpenseUpdate,
		Path:     path,
		OldValue: current,
		NewValue: rec,
	})
	exp.ID = id
	return exp, nil
}

// DeleteExpense removes a tracker expense after the work ID gate passes.
func (s *Service) DeleteExpense(ctx context.Context, id, workID string) error {
	path, err := childPath(expensesCollection, id)
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
		Action:   ActionExpenseDelete,
		Path:     path,
		OldValue: current,
	})
	return nil
}
