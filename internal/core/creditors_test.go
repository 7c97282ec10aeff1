package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditorStatement(t *testing.T) {
	svc, mem := newTestService(t, Deps{})
	ctx := operator(t, mem, "u1", "IA003")

	c, err := svc.CreateCreditor(ctx, "  Juba Tyres ")
	require.NoError(t, err)
	assert.Equal(t, "Juba Tyres", c.Name)
	assert.Equal(t, "0.00", c.Total)

	for _, in := range []CreditorExpenseInput{
		{Name: "tyres", Amount: "250.50", Date: "2024-03-10"},
		{Name: "rims", Amount: "100", Date: "2024-01-05"},
		{Name: "valves", Amount: "9.5", Date: "2024-03-10"},
	} {
		_, err := svc.AddCreditorExpense(ctx, c.ID, in)
		require.NoError(t, err)
	}

	stmt, err := svc.CreditorStatement(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "360.00", stmt.Total)
	require.Len(t, stmt.Expenses, 3)
	assert.Equal(t, "rims", stmt.Expenses[0].Name)
	assert.Equal(t, "2024-03-10", stmt.Expenses[2].Date)

	list, err := svc.ListCreditors(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "360.00", list[0].Total)
}

func TestAddCreditorExpense_UnknownCreditor(t *testing.T) {
	svc, _ := newTestService(t, Deps{})

	_, err := svc.AddCreditorExpense(context.Background(), "nobody",
		CreditorExpenseInput{Name: "x", Amount: "1", Date: "2024-01-01"})
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestAddCreditorExpense_Validation(t *testing.T) {
	svc, _ := newTestService(t, Deps{})
	ctx := context.Background()
	c, err := svc.CreateCreditor(ctx, "Acme")
	require.NoError(t, err)

	_, err = svc.AddCreditorExpense(ctx, c.ID, CreditorExpenseInput{Name: "x", Amount: "1", Date: "05/01/2024"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgInvalidISO, ve.Fields[0].Message)
	assert.Equal(t, "VAL001", MapError(err).Code)
}

func TestRenameCreditor_Gated(t *testing.T) {
	svc, mem := newTestService(t, Deps{})
	ctx := operator(t, mem, "u1", "IA003")

	c, err := svc.CreateCreditor(ctx, "Acme")
	require.NoError(t, err)

	_, err = svc.RenameCreditor(ctx, c.ID, "IA004", "Other")
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)

	renamed, err := svc.RenameCreditor(ctx, c.ID, "IA003", "Acme Ltd")
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", renamed.Name)

	stmt, err := svc.CreditorStatement(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", stmt.Name)
}

func TestDeleteCreditor_RemovesExpenses(t *testing.T) {
	svc, mem := newTestService(t, Deps{})
	ctx := operator(t, mem, "u1", "IA003")

	c, err := svc.CreateCreditor(ctx, "Acme")
	require.NoError(t, err)
	exp, err := svc.AddCreditorExpense(ctx, c.ID, CreditorExpenseInput{Name: "x", Amount: "1", Date: "2024-01-01"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCreditor(ctx, c.ID, "IA003"))

	_, err = svc.CreditorStatement(ctx, c.ID)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	err = svc.DeleteCreditorExpense(ctx, c.ID, exp.ID, "IA003")
	assert.ErrorAs(t, err, &nf)
}

func TestUpdateCreditorExpense(t *testing.T) {
	svc, mem := newTestService(t, Deps{})
	ctx := operator(t, mem, "u1", "IA003")

	c, err := svc.CreateCreditor(ctx, "Acme")
	require.NoError(t, err)
	exp, err := svc.AddCreditorExpense(ctx, c.ID, CreditorExpenseInput{Name: "x", Amount: "1", Date: "2024-01-01"})
	require.NoError(t, err)

	in := CreditorExpenseInput{Name: "x", Amount: "7.25", Date: "2024-01-02"}
	_, err = svc.UpdateCreditorExpense(ctx, c.ID, exp.ID, "", in)
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "AUTH002", MapError(err).Code)

	updated, err := svc.UpdateCreditorExpense(ctx, c.ID, exp.ID, "IA003", in)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, updated.ID)

	stmt, err := svc.CreditorStatement(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "7.25", stmt.Total)
}

func TestExpenses(t *testing.T) {
	svc, mem := newTestService(t, Deps{})
	ctx := operator(t, mem, "u1", "IA010")

	first, err := svc.CreateExpense(ctx, ExpenseInput{
		Name:      "fuel",
		Amount:    "120.40",
		Date:      "2024-02-01",
		Statement: "https://files.example.com/statements/feb.pdf",
	})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, ExpenseInput{Name: "tolls", Amount: "30", Date: "2024-02-02"})
	require.NoError(t, err)

	list, err := svc.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Len(t, list.Expenses, 2)
	assert.Equal(t, "150.40", list.Total)

	_, err = svc.CreateExpense(ctx, ExpenseInput{Name: "bad", Amount: "1", Date: "2024-02-02", Statement: "not a url"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("statement"))

	_, err = svc.UpdateExpense(ctx, first.ID, "IA010", ExpenseInput{Name: "fuel", Amount: "100", Date: "2024-02-01"})
	require.NoError(t, err)

	var ae *AuthorizationError
	require.ErrorAs(t, svc.DeleteExpense(ctx, first.ID, "IA011"), &ae)
	require.NoError(t, svc.DeleteExpense(ctx, first.ID, "IA010"))

	list, err = svc.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, list.Expenses, 1)
	assert.Equal(t, "30.00", list.Total)
}
