package admin

import (
	"context"
	"testing"

	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, m *store.Memory) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.Commit(ctx,
		store.Set("trucks/t1", store.Record{"owner": "Wani"}),
		store.Set("creditors/c1", store.Record{"name": "Kiir"}),
		store.Set("creditors/c1/expenses/e1", store.Record{"amount": "12.50"}),
		store.Set("invoiceNumber", store.Record{"value": 600}),
		store.Set("users/u1", store.Record{"workId": "IA001"}),
		store.Set("audit_log/a1", store.Record{"action": "create"}),
	))
}

func TestReset_ClearsLedgerKeepsAccounts(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	defer m.Close()
	seed(t, m)

	require.NoError(t, Reset(ctx, m))

	for _, p := range []string{"trucks/t1", "creditors/c1", "creditors/c1/expenses/e1", "invoiceNumber"} {
		_, found, err := m.Read(ctx, p)
		require.NoError(t, err)
		assert.False(t, found, p)
	}
	for _, p := range []string{"users/u1", "audit_log/a1"} {
		_, found, err := m.Read(ctx, p)
		require.NoError(t, err)
		assert.True(t, found, p)
	}
}

func TestReset_NamedCollections(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	defer m.Close()
	seed(t, m)

	require.NoError(t, Reset(ctx, m, "trucks"))

	_, found, _ := m.Read(ctx, "trucks/t1")
	assert.False(t, found)
	_, found, _ = m.Read(ctx, "creditors/c1")
	assert.True(t, found)
}

func TestReset_InvalidName(t *testing.T) {
	m := store.NewMemory()
	defer m.Close()

	err := Reset(context.Background(), m, "trucks", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidPath)
}
