package policy

import (
	"context"
	"testing"

	"github.com/JonMunkholm/fuelledger/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkIDGate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Update(ctx, "users/u1", store.Record{"workId": "IA007", "email": "ia007@example.com"}))
	require.NoError(t, st.Update(ctx, "users/u2", store.Record{"email": "nobody@example.com"}))

	gate := NewWorkIDGate(st)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"exact match", Request{UID: "u1", Action: ActionDelete, Path: "trucks/t1", WorkID: "IA007"}, nil},
		{"lower case differs", Request{UID: "u1", Action: ActionDelete, Path: "trucks/t1", WorkID: "ia007"}, ErrWorkIDMismatch},
		{"whitespace not trimmed", Request{UID: "u1", Action: ActionUpdate, Path: "trucks/t1", WorkID: " IA007"}, ErrWorkIDMismatch},
		{"other id", Request{UID: "u1", Action: ActionUpdate, Path: "creditors/c1", WorkID: "IA008"}, ErrWorkIDMismatch},
		{"missing", Request{UID: "u1", Action: ActionUpdate, Path: "expenses/e1"}, ErrWorkIDRequired},
		{"nested creditor expense", Request{UID: "u1", Action: ActionDelete, Path: "creditors/c1/expenses/e1", WorkID: "IA007"}, nil},
		{"no work id on file", Request{UID: "u2", Action: ActionDelete, Path: "trucks/t1", WorkID: "IA007"}, ErrNoWorkIDOnFile},
		{"unknown user", Request{UID: "u3", Action: ActionDelete, Path: "trucks/t1", WorkID: "IA007"}, ErrNoWorkIDOnFile},
		{"ungated collection", Request{UID: "u3", Action: ActionUpdate, Path: "data/d1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Authorize(ctx, tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWorkIDGate_ReadsCurrentValue(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	require.NoError(t, st.Update(ctx, "users/u1", store.Record{"workId": "IA001"}))
	gate := NewWorkIDGate(st)

	req := Request{UID: "u1", Action: ActionDelete, Path: "trucks/t1", WorkID: "IA001"}
	require.NoError(t, gate.Authorize(ctx, req))

	require.NoError(t, st.Update(ctx, "users/u1", store.Record{"workId": "IA002"}))
	assert.ErrorIs(t, gate.Authorize(ctx, req), ErrWorkIDMismatch)
}

func TestGated(t *testing.T) {
	assert.True(t, Gated("trucks/x"))
	assert.True(t, Gated("creditors/x/expenses/y"))
	assert.True(t, Gated("expenses/x"))
	assert.False(t, Gated("truckstop/x"))
	assert.False(t, Gated("tr800/x"))
}
