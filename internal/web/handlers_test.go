package web

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func truckBody() map[string]any {
	return map[string]any{
		"truck_no":    "KBX 123A",
		"owner":       "Wani",
		"transporter": "Nile Haulage",
		"driver":      "Deng",
		"ago_comp_1":  "5000",
		"ago_comp_2":  "5000",
		"ago_comp_3":  "4000",
		"pms_1":       "3000",
		"pms_2":       "3000",
		"pms_3":       "2000",
	}
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	reg := core.RegisterInput{
		WorkID:          "IA007",
		Email:           "IA007@fleet.example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	}
	rec := h.do(http.MethodPost, "/api/auth/register", reg, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "IA007", decode[core.User](t, rec).WorkID)

	rec = h.do(http.MethodPost, "/api/auth/login", loginRequest{Email: reg.Email, Password: testPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[loginResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "IA007", login.User.WorkID)
	assert.Equal(t, 60, login.IdleTimeout)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, login.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rec = h.do(http.MethodGet, "/api/session", nil, login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[sessionResponse](t, rec)
	assert.Equal(t, "IA007", sess.User.WorkID)
	assert.Positive(t, sess.Remaining)

	rec = h.do(http.MethodPost, "/api/auth/logout", nil, login.Token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, h.sessions.ActiveGuards())

	rec = h.do(http.MethodGet, "/api/session", nil, login.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newHarness(t)
	h.signIn("IA001")

	rec := h.do(http.MethodPost, "/api/auth/login", loginRequest{Email: "IA001@fleet.example.com", Password: "wrong"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SES002", decode[ErrorResponse](t, rec).Code)
}

func TestRegister_EmailMustCarryWorkID(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/auth/register", core.RegisterInput{
		WorkID:          "IA007",
		Email:           "driver@fleet.example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL005", decode[ErrorResponse](t, rec).Code)
}

func TestSessionCookieAuth(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	rec := h.do(http.MethodGet, "/api/profile", nil, "", "Cookie", "token="+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "IA001@fleet.example.com", decode[core.User](t, rec).Email)
}

func TestActivity(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	rec := h.do(http.MethodPost, "/api/session/activity", nil, token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProfileUpdate(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	rec := h.do(http.MethodPut, "/api/profile", map[string]string{"displayName": "Jane Lado"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Jane Lado", decode[core.User](t, rec).DisplayName)
}

func TestEntries(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")
	entry := core.EntryInput{Number: "TR-1001", Quantity: "33000", Product: "AGO", Destination: "SSD"}

	rec := h.do(http.MethodPost, "/api/entries", entry, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	entry.Number = " tr-1001 "
	rec = h.do(http.MethodPost, "/api/entries", entry, token)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUP001", decode[ErrorResponse](t, rec).Code)

	rec = h.do(http.MethodGet, "/api/allocations", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Entry](t, rec), 1)
}

func TestTrucks_WorkIDGate(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	rec := h.do(http.MethodPost, "/api/trucks", truckBody(), token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	truck := decode[core.TruckView](t, rec)
	assert.Equal(t, "14000.00", truck.AGOTotal)

	update := truckBody()
	update["owner"] = "Akol"
	update["workId"] = "ia001"
	rec = h.do(http.MethodPut, "/api/trucks/"+truck.ID, update, token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTH001", decode[ErrorResponse](t, rec).Code)

	update["workId"] = "IA001"
	rec = h.do(http.MethodPut, "/api/trucks/"+truck.ID, update, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Akol", decode[core.TruckView](t, rec).Owner)

	rec = h.do(http.MethodDelete, "/api/trucks/"+truck.ID, nil, token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "AUTH002", decode[ErrorResponse](t, rec).Code)

	rec = h.do(http.MethodDelete, "/api/trucks/"+truck.ID, nil, token, workIDHeader, "IA001")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodGet, "/api/trucks/"+truck.ID, nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTrucks_ValidationFields(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	body := truckBody()
	delete(body, "driver")
	body["pms_4"] = "lots"

	rec := h.do(http.MethodPost, "/api/trucks", body, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	fields := make([]string, len(resp.Fields))
	for i, f := range resp.Fields {
		fields[i] = f.Field
	}
	assert.ElementsMatch(t, []string{"driver", "pms_4"}, fields)
}

func TestInvoices(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	in := core.InvoiceInput{
		InvoiceDate: "2024-03-14",
		CustomerID:  "C-17",
		BillTo:      "Wani",
		ShipTo:      "Juba depot",
		Description: "AGO supply",
		Quantity:    "10",
		UnitPrice:   "4.166",
	}
	rec := h.do(http.MethodPost, "/api/invoices", in, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[core.Invoice](t, rec)
	assert.Equal(t, "MOK-PFI-600", inv.InvoiceNumber)
	assert.Equal(t, "41.66", inv.Amount)
	assert.Equal(t, "/api/invoices/MOK-PFI-600", rec.Header().Get("Location"))

	rec = h.do(http.MethodGet, "/api/invoices/counter", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, counterResponse{Counter: 600, Next: "MOK-PFI-601"}, decode[counterResponse](t, rec))

	rec = h.do(http.MethodGet, "/api/invoices?q=Wani", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Invoice](t, rec), 1)

	rec = h.do(http.MethodGet, "/api/invoices", nil, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, path := range []string{"/api/invoices/MOK-PFI-600/artifact", "/downloads/invoices/MOK-PFI-600"} {
		rec = h.do(http.MethodGet, path, nil, token)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "MOK-PFI-600.xlsx")
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "workbook is a zip archive")
	}

	rec = h.do(http.MethodGet, "/api/invoices/MOK-PFI-999", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvoices_DownloadOnCreate(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	in := core.InvoiceInput{
		InvoiceDate: "2024-03-14",
		CustomerID:  "C-17",
		BillTo:      "Akol",
		ShipTo:      "Juba depot",
		Description: "PMS supply",
		Quantity:    "2",
		UnitPrice:   "3",
	}
	rec := h.do(http.MethodPost, "/api/invoices?download=1", in, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestLedgerInvoices(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	in := core.LedgerInvoiceInput{
		Date:     "14/03/2024",
		Owner:    "Wani",
		Deport:   "Juba",
		TruckNo:  "KBX 123A",
		At20:     "1000",
		Price:    "1.5",
		Payments: "2000",
		Expenses: "100",
	}

	rec := h.do(http.MethodPost, "/api/ledger-invoices/preview", in, token)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[core.LedgerFigures](t, rec)
	assert.Equal(t, "1500.00", preview.Amount)
	assert.Equal(t, "400.00", preview.Balance)

	rec = h.do(http.MethodPost, "/api/ledger-invoices", in, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/ledger-invoices/wani", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	group := decode[core.LedgerGroup](t, rec)
	require.Len(t, group.Invoices, 1)
	assert.Equal(t, "1500.00", group.Totals.Amount)

	rec = h.do(http.MethodGet, "/api/ledger-invoices/Wani/export", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "wani-ledger.xlsx")

	rec = h.do(http.MethodGet, "/api/ledger-invoices/nobody", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreditors(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	rec := h.do(http.MethodPost, "/api/creditors", map[string]string{"name": "Juba Fuel Co"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	creditor := decode[core.Creditor](t, rec)

	expense := core.CreditorExpenseInput{Name: "Diesel", Amount: "120.50", Date: "2024-03-01"}
	rec = h.do(http.MethodPost, "/api/creditors/"+creditor.ID+"/expenses", expense, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/creditors/"+creditor.ID, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[core.CreditorStatement](t, rec)
	assert.Equal(t, "120.50", st.Total)
	require.Len(t, st.Expenses, 1)

	rec = h.do(http.MethodPatch, "/api/creditors/"+creditor.ID, map[string]string{"name": "Nile Fuel", "workId": "IA001"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Nile Fuel", decode[core.Creditor](t, rec).Name)

	rec = h.do(http.MethodDelete, "/api/creditors/"+creditor.ID, map[string]string{"workId": "IA001"}, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodGet, "/api/creditors", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]core.Creditor](t, rec))
}

func TestExpenses(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	in := core.ExpenseInput{Name: "Tyres", Amount: "150.40", Date: "2024-03-02"}
	rec := h.do(http.MethodPost, "/api/expenses", in, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[core.Expense](t, rec)

	rec = h.do(http.MethodPut, "/api/expenses/"+created.ID, map[string]string{
		"name": "Tyres", "amount": "160.00", "date": "2024-03-02", "workId": "IA002",
	}, token)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, "/api/expenses", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[core.ExpenseList](t, rec)
	assert.Equal(t, "150.40", list.Total)
}

func TestAuditLog(t *testing.T) {
	h := newHarness(t)
	token := h.signIn("IA001")

	rec := h.do(http.MethodPost, "/api/trucks", truckBody(), token, "User-Agent", "ledger-test")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodGet, "/api/audit-log?action=truck_create", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]core.AuditEntry](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "ledger-test", entries[0].UserAgent)
	assert.Equal(t, "IA001@fleet.example.com", entries[0].UserEmail)

	rec = h.do(http.MethodGet, "/api/audit-log/export", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Timestamp,Action"))
}
