package core

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX is the media type of every workbook the service produces.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ArtifactRenderer turns ledger documents into downloadable files.
type ArtifactRenderer interface {
	RenderInvoice(w io.Writer, inv Invoice) error
	RenderLedger(w io.Writer, group LedgerGroup) error
}

// ExcelRenderer writes XLSX workbooks.
type ExcelRenderer struct{}

const sheetName = "Sheet1"

var ledgerColumns = []any{
	"Date", "Owner", "Deport", "Truck No", "PMS", "AGO", "AT 20", "Price",
	"Amount", "Expenses", "Payments", "Payment Date", "Transport", "Balance",
}

// RenderInvoice writes a single proforma invoice.
func (ExcelRenderer) RenderInvoice(w io.Writer, inv Invoice) error {
	rows := [][]any{
		{"Proforma Invoice", inv.InvoiceNumber},
		{"Invoice Date", inv.InvoiceDate},
		{"Customer ID", inv.CustomerID},
		{"Bill To", inv.BillTo},
		{"Ship To", inv.ShipTo},
		{},
		{"Description", "HS Code", "Quantity", "Unit Price", "Amount"},
		{inv.Description, inv.HSCode, inv.Quantity, inv.UnitPrice, inv.Amount},
		{},
		{"", "", "", "Total", inv.Amount},
	}
	return writeWorkbook(w, rows)
}

// RenderLedger writes one owner's ledger invoices followed by a totals row.
func (ExcelRenderer) RenderLedger(w io.Writer, group LedgerGroup) error {
	rows := make([][]any, 0, len(group.Invoices)+3)
	rows = append(rows, []any{fmt.Sprintf("%s's Invoices", titleOwner(group.Owner))})
	rows = append(rows, ledgerColumns)

	for _, inv := range group.Invoices {
		rows = append(rows, []any{
			inv.Date, inv.Owner, inv.Deport, inv.TruckNo,
			dash(inv.PMS), dash(inv.AGO), dash(inv.At20), dash(inv.Price),
			dash(inv.Amount), dash(inv.Expenses), dash(inv.Payments),
			inv.PaymentDate, dash(inv.Transport), dash(inv.Balance),
		})
	}

	t := group.Totals
	rows = append(rows, []any{
		"Total", "", "", "", "", "", "", "",
		t.Amount, t.Expenses, t.Payments, "", t.Transport, t.Balance,
	})
	return writeWorkbook(w, rows)
}

func writeWorkbook(w io.Writer, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &rows[i]); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.Write(w)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
