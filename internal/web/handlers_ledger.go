package web

import (
	"bytes"
	"net/http"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListLedgerGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.ListLedgerGroups(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleCreateLedgerInvoice(w http.ResponseWriter, r *http.Request) {
	var in core.LedgerInvoiceInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	inv, err := s.service.CreateLedgerInvoice(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// handlePreviewLedgerInvoice returns the derived figures while the form
// is being filled in. Nothing is validated or stored.
func (s *Server) handlePreviewLedgerInvoice(w http.ResponseWriter, r *http.Request) {
	var in core.LedgerInvoiceInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.PreviewLedgerInvoice(in))
}

func (s *Server) handleGetLedgerGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.service.LedgerGroup(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleExportLedger(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	group, err := s.service.ExportLedger(r.Context(), &buf, chi.URLParam(r, "owner"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeWorkbook(w, http.StatusOK, core.LedgerOwnerKey(group.Owner)+"-ledger.xlsx", buf.Bytes())
}
