package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type counterResponse struct {
	Counter int    `json:"counter"`
	Next    string `json:"next"`
}

// handleCreateInvoice stores a wallet invoice. With ?download=1 the
// response is the generated workbook instead of the invoice JSON.
func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in core.InvoiceInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	inv, artifact, err := s.service.CreateInvoice(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/invoices/"+inv.InvoiceNumber)
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		writeWorkbook(w, http.StatusCreated, inv.Artifact, artifact)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// handleSearchInvoices finds invoices by number or exact bill-to name.
func (s *Server) handleSearchInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.SearchInvoices(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleInvoiceCounter(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.InvoiceCounter(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counterResponse{
		Counter: n,
		Next:    core.FormatInvoiceNumber(s.service.Config().InvoicePrefix, n+1),
	})
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.service.GetInvoice(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleInvoiceArtifact(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	inv, err := s.service.WriteInvoiceArtifact(r.Context(), &buf, chi.URLParam(r, "number"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeWorkbook(w, http.StatusOK, inv.Artifact, buf.Bytes())
}

// writeWorkbook sends a rendered workbook as an attachment. Rendering
// happens before anything is written so failures still get a JSON error.
func writeWorkbook(w http.ResponseWriter, status int, name string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
