package web

import (
	"net/http"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/go-chi/chi/v5"
)

type creditorRequest struct {
	Name   string `json:"name"`
	WorkID string `json:"workId"`
}

type creditorExpenseUpdate struct {
	core.CreditorExpenseInput
	WorkID string `json:"workId"`
}

func (s *Server) handleListCreditors(w http.ResponseWriter, r *http.Request) {
	creditors, err := s.service.ListCreditors(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creditors)
}

func (s *Server) handleCreateCreditor(w http.ResponseWriter, r *http.Request) {
	var req creditorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := s.service.CreateCreditor(r.Context(), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCreditorStatement(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.CreditorStatement(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRenameCreditor(w http.ResponseWriter, r *http.Request) {
	var req creditorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := s.service.RenameCreditor(r.Context(), chi.URLParam(r, "id"), workID(r, req.WorkID), req.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCreditor(w http.ResponseWriter, r *http.Request) {
	var req gated
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.DeleteCreditor(r.Context(), chi.URLParam(r, "id"), workID(r, req.WorkID)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddCreditorExpense(w http.ResponseWriter, r *http.Request) {
	var in core.CreditorExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	e, err := s.service.AddCreditorExpense(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateCreditorExpense(w http.ResponseWriter, r *http.Request) {
	var req creditorExpenseUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	e, err := s.service.UpdateCreditorExpense(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "expenseID"),
		workID(r, req.WorkID), req.CreditorExpenseInput)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteCreditorExpense(w http.ResponseWriter, r *http.Request) {
	var req gated
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	err := s.service.DeleteCreditorExpense(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "expenseID"), workID(r, req.WorkID))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
