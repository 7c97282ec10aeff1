package web

import (
	"net/http"

	"github.com/JonMunkholm/fuelledger/internal/core"
	"github.com/go-chi/chi/v5"
)

// gated is the body of a delete that confirms with a work ID. The
// X-Work-ID header is accepted instead for clients that send no body.
type gated struct {
	WorkID string `json:"workId"`
}

type truckUpdate struct {
	core.Truck
	WorkID string `json:"workId"`
}

func (s *Server) handleListTrucks(w http.ResponseWriter, r *http.Request) {
	trucks, err := s.service.ListTrucks(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trucks)
}

func (s *Server) handleCreateTruck(w http.ResponseWriter, r *http.Request) {
	var t core.Truck
	if err := decodeJSON(w, r, &t); err != nil {
		respondError(w, r, err)
		return
	}
	view, err := s.service.CreateTruck(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetTruck(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetTruck(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateTruck(w http.ResponseWriter, r *http.Request) {
	var req truckUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	view, err := s.service.UpdateTruck(r.Context(), chi.URLParam(r, "id"), workID(r, req.WorkID), req.Truck)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteTruck(w http.ResponseWriter, r *http.Request) {
	var req gated
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.DeleteTruck(r.Context(), chi.URLParam(r, "id"), workID(r, req.WorkID)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
