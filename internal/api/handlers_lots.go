// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/lims"
	"github.com/seedlab/seedlab/internal/lots"
)

func lotFilter(q *query) lots.Filter {
	return lots.Filter{
		Texto:      q.str("texto"),
		CultivarID: q.id("cultivarId"),
		EspecieID:  q.id("especieId"),
		Activo:     q.bool("activo"),
		Kind:       q.kind("kind"),
		Desde:      q.date("desde"),
		Hasta:      q.date("hasta"),
	}
}

func (s *Server) handleListLotes(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f, p := lotFilter(q), q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	res, err := s.lots.List(r.Context(), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListEligible(w http.ResponseWriter, r *http.Request) {
	kind, err := lims.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, apperr.Invalid("%v", err).WithField("kind", "unknown analysis kind"))
		return
	}
	q := newQuery(r)
	p := q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	res, err := s.lots.Eligible(r.Context(), kind, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetLote(w http.ResponseWriter, r *http.Request) {
	serveGet(w, r, s.lots.Get)
}

func (s *Server) handleCreateLote(w http.ResponseWriter, r *http.Request) {
	serveCreate(w, r, s.lots.Create)
}

func (s *Server) handleUpdateLote(w http.ResponseWriter, r *http.Request) {
	serveUpdate(w, r, s.lots.Update)
}

func (s *Server) handleDeactivateLote(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.lots.Deactivate)
}

func (s *Server) handleReactivateLote(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.lots.Reactivate)
}
