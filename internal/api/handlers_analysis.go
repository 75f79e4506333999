// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/seedlab/seedlab/internal/analysis"
	"github.com/seedlab/seedlab/internal/analysis/calc"
	"github.com/seedlab/seedlab/internal/lims"
)

func analysisFilter(q *query) analysis.Filter {
	return analysis.Filter{
		Kind:      q.kind("kind"),
		Estado:    q.estado("estado"),
		LoteID:    q.id("loteId"),
		CreadoPor: q.id("creadoPor"),
		Activo:    q.bool("activo"),
		Texto:     q.str("texto"),
		Desde:     q.date("desde"),
		Hasta:     q.date("hasta"),
	}
}

func (s *Server) handleListAnalisis(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f, p := analysisFilter(q), q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	res, err := s.analysis.List(r.Context(), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAnalisisByLote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.analysis.ListByLote(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateAnalisis(kind lims.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveCreate(w, r, func(ctx context.Context, in analysis.CreateInput) (analysis.Analisis, error) {
			return s.analysis.Create(ctx, kind, in)
		})
	}
}

// handlePreview computes results for a payload without storing anything.
func (s *Server) handlePreview(kind lims.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload json.RawMessage
		if err := decodeJSON(w, r, &payload); err != nil {
			writeError(w, r, err)
			return
		}
		res, err := s.analysis.Preview(r.Context(), kind, payload)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleGerminacionLimits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, calc.ToleranceTable())
}

func (s *Server) handleGetAnalisis(w http.ResponseWriter, r *http.Request) {
	serveGet(w, r, s.analysis.Get)
}

func (s *Server) handleUpdateAnalisis(w http.ResponseWriter, r *http.Request) {
	serveUpdate(w, r, s.analysis.Update)
}

func (s *Server) handleDeactivateAnalisis(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.analysis.Deactivate)
}

func (s *Server) handleReactivateAnalisis(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.analysis.Reactivate)
}

// handleMarkRepeatAnalisis accepts an optional {"motivo": "..."} body.
func (s *Server) handleMarkRepeatAnalisis(w http.ResponseWriter, r *http.Request) {
	var in analysis.RepeatInput
	if err := decodeOptionalJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleTransition(func(ctx context.Context, id int64) (analysis.Analisis, error) {
		return s.analysis.MarkRepeat(ctx, id, in)
	})(w, r)
}

// handleTransition adapts a lifecycle step such as Start or Approve.
func (s *Server) handleTransition(step func(context.Context, int64) (analysis.Analisis, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		a, err := step(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
