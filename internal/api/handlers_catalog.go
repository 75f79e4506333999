// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/seedlab/seedlab/internal/catalog"
)

// serveGet answers GET /{id} for any entity.
func serveGet[T any](w http.ResponseWriter, r *http.Request, get func(context.Context, int64) (T, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// serveCreate decodes In, creates and answers 201.
func serveCreate[In, T any](w http.ResponseWriter, r *http.Request, create func(context.Context, In) (T, error)) {
	var in In
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// serveUpdate decodes In and updates the entity named by the id parameter.
func serveUpdate[In, T any](w http.ResponseWriter, r *http.Request, update func(context.Context, int64, In) (T, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in In
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// serveToggle runs a soft delete or reactivation and answers 204.
func serveToggle(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) error) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func catalogFilter(q *query) catalog.Filter {
	return catalog.Filter{
		Activo:    q.bool("activo"),
		Texto:     q.str("texto"),
		EspecieID: q.id("especieId"),
		Tipo:      catalog.Tipo(strings.ToUpper(q.str("tipo"))),
	}
}

func (s *Server) handleListEspecies(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f, p := catalogFilter(q), q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	res, err := s.catalog.ListEspecies(r.Context(), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetEspecie(w http.ResponseWriter, r *http.Request) {
	serveGet(w, r, s.catalog.GetEspecie)
}

func (s *Server) handleCreateEspecie(w http.ResponseWriter, r *http.Request) {
	serveCreate(w, r, s.catalog.CreateEspecie)
}

func (s *Server) handleUpdateEspecie(w http.ResponseWriter, r *http.Request) {
	serveUpdate(w, r, s.catalog.UpdateEspecie)
}

func (s *Server) handleDeactivateEspecie(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.catalog.DeactivateEspecie)
}

func (s *Server) handleReactivateEspecie(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.catalog.ReactivateEspecie)
}

func (s *Server) handleListCultivares(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f, p := catalogFilter(q), q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	res, err := s.catalog.ListCultivares(r.Context(), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetCultivar(w http.ResponseWriter, r *http.Request) {
	serveGet(w, r, s.catalog.GetCultivar)
}

func (s *Server) handleCreateCultivar(w http.ResponseWriter, r *http.Request) {
	serveCreate(w, r, s.catalog.CreateCultivar)
}

func (s *Server) handleUpdateCultivar(w http.ResponseWriter, r *http.Request) {
	serveUpdate(w, r, s.catalog.UpdateCultivar)
}

func (s *Server) handleDeactivateCultivar(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.catalog.DeactivateCultivar)
}

func (s *Server) handleReactivateCultivar(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.catalog.ReactivateCultivar)
}

func (s *Server) handleListCatalogos(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f, p := catalogFilter(q), q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	res, err := s.catalog.ListCatalogos(r.Context(), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetCatalogo(w http.ResponseWriter, r *http.Request) {
	serveGet(w, r, s.catalog.GetCatalogo)
}

func (s *Server) handleCreateCatalogo(w http.ResponseWriter, r *http.Request) {
	serveCreate(w, r, s.catalog.CreateCatalogo)
}

func (s *Server) handleUpdateCatalogo(w http.ResponseWriter, r *http.Request) {
	serveUpdate(w, r, s.catalog.UpdateCatalogo)
}

func (s *Server) handleDeactivateCatalogo(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.catalog.DeactivateCatalogo)
}

func (s *Server) handleReactivateCatalogo(w http.ResponseWriter, r *http.Request) {
	serveToggle(w, r, s.catalog.ReactivateCatalogo)
}
