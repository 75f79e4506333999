// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/seedlab/seedlab/internal/users"
)

type rolRequest struct {
	Rol string `json:"rol"`
}

func (s *Server) handleListUsuarios(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f := users.Filter{
		Rol:    strings.ToUpper(q.str("rol")),
		Estado: users.Estado(strings.ToUpper(q.str("estado"))),
		Texto:  q.str("texto"),
	}
	p := q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	res, err := s.users.List(r.Context(), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetUsuario(w http.ResponseWriter, r *http.Request) {
	serveGet(w, r, s.users.Get)
}

func (s *Server) handleApproveUsuario(w http.ResponseWriter, r *http.Request) {
	serveUpdate(w, r, func(ctx context.Context, id int64, in rolRequest) (users.Usuario, error) {
		return s.users.Approve(ctx, id, in.Rol)
	})
}

func (s *Server) handleChangeRol(w http.ResponseWriter, r *http.Request) {
	serveUpdate(w, r, func(ctx context.Context, id int64, in rolRequest) (users.Usuario, error) {
		return s.users.ChangeRole(ctx, id, in.Rol)
	})
}

// handleUserAction adapts an account state change that needs no body.
func (s *Server) handleUserAction(action func(context.Context, int64) (users.Usuario, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveGet(w, r, action)
	}
}
