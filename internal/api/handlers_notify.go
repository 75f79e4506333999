// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seedlab/seedlab/internal/api/problem"
	"github.com/seedlab/seedlab/internal/log"
	"github.com/seedlab/seedlab/internal/notify"
)

func (s *Server) handleListNotificaciones(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	unread := q.bool("soloNoLeidas")
	p := q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	f := notify.Filter{SoloNoLeidas: unread != nil && *unread}
	res, err := s.notify.ListMine(r.Context(), principal(r).UserID, f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCountNotificaciones(w http.ResponseWriter, r *http.Request) {
	n, err := s.notify.CountUnread(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"noLeidas": n})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notify.MarkRead(r.Context(), principal(r).UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.notify.MarkAllRead(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marcadas": n})
}

func (s *Server) handleDeleteNotificacion(w http.ResponseWriter, r *http.Request) {
	if err := s.notify.Delete(r.Context(), principal(r).UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotificationStream pushes the caller's notifications as server-sent
// events. A comment line is sent every heartbeat interval so proxies keep the
// connection open.
func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	userID := principal(r).UserID
	sub := s.notify.Hub().Subscribe(userID)
	if sub == nil {
		problem.Write(w, r, http.StatusServiceUnavailable, "system/unavailable", "Service Unavailable",
			"SHUTTING_DOWN", "Notification hub is closed", nil)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise end the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := log.WithComponentFromContext(r.Context(), "sse")
	logger.Debug().Str(log.FieldEvent, "sse.open").Msg("notification stream opened")
	defer logger.Debug().Str(log.FieldEvent, "sse.close").Msg("notification stream closed")

	if _, err := fmt.Fprint(w, "retry: 5000\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				logger.Error().Err(err).Msg("encode notification")
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
