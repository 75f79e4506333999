// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/seedlab/seedlab/internal/apperr"
	"github.com/seedlab/seedlab/internal/audit"
	"github.com/seedlab/seedlab/internal/excel"
	"github.com/seedlab/seedlab/internal/legacy"
	"github.com/seedlab/seedlab/internal/version"
)

var startedAt = time.Now()

func (s *Server) handleListLegados(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f := legacy.Filter{
		Texto:         q.str("texto"),
		Especie:       q.str("especie"),
		ArchivoOrigen: q.str("archivoOrigen"),
		Desde:         q.date("desde"),
		Hasta:         q.date("hasta"),
	}
	p := q.page()
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	res, err := s.legacy.List(r.Context(), f, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetLegado(w http.ResponseWriter, r *http.Request) {
	serveGet(w, r, s.legacy.Get)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.dashboard.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// The workbook is built in memory so a failure can still become a problem response.
func (s *Server) handleExportLotes(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f := lotFilter(q)
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	var buf bytes.Buffer
	n, err := s.excel.ExportLots(r.Context(), f, &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.sendWorkbook(w, "lotes", n, &buf)
}

func (s *Server) handleExportAnalisis(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f := analysisFilter(q)
	if q.err != nil {
		writeError(w, r, q.err)
		return
	}
	var buf bytes.Buffer
	n, err := s.excel.ExportAnalyses(r.Context(), f, &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.sendWorkbook(w, "analisis", n, &buf)
}

func (s *Server) sendWorkbook(w http.ResponseWriter, name string, rows int, buf *bytes.Buffer) {
	attachment(w, excel.ContentType, fmt.Sprintf("%s-%s.xlsx", name, time.Now().Format("20060102")))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.Header().Set("X-Total-Count", fmt.Sprint(rows))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Str("export", name).Msg("workbook write aborted")
	}
}

func (s *Server) handleImportLegados(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, apperr.Invalid("upload exceeds %d bytes", maxErr.Limit).WithField("file", "too large"))
			return
		}
		writeError(w, r, apperr.Invalid("expected a multipart form").WithField("file", "required"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Invalid("missing file part").WithField("file", "required"))
		return
	}
	defer func() { _ = file.Close() }()

	report, err := s.excel.ImportLegacy(r.Context(), hdr.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type systemInfo struct {
	Version   string  `json:"version"`
	Commit    string  `json:"commit"`
	BuildDate string  `json:"buildDate"`
	GoVersion string  `json:"goVersion"`
	Uptime    float64 `json:"uptimeSeconds"`
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, systemInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.Date,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(startedAt).Seconds(),
	})
}

func (s *Server) handleInvalidateCaches(w http.ResponseWriter, r *http.Request) {
	s.dashboard.Invalidate(r.Context())
	s.audit.Security(r.Context(), audit.EventCacheInvalidated, principal(r).Username, "invalidated caches", 0)
	w.WriteHeader(http.StatusNoContent)
}
